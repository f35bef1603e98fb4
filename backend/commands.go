// Package backend is the command side of the app: every operation the
// settings surface can invoke, plus the dictation flow the global hotkeys
// drive. Results come back as return values; everything asynchronous is
// announced on the event bus.
package backend

import (
	"context"

	"localwhisper/config"
	"localwhisper/history"
	"localwhisper/listener"
	"localwhisper/models"
)

type AudioDevice struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

type SystemInfo struct {
	TotalRAMGB             float64 `json:"total_ram_gb"`
	CPUCores               int     `json:"cpu_cores"`
	OS                     string  `json:"os"`
	Arch                   string  `json:"arch"`
	RecommendedModel       string  `json:"recommended_model"`
	RecommendedModelReason string  `json:"recommended_model_reason"`
}

type PermissionStatus struct {
	Microphone    bool `json:"microphone"`
	Accessibility bool `json:"accessibility"`
}

// Commands is implemented by Local in-process and by the ipc client over a
// socket.
type Commands interface {
	GetConfig(ctx context.Context) (config.AppConfig, error)
	SaveConfig(ctx context.Context, cfg config.AppConfig) error
	IsFirstRun(ctx context.Context) (bool, error)
	MarkSetupComplete(ctx context.Context) error
	SetAutoPaste(ctx context.Context, enabled bool) error
	SetLanguage(ctx context.Context, language string) error
	SetUILocale(ctx context.Context, locale string) error

	// UpdateHotkey and UpdateHotkeyPTT persist the shortcut and then
	// re-register both hotkeys. An empty push-to-talk shortcut disables it.
	UpdateHotkey(ctx context.Context, shortcut string) error
	UpdateHotkeyPTT(ctx context.Context, shortcut string) error
	SuspendHotkey(ctx context.Context) error
	ResumeHotkey(ctx context.Context) error
	// AcquireListener suspends the global hotkeys until the returned release
	// is called and no other lease is outstanding.
	AcquireListener(ctx context.Context, owner string) (listener.Release, error)

	ListAudioDevices(ctx context.Context) ([]AudioDevice, error)
	// SetAudioDevice selects an input by name; nil means the system default.
	SetAudioDevice(ctx context.Context, name *string) error
	// TestMicrophone blocks for the test window, emitting mic-test-level
	// every interval.
	TestMicrophone(ctx context.Context) error

	ListModels(ctx context.Context) ([]models.Info, error)
	// DownloadModel blocks until the model is on disk, emitting
	// download-progress along the way and download-complete at the end.
	DownloadModel(ctx context.Context, id string) error
	DeleteModel(ctx context.Context, id string) error
	LoadModel(ctx context.Context, id string) error

	GetRecordingState(ctx context.Context) (bool, error)
	GetSystemInfo(ctx context.Context) (SystemInfo, error)
	CheckPermissions(ctx context.Context) (PermissionStatus, error)
	RecentTranscriptions(ctx context.Context, n int) ([]history.Entry, error)
}
