package backend

import (
	"context"
	"sync"

	"localwhisper/config"
	"localwhisper/events"
	"localwhisper/history"
	"localwhisper/models"
)

// Fake is an in-memory Commands for front-end tests. Downloads and mic tests
// publish a short scripted event sequence on Bus.
type Fake struct {
	Bus      *events.Bus
	Devices  []AudioDevice
	System   SystemInfo
	Levels   []float64
	Entries  []history.Entry
	// Err, when set, is returned by every mutating command.
	Err error

	mu         sync.Mutex
	cfg        config.AppConfig
	downloaded map[string]bool
	recording  bool
	leases     int
	suspended  bool
	calls      []string
}

var _ Commands = (*Fake)(nil)

func NewFake(bus *events.Bus) *Fake {
	return &Fake{Bus: bus, cfg: config.Default(), downloaded: map[string]bool{}}
}

func (f *Fake) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.Err
}

// Calls lists the commands invoked so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) set(call string, fn func(*config.AppConfig)) error {
	if err := f.record(call); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.cfg.Clone()
	fn(&next)
	if err := next.Validate(); err != nil {
		return wrap(KindConfig, err)
	}
	f.cfg = next
	return nil
}

func (f *Fake) GetConfig(context.Context) (config.AppConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg.Clone(), nil
}

func (f *Fake) SaveConfig(_ context.Context, cfg config.AppConfig) error {
	return f.set("SaveConfig", func(c *config.AppConfig) { *c = cfg.Clone() })
}

func (f *Fake) IsFirstRun(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.cfg.FirstRunComplete, nil
}

func (f *Fake) MarkSetupComplete(context.Context) error {
	return f.set("MarkSetupComplete", func(c *config.AppConfig) { c.FirstRunComplete = true })
}

func (f *Fake) SetAutoPaste(_ context.Context, enabled bool) error {
	return f.set("SetAutoPaste", func(c *config.AppConfig) { c.AutoPaste = enabled })
}

func (f *Fake) SetLanguage(_ context.Context, language string) error {
	return f.set("SetLanguage", func(c *config.AppConfig) { c.Language = language })
}

func (f *Fake) SetUILocale(_ context.Context, locale string) error {
	return f.set("SetUILocale", func(c *config.AppConfig) { c.UILocale = locale })
}

func (f *Fake) UpdateHotkey(_ context.Context, s string) error {
	return f.set("UpdateHotkey", func(c *config.AppConfig) { c.Hotkey = s })
}

func (f *Fake) UpdateHotkeyPTT(_ context.Context, s string) error {
	return f.set("UpdateHotkeyPTT", func(c *config.AppConfig) { c.HotkeyPTT = s })
}

func (f *Fake) SuspendHotkey(context.Context) error {
	if err := f.record("SuspendHotkey"); err != nil {
		return err
	}
	f.mu.Lock()
	f.suspended = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) ResumeHotkey(context.Context) error {
	f.record("ResumeHotkey")
	f.mu.Lock()
	f.suspended = false
	f.mu.Unlock()
	return nil
}

func (f *Fake) AcquireListener(_ context.Context, owner string) (func(), error) {
	if err := f.record("AcquireListener"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.leases++
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.leases--
			f.mu.Unlock()
		})
	}, nil
}

// Leases is the number of listener leases not yet released.
func (f *Fake) Leases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leases
}

func (f *Fake) ListAudioDevices(context.Context) ([]AudioDevice, error) {
	return append([]AudioDevice(nil), f.Devices...), nil
}

func (f *Fake) SetAudioDevice(_ context.Context, name *string) error {
	return f.set("SetAudioDevice", func(c *config.AppConfig) { c.AudioDevice = name })
}

func (f *Fake) TestMicrophone(context.Context) error {
	if err := f.record("TestMicrophone"); err != nil {
		return err
	}
	for _, lvl := range f.Levels {
		f.Bus.Emit(events.MicTestLevel, lvl)
	}
	return nil
}

func (f *Fake) ListModels(context.Context) ([]models.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Info
	for _, d := range models.Catalog {
		out = append(out, models.Info{
			ID:            d.ID,
			Name:          d.Name,
			SizeBytes:     d.SizeBytes,
			SizeLabel:     d.SizeLabel,
			URL:           models.URL(models.DefaultBaseURL, d.ID),
			IsEnglishOnly: d.EnglishOnly,
			IsQuantized:   d.Quantized,
			IsDownloaded:  f.downloaded[d.ID],
		})
	}
	return out, nil
}

// DownloadModel publishes 0, 50 and 100 percent and completes.
func (f *Fake) DownloadModel(_ context.Context, id string) error {
	if err := f.record("DownloadModel"); err != nil {
		return err
	}
	def, err := models.Lookup(id)
	if err != nil {
		return wrap(KindDownload, err)
	}
	for _, pct := range []uint64{0, 50, 100} {
		f.Bus.Emit(events.DownloadProgressName, events.DownloadProgress{
			ModelID:         id,
			DownloadedBytes: def.SizeBytes * pct / 100,
			TotalBytes:      def.SizeBytes,
			Percent:         float64(pct),
		})
	}
	f.mu.Lock()
	f.downloaded[id] = true
	f.mu.Unlock()
	f.Bus.Emit(events.DownloadComplete, id)
	return nil
}

func (f *Fake) DeleteModel(_ context.Context, id string) error {
	if err := f.record("DeleteModel"); err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.downloaded, id)
	f.mu.Unlock()
	return nil
}

func (f *Fake) LoadModel(_ context.Context, id string) error {
	return f.set("LoadModel", func(c *config.AppConfig) { c.ActiveModel = &id })
}

// SetRecording flips the recording flag and publishes the matching events,
// the way the dictation flow does.
func (f *Fake) SetRecording(on bool) {
	f.mu.Lock()
	f.recording = on
	f.mu.Unlock()
	f.Bus.Emit(events.RecordingStateChanged, on)
	if !on {
		f.Bus.Emit(events.TranscriptionStarted, nil)
	}
}

func (f *Fake) GetRecordingState(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recording, nil
}

func (f *Fake) GetSystemInfo(context.Context) (SystemInfo, error) {
	return f.System, nil
}

func (f *Fake) CheckPermissions(context.Context) (PermissionStatus, error) {
	return PermissionStatus{Microphone: true, Accessibility: true}, nil
}

func (f *Fake) RecentTranscriptions(_ context.Context, n int) ([]history.Entry, error) {
	if n > len(f.Entries) {
		n = len(f.Entries)
	}
	return append([]history.Entry(nil), f.Entries[:n]...), nil
}
