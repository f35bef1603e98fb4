package ipc

import (
	"context"
	"encoding/json"
	"fmt"

	"localwhisper/backend"
)

const (
	MethodGetConfig            = "get_config"
	MethodSaveConfig           = "save_config"
	MethodIsFirstRun           = "is_first_run"
	MethodMarkSetupComplete    = "mark_setup_complete"
	MethodSetAutoPaste         = "set_auto_paste"
	MethodSetLanguage          = "set_language"
	MethodSetUILocale          = "set_ui_locale"
	MethodUpdateHotkey         = "update_hotkey"
	MethodUpdateHotkeyPTT      = "update_hotkey_ptt"
	MethodSuspendHotkey        = "suspend_hotkey"
	MethodResumeHotkey         = "resume_hotkey"
	MethodAcquireListener      = "acquire_listener"
	MethodReleaseListener      = "release_listener"
	MethodListAudioDevices     = "list_audio_devices"
	MethodSetAudioDevice       = "set_audio_device"
	MethodTestMicrophone       = "test_microphone"
	MethodListModels           = "list_models"
	MethodDownloadModel        = "download_model"
	MethodDeleteModel          = "delete_model"
	MethodLoadModel            = "load_model"
	MethodGetRecordingState    = "get_recording_state"
	MethodGetSystemInfo        = "get_system_info"
	MethodCheckPermissions     = "check_permissions"
	MethodRecentTranscriptions = "recent_transcriptions"
)

type handler func(ctx context.Context, p *peer, params json.RawMessage) (any, error)

func query[R any](fn func(context.Context) (R, error)) handler {
	return func(ctx context.Context, _ *peer, _ json.RawMessage) (any, error) {
		return fn(ctx)
	}
}

func action(fn func(context.Context) error) handler {
	return func(ctx context.Context, _ *peer, _ json.RawMessage) (any, error) {
		return nil, fn(ctx)
	}
}

func actionWith[P any](fn func(context.Context, P) error) handler {
	return func(ctx context.Context, _ *peer, params json.RawMessage) (any, error) {
		var v P
		if err := decodeParams(params, &v); err != nil {
			return nil, err
		}
		return nil, fn(ctx, v)
	}
}

func queryWith[P, R any](fn func(context.Context, P) (R, error)) handler {
	return func(ctx context.Context, _ *peer, params json.RawMessage) (any, error) {
		var v P
		if err := decodeParams(params, &v); err != nil {
			return nil, err
		}
		return fn(ctx, v)
	}
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("ipc: missing params")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("ipc: bad params: %w", err)
	}
	return nil
}

func handlers(c backend.Commands) map[string]handler {
	return map[string]handler{
		MethodGetConfig:         query(c.GetConfig),
		MethodSaveConfig:        actionWith(c.SaveConfig),
		MethodIsFirstRun:        query(c.IsFirstRun),
		MethodMarkSetupComplete: action(c.MarkSetupComplete),
		MethodSetAutoPaste:      actionWith(c.SetAutoPaste),
		MethodSetLanguage:       actionWith(c.SetLanguage),
		MethodSetUILocale:       actionWith(c.SetUILocale),
		MethodUpdateHotkey:      actionWith(c.UpdateHotkey),
		MethodUpdateHotkeyPTT:   actionWith(c.UpdateHotkeyPTT),
		MethodSuspendHotkey:     action(c.SuspendHotkey),
		MethodResumeHotkey:      action(c.ResumeHotkey),
		MethodAcquireListener: func(ctx context.Context, p *peer, params json.RawMessage) (any, error) {
			var owner string
			if err := decodeParams(params, &owner); err != nil {
				return nil, err
			}
			release, err := c.AcquireListener(ctx, owner)
			if err != nil {
				return nil, err
			}
			return p.lease(release), nil
		},
		MethodReleaseListener: func(_ context.Context, p *peer, params json.RawMessage) (any, error) {
			var token string
			if err := decodeParams(params, &token); err != nil {
				return nil, err
			}
			p.unlease(token)
			return nil, nil
		},
		MethodListAudioDevices: query(c.ListAudioDevices),
		MethodSetAudioDevice: func(ctx context.Context, _ *peer, params json.RawMessage) (any, error) {
			var name *string
			if len(params) > 0 {
				if err := json.Unmarshal(params, &name); err != nil {
					return nil, fmt.Errorf("ipc: bad params: %w", err)
				}
			}
			return nil, c.SetAudioDevice(ctx, name)
		},
		MethodTestMicrophone:       action(c.TestMicrophone),
		MethodListModels:           query(c.ListModels),
		MethodDownloadModel:        actionWith(c.DownloadModel),
		MethodDeleteModel:          actionWith(c.DeleteModel),
		MethodLoadModel:            actionWith(c.LoadModel),
		MethodGetRecordingState:    query(c.GetRecordingState),
		MethodGetSystemInfo:        query(c.GetSystemInfo),
		MethodCheckPermissions:     query(c.CheckPermissions),
		MethodRecentTranscriptions: queryWith(c.RecentTranscriptions),
	}
}
