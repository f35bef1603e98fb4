package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"localwhisper/audio"
	"localwhisper/clipboard"
	"localwhisper/config"
	"localwhisper/events"
	"localwhisper/history"
	"localwhisper/hotkey"
	"localwhisper/listener"
	"localwhisper/log"
	"localwhisper/models"
	"localwhisper/transcriber"
)

const (
	DefaultMicTestSteps    = 30
	DefaultMicTestInterval = 100 * time.Millisecond
)

type Options struct {
	Config      *config.Store
	Events      events.Emitter
	Audio       audio.Context
	Transcriber transcriber.Transcriber
	// Hotkeys builds platform hotkeys; hotkey.New when nil.
	Hotkeys    hotkey.Factory
	Clipboard  clipboard.Clipboard
	Downloader *models.Downloader
	// History is optional; completed transcriptions are not kept without it.
	History *history.Store
	// KeepAudio stores each recording as FLAC next to its history entry.
	KeepAudio bool

	MicTestSteps    int
	MicTestInterval time.Duration
	// SystemInfo overrides the memory probe, for tests.
	SystemInfo func() SystemInfo
}

// Local runs every command in-process.
type Local struct {
	opts    Options
	cfg     *config.Store
	hotkeys *hotkey.Manager
	gate    *listener.Gate
	dict    *dictation

	micMu sync.Mutex

	dlMu        sync.Mutex
	downloading map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Commands = (*Local)(nil)

func New(opts Options) (*Local, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("backend: config store required")
	case opts.Events == nil:
		return nil, errors.New("backend: event emitter required")
	case opts.Audio == nil:
		return nil, errors.New("backend: audio context required")
	case opts.Transcriber == nil:
		return nil, errors.New("backend: transcriber required")
	}
	if opts.Hotkeys == nil {
		opts.Hotkeys = hotkey.New
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.System{}
	}
	if opts.Downloader == nil {
		opts.Downloader = &models.Downloader{BaseURL: models.DefaultBaseURL}
	}
	if opts.MicTestSteps <= 0 {
		opts.MicTestSteps = DefaultMicTestSteps
	}
	if opts.MicTestInterval <= 0 {
		opts.MicTestInterval = DefaultMicTestInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Local{
		opts:        opts,
		cfg:         opts.Config,
		downloading: make(map[string]bool),
		ctx:         ctx,
		cancel:      cancel,
	}
	l.dict = &dictation{l: l}
	l.hotkeys = hotkey.NewManager(opts.Hotkeys, hotkey.NewTrigger(l.dict))
	l.gate = listener.NewGate(l.hotkeys)

	cfg := l.cfg.Get()
	if err := l.hotkeys.Set(cfg.Hotkey, cfg.HotkeyPTT); err != nil {
		log.Warnf("register hotkeys: %v", err)
	}
	return l, nil
}

// Recorder exposes the dictation flow so other front ends (the settings
// screen's record key) can drive it like the hotkeys do.
func (l *Local) Recorder() hotkey.Recorder { return l.dict }

// Trigger returns a toggle/push-to-talk trigger over the dictation flow.
func (l *Local) Trigger() *hotkey.Trigger { return hotkey.NewTrigger(l.dict) }

// Watch re-applies hand edits of config.json until Close.
func (l *Local) Watch() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		err := l.cfg.Watch(l.ctx, func(cfg config.AppConfig) {
			if err := l.applyHotkeys(cfg); err != nil {
				log.Warnf("re-register hotkeys: %v", err)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warnf("config watch: %v", err)
		}
	}()
}

func (l *Local) applyHotkeys(cfg config.AppConfig) error {
	toggle, ptt := l.hotkeys.Bindings()
	if toggle == cfg.Hotkey && ptt == cfg.HotkeyPTT {
		return nil
	}
	return l.hotkeys.Set(cfg.Hotkey, cfg.HotkeyPTT)
}

// Close stops any recording, waits for an in-flight transcription and
// releases the hotkeys.
func (l *Local) Close() {
	if ids := l.inFlight(); len(ids) > 0 {
		log.Warnf("shutdown: abandoning downloads %v", ids)
	}
	if owners := l.gate.Owners(); len(owners) > 0 {
		log.Warnf("shutdown: hotkeys still suspended by %v", owners)
	}
	l.dict.abort()
	l.cancel()
	l.wg.Wait()
	l.gate.Close()
	l.hotkeys.Close()
}

func (l *Local) publish(name string, payload any) {
	if err := l.opts.Events.Emit(name, payload); err != nil {
		log.Warnf("emit %s: %v", name, err)
	}
}

func (l *Local) dataDir() string { return l.cfg.Dir() }

func (l *Local) update(fn func(*config.AppConfig)) error {
	_, err := l.cfg.Update(fn)
	return wrap(KindConfig, err)
}

func (l *Local) GetConfig(context.Context) (config.AppConfig, error) {
	return l.cfg.Get(), nil
}

func (l *Local) SaveConfig(_ context.Context, cfg config.AppConfig) error {
	if err := l.hotkeys.Check(cfg.Hotkey, cfg.HotkeyPTT); err != nil {
		return wrap(KindHotkey, err)
	}
	if err := l.cfg.Replace(cfg); err != nil {
		return wrap(KindConfig, err)
	}
	return wrap(KindHotkey, l.applyHotkeys(cfg))
}

func (l *Local) IsFirstRun(context.Context) (bool, error) {
	return !l.cfg.Get().FirstRunComplete, nil
}

func (l *Local) MarkSetupComplete(context.Context) error {
	return l.update(func(c *config.AppConfig) { c.FirstRunComplete = true })
}

func (l *Local) SetAutoPaste(_ context.Context, enabled bool) error {
	return l.update(func(c *config.AppConfig) { c.AutoPaste = enabled })
}

func (l *Local) SetLanguage(_ context.Context, language string) error {
	return l.update(func(c *config.AppConfig) { c.Language = language })
}

func (l *Local) SetUILocale(_ context.Context, locale string) error {
	return l.update(func(c *config.AppConfig) { c.UILocale = locale })
}

func (l *Local) SetAudioDevice(_ context.Context, name *string) error {
	return l.update(func(c *config.AppConfig) {
		if name == nil {
			c.AudioDevice = nil
			return
		}
		n := *name
		c.AudioDevice = &n
	})
}

func (l *Local) UpdateHotkey(_ context.Context, shortcut string) error {
	return l.updateHotkeys(func(c *config.AppConfig) { c.Hotkey = shortcut })
}

func (l *Local) UpdateHotkeyPTT(_ context.Context, shortcut string) error {
	return l.updateHotkeys(func(c *config.AppConfig) { c.HotkeyPTT = shortcut })
}

// updateHotkeys saves first and re-registers second, so a shortcut the OS
// refuses is still remembered.
func (l *Local) updateHotkeys(fn func(*config.AppConfig)) error {
	next := l.cfg.Get()
	fn(&next)
	if err := l.hotkeys.Check(next.Hotkey, next.HotkeyPTT); err != nil {
		return wrap(KindHotkey, err)
	}
	cfg, err := l.cfg.Update(fn)
	if err != nil {
		return wrap(KindConfig, err)
	}
	return wrap(KindHotkey, l.hotkeys.Set(cfg.Hotkey, cfg.HotkeyPTT))
}

func (l *Local) SuspendHotkey(context.Context) error {
	return wrap(KindHotkey, l.gate.Suspend())
}

func (l *Local) ResumeHotkey(context.Context) error {
	l.gate.Resume()
	return nil
}

func (l *Local) AcquireListener(ctx context.Context, owner string) (listener.Release, error) {
	release, err := l.gate.Acquire(ctx, owner)
	return release, wrap(KindHotkey, err)
}

// HotkeysSuspended reports whether the global hotkeys are currently off.
func (l *Local) HotkeysSuspended() bool { return l.hotkeys.Suspended() }

func (l *Local) ListAudioDevices(context.Context) ([]AudioDevice, error) {
	devices, err := l.opts.Audio.Devices()
	if err != nil {
		return nil, wrap(KindAudio, err)
	}
	out := make([]AudioDevice, 0, len(devices))
	for _, d := range devices {
		out = append(out, AudioDevice{Name: d.Name, IsDefault: d.IsDefault})
	}
	return out, nil
}

func (l *Local) ListModels(context.Context) ([]models.Info, error) {
	return models.List(l.dataDir(), l.opts.Downloader.BaseURL), nil
}

func (l *Local) DeleteModel(_ context.Context, id string) error {
	return wrap(KindIo, models.Delete(l.dataDir(), id))
}

// LoadModel makes a downloaded model the active one.
func (l *Local) LoadModel(_ context.Context, id string) error {
	if _, ok := models.Path(l.dataDir(), id); !ok {
		return &Error{Kind: KindTranscription, Err: fmt.Errorf("model not found: %s", id)}
	}
	return l.update(func(c *config.AppConfig) { c.ActiveModel = &id })
}

func (l *Local) GetRecordingState(context.Context) (bool, error) {
	return l.dict.Recording(), nil
}

func (l *Local) RecentTranscriptions(ctx context.Context, n int) ([]history.Entry, error) {
	if l.opts.History == nil {
		return nil, nil
	}
	entries, err := l.opts.History.Recent(ctx, n)
	return entries, wrap(KindIo, err)
}
