// Package tray mirrors the dictation state in the system tray: one icon per
// state, an animated icon while transcribing, copy-last and quit.
package tray

import (
	"context"
	"errors"
	"sync"
	"time"

	"localwhisper/appstate"
	"localwhisper/i18n"
	"localwhisper/log"
)

type Status int

const (
	Idle Status = iota
	Recording
	Processing
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// StatusOf picks the icon state for an application state. An error wins over
// recording, which wins over transcribing.
func StatusOf(s appstate.State) Status {
	switch {
	case s.Error != nil:
		return Failed
	case s.Recording:
		return Recording
	case s.Transcribing:
		return Processing
	}
	return Idle
}

const DefaultFrameInterval = 120 * time.Millisecond

var ErrNoHistory = errors.New("no transcription yet")

// surface is the native tray. Calls may come from any goroutine.
type surface interface {
	SetIcon(icon []byte)
	SetTooltip(text string)
	SetLabels(copyLast, quit string)
	SetCopyEnabled(on bool)
}

type Options struct {
	// Locale returns the current UI locale for tooltips and menu labels.
	Locale func() string
	// Last returns the most recent transcription text.
	Last func(ctx context.Context) (string, error)
	// Copy puts text on the clipboard.
	Copy func(text string) error
	// OnQuit runs once when Quit is chosen.
	OnQuit func()
	// FrameInterval paces the transcribing animation.
	FrameInterval time.Duration
}

type Tray struct {
	opts Options
	ui   surface

	// paint orders icon changes between Update and the animation.
	paint  sync.Mutex
	mu     sync.Mutex
	status Status
	errMsg string
	// gen invalidates a running animation when the status changes.
	gen    uint64
	frame  int
	closed bool

	anim     sync.WaitGroup
	quitOnce sync.Once
	done     chan struct{}
}

func New(opts Options) *Tray {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.Locale == nil {
		opts.Locale = func() string { return "" }
	}
	return &Tray{opts: opts, ui: nopSurface{}, done: make(chan struct{})}
}

// Start shows the native tray icon where the platform has one.
func (t *Tray) Start() error {
	ui, err := startNative(t)
	if err != nil {
		return err
	}
	t.attach(ui)
	return nil
}

func (t *Tray) attach(ui surface) {
	t.paint.Lock()
	defer t.paint.Unlock()
	t.mu.Lock()
	t.ui = ui
	st := t.status
	t.mu.Unlock()
	t.render(st)
}

func (t *Tray) surface() surface {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ui
}

func (t *Tray) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Update applies a new application state.
func (t *Tray) Update(s appstate.State) {
	st := StatusOf(s)
	t.paint.Lock()
	defer t.paint.Unlock()
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	ui := t.ui
	msg := ""
	if s.Error != nil {
		msg = *s.Error
	}
	if st == t.status && msg == t.errMsg {
		t.mu.Unlock()
		ui.SetCopyEnabled(s.LastTranscription != nil)
		return
	}
	t.status = st
	t.errMsg = msg
	t.gen++
	gen := t.gen
	t.frame = 0
	if st == Processing {
		t.anim.Add(1)
		go t.animate(gen)
	}
	t.mu.Unlock()

	t.render(st)
	ui.SetCopyEnabled(s.LastTranscription != nil)
}

func (t *Tray) render(st Status) {
	ui := t.surface()
	loc := t.opts.Locale()
	switch st {
	case Recording:
		ui.SetIcon(iconRecording)
		ui.SetTooltip(i18n.T(loc, "tray.recording", nil))
	case Processing:
		ui.SetIcon(iconProcessing[0])
		ui.SetTooltip(i18n.T(loc, "tray.processing", nil))
	case Failed:
		t.mu.Lock()
		msg := t.errMsg
		t.mu.Unlock()
		ui.SetIcon(iconError)
		ui.SetTooltip(i18n.T(loc, "tray.error", map[string]any{"Err": msg}))
	default:
		ui.SetIcon(iconIdle)
		ui.SetTooltip(i18n.T(loc, "tray.idle", nil))
	}
	// The UI locale may have changed since the last render.
	ui.SetLabels(i18n.T(loc, "tray.copyLast", nil), i18n.T(loc, "tray.quit", nil))
}

func (t *Tray) animate(gen uint64) {
	defer t.anim.Done()
	tick := time.NewTicker(t.opts.FrameInterval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
		case <-t.done:
			return
		}
		if !t.nextFrame(gen) {
			return
		}
	}
}

func (t *Tray) nextFrame(gen uint64) bool {
	t.paint.Lock()
	defer t.paint.Unlock()
	t.mu.Lock()
	if gen != t.gen || t.closed {
		t.mu.Unlock()
		return false
	}
	t.frame = (t.frame + 1) % len(iconProcessing)
	icon := iconProcessing[t.frame]
	ui := t.ui
	t.mu.Unlock()
	ui.SetIcon(icon)
	return true
}

// CopyLast puts the most recent transcription back on the clipboard.
func (t *Tray) CopyLast(ctx context.Context) error {
	if t.opts.Last == nil || t.opts.Copy == nil {
		return ErrNoHistory
	}
	text, err := t.opts.Last(ctx)
	if err != nil {
		return err
	}
	if text == "" {
		return ErrNoHistory
	}
	return t.opts.Copy(text)
}

func (t *Tray) copyLastClicked() {
	if err := t.CopyLast(context.Background()); err != nil {
		log.Warnf("tray copy last: %v", err)
	}
}

// Quit is the menu's quit entry; it only fires once.
func (t *Tray) Quit() {
	t.quitOnce.Do(func() {
		close(t.done)
		if t.opts.OnQuit != nil {
			t.opts.OnQuit()
		}
	})
}

// Done is closed when Quit was chosen.
func (t *Tray) Done() <-chan struct{} { return t.done }

// Close stops the animation and removes the native icon.
func (t *Tray) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.gen++
	t.mu.Unlock()
	t.anim.Wait()
	stopNative()
}

type nopSurface struct{}

func (nopSurface) SetIcon([]byte)           {}
func (nopSurface) SetTooltip(string)        {}
func (nopSurface) SetLabels(string, string) {}
func (nopSurface) SetCopyEnabled(bool)      {}
