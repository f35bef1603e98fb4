package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"localwhisper/appstate"
	"localwhisper/backend"
	"localwhisper/capture"
	"localwhisper/events"
	"localwhisper/ipc"
	"localwhisper/keys"
	"localwhisper/miccheck"
)

func TestTerminalKeyEvent(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want keys.KeyEvent
		ok   bool
	}{
		{"letter", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}, keys.KeyEvent{Code: "KeyR", Key: "r"}, true},
		{"upper", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("R")}, keys.KeyEvent{Code: "KeyR", Key: "R", Shift: true}, true},
		{"alt", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x"), Alt: true}, keys.KeyEvent{Code: "KeyX", Key: "x", Alt: true}, true},
		{"ctrl", tea.KeyMsg{Type: tea.KeyCtrlA}, keys.KeyEvent{Code: "KeyA", Key: "a", Ctrl: true}, true},
		{"ctrl space", tea.KeyMsg{Type: tea.KeyCtrlAt}, keys.KeyEvent{Code: "Space", Key: "Space", Ctrl: true}, true},
		{"digit", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("7")}, keys.KeyEvent{Code: "Digit7", Key: "7"}, true},
		{"shifted digit", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("!")}, keys.KeyEvent{Code: "Digit1", Key: "!", Shift: true}, true},
		{"punctuation", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")}, keys.KeyEvent{Code: "Slash", Key: "/"}, true},
		{"function", tea.KeyMsg{Type: tea.KeyF5}, keys.KeyEvent{Code: "F5", Key: "F5"}, true},
		{"space", tea.KeyMsg{Type: tea.KeySpace}, keys.KeyEvent{Code: "Space", Key: "Space"}, true},
		{"shift tab", tea.KeyMsg{Type: tea.KeyShiftTab}, keys.KeyEvent{Code: "Tab", Key: "Tab", Shift: true}, true},
		{"ctrl up", tea.KeyMsg{Type: tea.KeyCtrlUp}, keys.KeyEvent{Code: "ArrowUp", Key: "ArrowUp", Ctrl: true}, true},
		{"page down", tea.KeyMsg{Type: tea.KeyPgDown}, keys.KeyEvent{Code: "PageDown", Key: "PageDown"}, true},
		{"escape", tea.KeyMsg{Type: tea.KeyEsc}, keys.KeyEvent{Code: "Escape", Key: "Escape"}, true},
		{"paste", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("abc"), Paste: true}, keys.KeyEvent{}, false},
		{"unknown rune", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("é")}, keys.KeyEvent{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := terminalKeyEvent(tt.msg)
			if ok != tt.ok || got != tt.want {
				t.Errorf("terminalKeyEvent(%q) = %+v, %v; want %+v, %v", tt.msg.String(), got, ok, tt.want, tt.ok)
			}
		})
	}
}

// recorder collects what the model sends from outside Update.
type recorder struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recorder) send(msg tea.Msg) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) take() []tea.Msg {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

type tuiRig struct {
	t    *testing.T
	bus  *events.Bus
	fake *backend.Fake
	rec  *recorder
	m    tuiModel
}

func newTUIRig(t *testing.T) *tuiRig {
	t.Helper()
	bus := events.NewBus()
	fake := backend.NewFake(bus)
	fake.Devices = []backend.AudioDevice{{Name: "Built-in", IsDefault: true}, {Name: "USB Mic"}}
	fake.System = backend.SystemInfo{TotalRAMGB: 6, CPUCores: 4, OS: "linux", Arch: "amd64", RecommendedModel: "ggml-base"}
	r := &tuiRig{t: t, bus: bus, fake: fake, rec: &recorder{}}
	r.m = newTUIModel(context.Background(), fake, bus, r.rec.send)
	r.settle(r.m.Init())
	t.Cleanup(func() { r.m.mic.Close() })
	return r
}

// settle runs cmd and everything it leads to synchronously, feeding results
// and recorded sends back into the model.
func (r *tuiRig) settle(cmd tea.Cmd) {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		// Sends happened while the command ran, before it returned.
		for _, sent := range r.rec.take() {
			queue = append(queue, r.update(sent))
		}
		switch msg := msg.(type) {
		case nil, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			queue = append(queue, r.update(msg))
		}
	}
}

func (r *tuiRig) update(msg tea.Msg) tea.Cmd {
	next, cmd := r.m.Update(msg)
	r.m = next.(tuiModel)
	return cmd
}

func (r *tuiRig) press(msgs ...tea.KeyMsg) {
	for _, msg := range msgs {
		r.settle(r.update(msg))
	}
}

func (r *tuiRig) focusOn(f field) {
	for r.m.focus != f {
		r.press(tea.KeyMsg{Type: tea.KeyTab})
	}
}

// leases counts held listener leases once the pickers' background calls finish.
func (r *tuiRig) leases() int {
	r.m.wait()
	return r.fake.Leases()
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func (r *tuiRig) called(name string) bool {
	for _, c := range r.fake.Calls() {
		if c == name {
			return true
		}
	}
	return false
}

func TestSettingsLoad(t *testing.T) {
	r := newTUIRig(t)
	if !r.m.loaded {
		t.Fatal("config not loaded after Init")
	}
	if len(r.m.devices) != 2 || len(r.m.catalog) == 0 {
		t.Fatalf("devices = %v, catalog = %d entries", r.m.devices, len(r.m.catalog))
	}
	view := r.m.View()
	for _, want := range []string{"Toggle (press to start/stop)", "Super + Insert", "Ready", "French", "(Recommended)", "6 GB RAM"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestCaptureHotkey(t *testing.T) {
	r := newTUIRig(t)
	r.focusOn(fieldToggle)
	r.press(enter)
	if st := r.m.toggle.State(); st != capture.Capturing {
		t.Fatalf("state = %v, want capturing", st)
	}
	if r.leases() != 1 {
		t.Fatalf("leases = %d, want 1 while capturing", r.leases())
	}
	if !strings.Contains(r.m.View(), "Press your shortcut...") {
		t.Error("placeholder not shown while capturing")
	}

	// Navigation keys belong to the picker while it is capturing.
	r.press(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r"), Alt: true})

	cfg, _ := r.fake.GetConfig(context.Background())
	if cfg.Hotkey != "Alt+R" {
		t.Errorf("hotkey = %q, want Alt+R", cfg.Hotkey)
	}
	if r.m.cfg.Hotkey != "Alt+R" {
		t.Errorf("model config not refreshed: %q", r.m.cfg.Hotkey)
	}
	if r.m.toggle.State() != capture.Idle || r.leases() != 0 {
		t.Errorf("state = %v, leases = %d after commit", r.m.toggle.State(), r.leases())
	}
	if r.m.focus != fieldToggle {
		t.Errorf("focus moved to %v", r.m.focus)
	}
}

func TestCaptureEscapeCancels(t *testing.T) {
	r := newTUIRig(t)
	r.focusOn(fieldToggle)
	r.press(enter, tea.KeyMsg{Type: tea.KeyEsc})
	if r.m.toggle.State() != capture.Idle || r.leases() != 0 {
		t.Fatalf("state = %v, leases = %d", r.m.toggle.State(), r.leases())
	}
	if r.called("UpdateHotkey") {
		t.Error("cancelled capture was saved")
	}
}

func TestPushToTalkClear(t *testing.T) {
	r := newTUIRig(t)
	r.focusOn(fieldPTT)
	r.press(enter, tea.KeyMsg{Type: tea.KeyBackspace})
	if r.m.cfg.HotkeyPTT != "" {
		t.Errorf("ptt = %q, want cleared", r.m.cfg.HotkeyPTT)
	}
	if !strings.Contains(r.m.View(), "Not set") {
		t.Error("cleared shortcut not rendered as Not set")
	}
}

func TestCaptureSaveErrorShown(t *testing.T) {
	r := newTUIRig(t)
	r.focusOn(fieldToggle)
	r.press(enter)
	r.fake.Err = errors.New("hotkey taken")
	r.press(runes("r"))
	if !strings.Contains(r.m.View(), "hotkey taken") {
		t.Error("save error not rendered")
	}
	if r.m.toggle.State() != capture.Idle {
		t.Errorf("state = %v", r.m.toggle.State())
	}
}

func TestAutoPasteAndLanguage(t *testing.T) {
	r := newTUIRig(t)
	r.focusOn(fieldAutoPaste)
	r.press(enter)
	if r.m.cfg.AutoPaste {
		t.Error("auto-paste not toggled off")
	}

	r.focusOn(fieldLanguage)
	r.press(tea.KeyMsg{Type: tea.KeyRight})
	if r.m.cfg.Language != "en" {
		t.Errorf("language = %q, want en after fr", r.m.cfg.Language)
	}
	r.press(tea.KeyMsg{Type: tea.KeyLeft}, tea.KeyMsg{Type: tea.KeyLeft})
	if r.m.cfg.Language != "auto" {
		t.Errorf("language = %q, want auto", r.m.cfg.Language)
	}

	r.focusOn(fieldUILocale)
	r.press(enter)
	if r.m.cfg.UILocale != "fr" {
		t.Fatalf("locale = %q", r.m.cfg.UILocale)
	}
	if !strings.Contains(r.m.View(), "Raccourcis") {
		t.Error("view not localized after switching to fr")
	}
}

func TestDeviceCycle(t *testing.T) {
	r := newTUIRig(t)
	r.focusOn(fieldDevice)
	r.press(tea.KeyMsg{Type: tea.KeyLeft})
	if r.m.cfg.AudioDevice == nil || *r.m.cfg.AudioDevice != "USB Mic" {
		t.Fatalf("device = %v, want USB Mic", r.m.cfg.AudioDevice)
	}
	r.press(tea.KeyMsg{Type: tea.KeyRight})
	if r.m.cfg.AudioDevice != nil {
		t.Errorf("device = %q, want default", *r.m.cfg.AudioDevice)
	}
}

func TestMicTest(t *testing.T) {
	r := newTUIRig(t)
	r.fake.Levels = []float64{0.01, 0.3, 0.05}
	r.focusOn(fieldMicTest)
	r.press(enter)
	if r.m.micSnap.State != miccheck.Success {
		t.Fatalf("mic state = %v, want success", r.m.micSnap.State)
	}
	if !strings.Contains(r.m.View(), "Microphone OK") {
		t.Error("result not rendered")
	}

	r.fake.Levels = []float64{0.001}
	r.m.micSnap = miccheck.Snapshot{}
	r.press(enter)
	if r.m.micSnap.State != miccheck.NoSound {
		t.Errorf("mic state = %v, want no_sound", r.m.micSnap.State)
	}
}

func TestModelDownloadLoadDelete(t *testing.T) {
	r := newTUIRig(t)
	r.focusOn(fieldModel)
	id := r.m.catalog[0].ID

	r.press(enter)
	if !r.called("DownloadModel") {
		t.Fatal("download not started")
	}
	if len(r.m.trackers) != 0 || len(r.m.progress) != 0 {
		t.Errorf("download state left behind: %d trackers, %d snapshots", len(r.m.trackers), len(r.m.progress))
	}
	if n := r.bus.Subscribers(events.DownloadProgressName); n != 0 {
		t.Errorf("%d progress subscribers after completion", n)
	}
	if !r.m.catalog[0].IsDownloaded {
		t.Fatal("catalog not refreshed after download")
	}

	r.press(enter)
	if r.m.cfg.ActiveModel == nil || *r.m.cfg.ActiveModel != id {
		t.Fatalf("active model = %v, want %s", r.m.cfg.ActiveModel, id)
	}

	r.press(runes("x"))
	if r.m.catalog[0].IsDownloaded {
		t.Error("model still listed as installed after delete")
	}
}

func TestDownloadProgressRendered(t *testing.T) {
	r := newTUIRig(t)
	id := r.m.catalog[1].ID
	r.m.cursor = 1
	r.m.trackers[id] = nil
	r.update(progressMsg(events.DownloadProgress{ModelID: id, DownloadedBytes: 12_340_000, TotalBytes: 147_000_000, Percent: 8.4}))
	if !strings.Contains(r.m.View(), "12.3 / 147.0 MB (8%)") {
		t.Error("progress not rendered")
	}
}

func TestStatusLine(t *testing.T) {
	r := newTUIRig(t)
	r.update(stateMsg(appstate.State{Recording: true}))
	if !strings.Contains(r.m.View(), "Recording...") {
		t.Error("recording not shown")
	}
	msg := "No model selected."
	text := "bonjour tout le monde"
	r.update(stateMsg(appstate.State{Error: &msg, LastTranscription: &text}))
	view := r.m.View()
	if !strings.Contains(view, msg) || !strings.Contains(view, text) {
		t.Errorf("view missing error or last transcription:\n%s", view)
	}
}

func TestCommandErrorNotice(t *testing.T) {
	r := newTUIRig(t)
	r.fake.Err = errors.New("disk full")
	r.focusOn(fieldAutoPaste)
	r.press(enter)
	if !strings.Contains(r.m.View(), "disk full") {
		t.Error("error notice not shown")
	}
	r.press(tea.KeyMsg{Type: tea.KeyTab})
	if r.m.notice != "" {
		t.Error("notice not cleared on navigation")
	}
}

func TestQuitReleasesCapture(t *testing.T) {
	r := newTUIRig(t)
	r.focusOn(fieldToggle)
	r.press(enter)
	_, cmd := r.m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("no quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c did not quit")
	}
	if r.leases() != 0 {
		t.Errorf("leases = %d after quit", r.leases())
	}
}

func TestFocusLossCancelsCapture(t *testing.T) {
	r := newTUIRig(t)
	r.focusOn(fieldToggle)
	r.press(enter)
	if r.leases() != 1 {
		t.Fatalf("leases = %d while capturing", r.leases())
	}

	r.settle(r.update(tea.BlurMsg{}))
	if st := r.m.toggle.State(); st != capture.Idle {
		t.Errorf("state = %v after focus loss, want idle", st)
	}
	if r.leases() != 0 {
		t.Errorf("leases = %d after focus loss", r.leases())
	}
	if r.called("UpdateHotkey") {
		t.Error("focus loss saved a shortcut")
	}
}

// noisyBackend pushes an error event before answering a listener lease.
type noisyBackend struct {
	*backend.Fake
}

func (b noisyBackend) AcquireListener(ctx context.Context, owner string) (func(), error) {
	b.Bus.Emit(events.Error, "device busy")
	return b.Fake.AcquireListener(ctx, owner)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestAttachedCaptureWithEventsDuringSuspend(t *testing.T) {
	daemonBus := events.NewBus()
	fake := backend.NewFake(daemonBus)
	srv := ipc.NewServer(noisyBackend{fake}, daemonBus)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	local := events.NewBus()
	client, err := ipc.Dial(ctx, "ws"+strings.TrimPrefix(hs.URL, "http")+ipc.Path, local)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	waitFor(t, "peer", func() bool { return srv.Peers() == 1 })

	var p *tea.Program
	send := func(msg tea.Msg) { p.Send(msg) }
	m := newTUIModel(ctx, client, local, send)
	var in, out bytes.Buffer
	p = tea.NewProgram(m, tea.WithInput(&in), tea.WithOutput(&out), tea.WithoutSignalHandler(), tea.WithContext(ctx))

	state, err := appstate.New(local, appstate.Options{OnChange: func(s appstate.State) { send(stateMsg(s)) }})
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()

	type result struct {
		m   tea.Model
		err error
	}
	done := make(chan result, 1)
	go func() {
		final, err := p.Run()
		done <- result{final, err}
	}()

	// The toggle picker has focus on start.
	p.Send(enter)
	waitFor(t, "lease on the daemon", func() bool { return fake.Leases() == 1 })
	waitFor(t, "error event", func() bool { return state.State().Error != nil })

	go p.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("settings screen stopped processing messages")
	}
	if res.err != nil {
		t.Fatal(res.err)
	}
	final := res.m.(tuiModel)
	final.wait()
	if final.toggle.State() != capture.Idle {
		t.Errorf("state = %v after quit", final.toggle.State())
	}
	waitFor(t, "lease release", func() bool { return fake.Leases() == 0 })
}
