package tray

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"sync"
	"testing"
	"time"

	"localwhisper/appstate"
)

type fakeSurface struct {
	mu       sync.Mutex
	icons    [][]byte
	tooltip  string
	copyLast string
	quit     string
	copyOn   bool
}

func (f *fakeSurface) SetIcon(icon []byte) {
	f.mu.Lock()
	f.icons = append(f.icons, icon)
	f.mu.Unlock()
}

func (f *fakeSurface) SetTooltip(text string) {
	f.mu.Lock()
	f.tooltip = text
	f.mu.Unlock()
}

func (f *fakeSurface) SetLabels(copyLast, quit string) {
	f.mu.Lock()
	f.copyLast, f.quit = copyLast, quit
	f.mu.Unlock()
}

func (f *fakeSurface) SetCopyEnabled(on bool) {
	f.mu.Lock()
	f.copyOn = on
	f.mu.Unlock()
}

func (f *fakeSurface) last() ([]byte, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.icons) == 0 {
		return nil, f.tooltip, f.copyOn
	}
	return f.icons[len(f.icons)-1], f.tooltip, f.copyOn
}

func (f *fakeSurface) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.icons)
}

func newTestTray(t *testing.T, opts Options) (*Tray, *fakeSurface) {
	t.Helper()
	tr := New(opts)
	ui := &fakeSurface{}
	tr.attach(ui)
	t.Cleanup(tr.Close)
	return tr, ui
}

func ptr(s string) *string { return &s }

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name  string
		state appstate.State
		want  Status
	}{
		{"idle", appstate.State{}, Idle},
		{"recording", appstate.State{Recording: true}, Recording},
		{"transcribing", appstate.State{Transcribing: true}, Processing},
		{"error wins", appstate.State{Recording: true, Error: ptr("mic gone")}, Failed},
		{"recording wins over transcribing", appstate.State{Recording: true, Transcribing: true}, Recording},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.state); got != tt.want {
				t.Errorf("StatusOf(%+v) = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestUpdateRendersState(t *testing.T) {
	locale := "en"
	tr, ui := newTestTray(t, Options{Locale: func() string { return locale }})

	icon, tip, _ := ui.last()
	if !bytes.Equal(icon, iconIdle) || tip != "LocalWhisper" {
		t.Fatalf("initial tooltip = %q", tip)
	}
	if ui.copyLast != "Copy last transcription" || ui.quit != "Quit" {
		t.Errorf("labels = %q, %q", ui.copyLast, ui.quit)
	}

	tr.Update(appstate.State{Recording: true})
	icon, tip, _ = ui.last()
	if !bytes.Equal(icon, iconRecording) || tip != "LocalWhisper - Recording..." {
		t.Errorf("recording tooltip = %q", tip)
	}

	locale = "fr"
	tr.Update(appstate.State{Error: ptr("Micro introuvable")})
	icon, tip, _ = ui.last()
	if !bytes.Equal(icon, iconError) || tip != "LocalWhisper - Micro introuvable" {
		t.Errorf("error tooltip = %q", tip)
	}
	if ui.quit != "Quitter" {
		t.Errorf("quit label = %q after locale change", ui.quit)
	}
	if tr.Status() != Failed {
		t.Errorf("status = %v", tr.Status())
	}
}

func TestCopyEnabledAfterTranscription(t *testing.T) {
	tr, ui := newTestTray(t, Options{})
	if _, _, on := ui.last(); on {
		t.Fatal("copy enabled before any transcription")
	}
	tr.Update(appstate.State{LastTranscription: ptr("bonjour")})
	if _, _, on := ui.last(); !on {
		t.Error("copy not enabled after a transcription")
	}
}

func TestProcessingAnimates(t *testing.T) {
	tr, ui := newTestTray(t, Options{FrameInterval: 5 * time.Millisecond})
	before := ui.count()
	tr.Update(appstate.State{Transcribing: true})

	deadline := time.After(2 * time.Second)
	for ui.count() < before+4 {
		select {
		case <-deadline:
			t.Fatalf("animation produced %d frames", ui.count()-before)
		case <-time.After(5 * time.Millisecond):
		}
	}
	icon, tip, _ := ui.last()
	if tip != "LocalWhisper - Transcribing..." {
		t.Errorf("tooltip = %q", tip)
	}
	found := false
	for _, frame := range iconProcessing {
		if bytes.Equal(icon, frame) {
			found = true
		}
	}
	if !found {
		t.Error("last icon is not a processing frame")
	}

	tr.Update(appstate.State{LastTranscription: ptr("done")})
	// Let a pending tick observe the new state.
	time.Sleep(20 * time.Millisecond)
	n := ui.count()
	time.Sleep(30 * time.Millisecond)
	if ui.count() != n {
		t.Error("animation kept running after transcription finished")
	}
	if icon, _, _ := ui.last(); !bytes.Equal(icon, iconIdle) {
		t.Error("icon not back to idle")
	}
}

func TestCopyLast(t *testing.T) {
	var copied string
	last := "texte dicté"
	tr, _ := newTestTray(t, Options{
		Last: func(context.Context) (string, error) { return last, nil },
		Copy: func(text string) error { copied = text; return nil },
	})
	if err := tr.CopyLast(context.Background()); err != nil {
		t.Fatal(err)
	}
	if copied != "texte dicté" {
		t.Errorf("copied = %q", copied)
	}

	last = ""
	if err := tr.CopyLast(context.Background()); !errors.Is(err, ErrNoHistory) {
		t.Errorf("empty history: %v", err)
	}

	bare, _ := newTestTray(t, Options{})
	if err := bare.CopyLast(context.Background()); !errors.Is(err, ErrNoHistory) {
		t.Errorf("no history configured: %v", err)
	}
}

func TestQuitOnce(t *testing.T) {
	quits := 0
	tr, _ := newTestTray(t, Options{OnQuit: func() { quits++ }})
	tr.Quit()
	tr.Quit()
	if quits != 1 {
		t.Errorf("OnQuit ran %d times", quits)
	}
	select {
	case <-tr.Done():
	default:
		t.Error("Done not closed after Quit")
	}
}

func TestUpdateAfterCloseIgnored(t *testing.T) {
	tr, ui := newTestTray(t, Options{})
	tr.Close()
	n := ui.count()
	tr.Update(appstate.State{Recording: true})
	if ui.count() != n || tr.Status() != Idle {
		t.Error("closed tray still rendering")
	}
}

func TestIcons(t *testing.T) {
	if len(iconProcessing) != processingArcs {
		t.Fatalf("%d processing frames", len(iconProcessing))
	}
	all := append([][]byte{iconIdle, iconRecording, iconError}, iconProcessing...)
	for i, icon := range all {
		img, err := png.Decode(bytes.NewReader(icon))
		if err != nil {
			t.Fatalf("icon %d: %v", i, err)
		}
		if b := img.Bounds(); b.Dx() != iconSize || b.Dy() != iconSize {
			t.Errorf("icon %d is %v", i, b)
		}
	}
	if bytes.Equal(iconProcessing[0], iconProcessing[1]) {
		t.Error("processing frames do not differ")
	}
}
