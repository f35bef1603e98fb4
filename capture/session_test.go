package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"localwhisper/keys"
)

type harness struct {
	acquires, releases int
	acquireErr         error
	saved              []keys.Shortcut
	persistErr         error
	updates            int
	states             []State
}

func (h *harness) options(allowClear bool) Options {
	return Options{
		Name:       "test",
		AllowClear: allowClear,
		Acquire: func(ctx context.Context) (func(), error) {
			if h.acquireErr != nil {
				return nil, h.acquireErr
			}
			h.acquires++
			return func() { h.releases++ }, nil
		},
		Persist: func(ctx context.Context, s keys.Shortcut) error {
			h.saved = append(h.saved, s)
			return h.persistErr
		},
		OnUpdate: func() { h.updates++ },
		OnChange: func(s State) { h.states = append(h.states, s) },
	}
}

func TestCaptureCommitsShortcut(t *testing.T) {
	h := &harness{}
	s := New(h.options(false))
	ctx := context.Background()

	s.Start(ctx)
	s.Wait()
	if s.State() != Capturing || h.acquires != 1 {
		t.Fatalf("state=%v acquires=%d", s.State(), h.acquires)
	}

	if r := s.KeyDown(keys.KeyEvent{Code: "ShiftLeft", Key: "Shift", Shift: true}); r != Consumed {
		t.Fatalf("modifier result = %v", r)
	}
	if s.Preview() != "⇧ + ..." {
		t.Errorf("preview = %q", s.Preview())
	}

	r := s.KeyDown(keys.KeyEvent{Code: "KeyR", Key: "R", Shift: true, Meta: true})
	if r != Resolved {
		t.Fatalf("result = %v, want Resolved", r)
	}
	if got, ok := s.Pending(); !ok || got != "CmdOrCtrl+Shift+R" {
		t.Fatalf("pending = %q, %v", got, ok)
	}
	if h.releases != 0 {
		t.Fatal("listener resumed before persist")
	}

	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	s.Wait()
	if len(h.saved) != 1 || h.saved[0] != "CmdOrCtrl+Shift+R" {
		t.Errorf("saved = %v", h.saved)
	}
	if h.updates != 1 || h.releases != 1 {
		t.Errorf("updates=%d releases=%d", h.updates, h.releases)
	}
	if s.State() != Idle || s.Preview() != "" {
		t.Errorf("state=%v preview=%q", s.State(), s.Preview())
	}
}

func TestEscapeCancelsWithoutSave(t *testing.T) {
	h := &harness{}
	s := New(h.options(true))
	s.Start(context.Background())

	if r := s.KeyDown(keys.KeyEvent{Code: "Escape", Key: "Escape"}); r != Consumed {
		t.Fatalf("result = %v", r)
	}
	if s.State() != Idle {
		t.Errorf("state = %v, want Idle", s.State())
	}
	if len(h.saved) != 0 {
		t.Errorf("persist issued on cancel: %v", h.saved)
	}
	s.Wait()
	if h.releases != 1 {
		t.Errorf("releases = %d, want 1", h.releases)
	}
	want := []State{Capturing, Cancelled, Idle}
	if len(h.states) != len(want) {
		t.Fatalf("states = %v, want %v", h.states, want)
	}
	for i := range want {
		if h.states[i] != want[i] {
			t.Errorf("states = %v, want %v", h.states, want)
		}
	}
}

func TestBlurCancels(t *testing.T) {
	h := &harness{}
	s := New(h.options(false))
	s.Start(context.Background())
	s.Blur()
	s.Wait()
	if s.State() != Idle || h.releases != 1 || len(h.saved) != 0 {
		t.Errorf("state=%v releases=%d saved=%v", s.State(), h.releases, h.saved)
	}
	s.Blur()
	s.Wait()
	if h.releases != 1 {
		t.Errorf("second blur released again")
	}
}

func TestClear(t *testing.T) {
	tests := []struct {
		name       string
		allowClear bool
		ev         keys.KeyEvent
		want       keys.Shortcut
	}{
		{"backspace clears", true, keys.KeyEvent{Code: "Backspace", Key: "Backspace"}, ""},
		{"delete clears", true, keys.KeyEvent{Code: "Delete", Key: "Delete"}, ""},
		{"clear not allowed", false, keys.KeyEvent{Code: "Backspace", Key: "Backspace"}, "Backspace"},
		{"modifier held", true, keys.KeyEvent{Code: "Delete", Key: "Delete", Ctrl: true}, "CmdOrCtrl+Delete"},
		{"shift held", true, keys.KeyEvent{Code: "Backspace", Key: "Backspace", Shift: true}, "Shift+Backspace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &harness{}
			s := New(h.options(tt.allowClear))
			ctx := context.Background()
			s.Start(ctx)
			if r := s.KeyDown(tt.ev); r != Resolved {
				t.Fatalf("result = %v", r)
			}
			if err := s.Commit(ctx); err != nil {
				t.Fatal(err)
			}
			if len(h.saved) != 1 || h.saved[0] != tt.want {
				t.Errorf("saved = %q, want %q", h.saved, tt.want)
			}
		})
	}
}

func TestUnmappedKeyKeepsCapturing(t *testing.T) {
	h := &harness{}
	s := New(h.options(false))
	s.Start(context.Background())

	if r := s.KeyDown(keys.KeyEvent{Code: "CapsLock", Key: "CapsLock"}); r != Consumed {
		t.Fatalf("result = %v", r)
	}
	if s.State() != Capturing {
		t.Errorf("state = %v, want Capturing", s.State())
	}
	s.Wait()
	if h.releases != 0 || len(h.saved) != 0 {
		t.Errorf("releases=%d saved=%v", h.releases, h.saved)
	}
}

func TestPersistFailure(t *testing.T) {
	h := &harness{persistErr: errors.New("invalid shortcut")}
	s := New(h.options(false))
	ctx := context.Background()
	s.Start(ctx)
	s.KeyDown(keys.KeyEvent{Code: "F9", Key: "F9"})

	if err := s.Commit(ctx); err == nil {
		t.Fatal("Commit returned nil error")
	}
	if s.Err() != "invalid shortcut" {
		t.Errorf("Err = %q", s.Err())
	}
	s.Wait()
	if s.State() != Idle || h.releases != 1 || h.updates != 0 {
		t.Errorf("state=%v releases=%d updates=%d", s.State(), h.releases, h.updates)
	}

	// The message stays until the next successful save.
	h.persistErr = nil
	s.Start(ctx)
	if s.Err() == "" {
		t.Error("error cleared by starting a new capture")
	}
	s.KeyDown(keys.KeyEvent{Code: "F9", Key: "F9"})
	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Err() != "" {
		t.Errorf("Err = %q after success", s.Err())
	}
}

func TestSuspendFailureStillCaptures(t *testing.T) {
	h := &harness{acquireErr: errors.New("no listener")}
	s := New(h.options(false))
	ctx := context.Background()
	s.Start(ctx)
	if s.State() != Capturing {
		t.Fatalf("state = %v", s.State())
	}
	s.KeyDown(keys.KeyEvent{Code: "KeyA", Key: "a"})
	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if len(h.saved) != 1 || h.saved[0] != "A" {
		t.Errorf("saved = %v", h.saved)
	}
	s.Wait()
}

func TestIgnoredWhenIdle(t *testing.T) {
	s := New((&harness{}).options(false))
	if r := s.KeyDown(keys.KeyEvent{Code: "KeyA"}); r != Ignored {
		t.Errorf("result = %v, want Ignored", r)
	}
	if err := s.Commit(context.Background()); err != nil {
		t.Errorf("Commit outside CommittedPending: %v", err)
	}
}

func TestKeysIgnoredWhilePending(t *testing.T) {
	h := &harness{}
	s := New(h.options(false))
	s.Start(context.Background())
	s.KeyDown(keys.KeyEvent{Code: "KeyA"})
	if r := s.KeyDown(keys.KeyEvent{Code: "Escape", Key: "Escape"}); r != Ignored {
		t.Errorf("result = %v, want Ignored", r)
	}
	if s.State() != CommittedPending {
		t.Errorf("state = %v", s.State())
	}
}

func TestStartDoesNotWaitForSuspend(t *testing.T) {
	unblock := make(chan struct{})
	var released atomic.Int32
	s := New(Options{
		Name: "slow",
		Acquire: func(ctx context.Context) (func(), error) {
			<-unblock
			return func() { released.Add(1) }, nil
		},
	})

	started := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(started)
	}()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("Start blocked on the listener suspend")
	}
	if s.State() != Capturing {
		t.Fatalf("state = %v, want Capturing", s.State())
	}

	// The capture ends before the suspend answers; the late lease is returned.
	s.KeyDown(keys.KeyEvent{Code: "Escape", Key: "Escape"})
	close(unblock)
	s.Wait()
	if released.Load() != 1 {
		t.Errorf("late lease released %d times, want 1", released.Load())
	}
}

func TestLateSuspendNotAttachedToNextCapture(t *testing.T) {
	first := make(chan struct{})
	var calls, released atomic.Int32
	s := New(Options{
		Name: "restart",
		Acquire: func(ctx context.Context) (func(), error) {
			if calls.Add(1) == 1 {
				<-first
			}
			return func() { released.Add(1) }, nil
		},
	})
	ctx := context.Background()

	s.Start(ctx)
	s.Cancel()
	s.Start(ctx)
	close(first)
	s.Wait()
	if released.Load() != 1 {
		t.Fatalf("released = %d, want only the stale lease", released.Load())
	}

	s.Cancel()
	s.Wait()
	if released.Load() != 2 {
		t.Errorf("released = %d, want 2 after the second capture ends", released.Load())
	}
}

func TestConcurrentCommitPersistsOnce(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var persists atomic.Int32
	s := New(Options{
		Name: "once",
		Persist: func(ctx context.Context, sc keys.Shortcut) error {
			if persists.Add(1) == 1 {
				close(entered)
			}
			<-unblock
			return nil
		},
	})
	ctx := context.Background()
	s.Start(ctx)
	s.KeyDown(keys.KeyEvent{Code: "F8", Key: "F8"})

	done := make(chan error, 1)
	go func() { done <- s.Commit(ctx) }()
	<-entered

	if err := s.Commit(ctx); err != nil {
		t.Errorf("second Commit = %v", err)
	}
	close(unblock)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if persists.Load() != 1 {
		t.Errorf("persisted %d times, want 1", persists.Load())
	}
	if s.State() != Idle {
		t.Errorf("state = %v", s.State())
	}
}
