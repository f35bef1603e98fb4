// Package capture records a new global shortcut from raw key events.
//
// A Session owns the keyboard while capturing: the global listener is
// suspended through a lease, every key-down is consumed, and the chosen
// shortcut is persisted before the listener is resumed. Leases are taken and
// returned in the background so a UI loop never waits on them.
package capture

import (
	"context"
	"sync"

	"localwhisper/keys"
	"localwhisper/log"
)

type State int

const (
	Idle State = iota
	Capturing
	CommittedPending
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case CommittedPending:
		return "committed_pending"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Result tells the caller what happened to a key-down.
type Result int

const (
	// Ignored: the session is not capturing, the event belongs to someone else.
	Ignored Result = iota
	// Consumed: the event was swallowed; the session may have been cancelled.
	Consumed
	// Resolved: a shortcut was chosen and Commit must be called.
	Resolved
)

type Options struct {
	// Name identifies the picker in logs and as the lease owner.
	Name string
	// AllowClear lets a bare Backspace/Delete commit the empty shortcut.
	AllowClear bool
	// Acquire suspends the global listener and returns its release.
	Acquire func(ctx context.Context) (func(), error)
	// Persist stores the chosen shortcut.
	Persist func(ctx context.Context, s keys.Shortcut) error
	// OnUpdate runs after a successful Persist.
	OnUpdate func()
	// OnChange observes every state transition.
	OnChange func(State)
}

type Session struct {
	opts Options

	mu         sync.Mutex
	state      State
	preview    string
	pending    keys.Shortcut
	committing bool
	errMsg     string
	release    func()
	// gen identifies the capture a background acquire belongs to.
	gen uint64

	leases sync.WaitGroup
}

func New(opts Options) *Session {
	return &Session{opts: opts}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Preview is the live modifier feedback, empty outside Capturing.
func (s *Session) Preview() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// Err is the message of the last failed save. It stays until a save succeeds.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Pending returns the shortcut awaiting Commit.
func (s *Session) Pending() (keys.Shortcut, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.state == CommittedPending
}

// Start enters Capturing and suspends the global listener in the
// background. Suspension failures are logged and ignored so the picker keeps
// working. Calling Start while not Idle does nothing.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return
	}
	s.state = Capturing
	s.preview = ""
	s.pending = ""
	s.gen++
	gen := s.gen
	if s.opts.Acquire != nil {
		s.leases.Add(1)
		go s.acquire(ctx, gen)
	}
	s.mu.Unlock()
	s.notify(Capturing)
}

func (s *Session) acquire(ctx context.Context, gen uint64) {
	defer s.leases.Done()
	release, err := s.opts.Acquire(ctx)
	if err != nil {
		log.Warnf("capture %s: suspend listener: %v", s.opts.Name, err)
		return
	}

	s.mu.Lock()
	if s.gen == gen && (s.state == Capturing || s.state == CommittedPending) {
		s.release = release
		release = nil
	}
	s.mu.Unlock()
	// The capture already ended while acquiring.
	if release != nil {
		release()
	}
}

// Wait blocks until background suspend and resume calls have returned.
func (s *Session) Wait() {
	s.leases.Wait()
}

// KeyDown feeds one raw key-down to the session.
func (s *Session) KeyDown(ev keys.KeyEvent) Result {
	s.mu.Lock()
	if s.state != Capturing {
		s.mu.Unlock()
		return Ignored
	}

	if keys.IsModifierKey(ev.Key) {
		s.preview = keys.Preview(ev)
		s.mu.Unlock()
		s.notify(Capturing)
		return Consumed
	}

	if ev.Code == "Escape" || ev.Key == "Escape" {
		s.mu.Unlock()
		s.cancel()
		return Consumed
	}

	if s.opts.AllowClear && isClearKey(ev) && !keys.ModifiersOf(ev).Any() {
		s.resolve("")
		s.mu.Unlock()
		s.notify(CommittedPending)
		return Resolved
	}

	key, ok := keys.NormalizeEvent(ev)
	if !ok {
		s.mu.Unlock()
		return Consumed
	}
	s.resolve(keys.Encode(keys.ModifiersOf(ev), key))
	s.mu.Unlock()
	s.notify(CommittedPending)
	return Resolved
}

func isClearKey(ev keys.KeyEvent) bool {
	return ev.Code == "Backspace" || ev.Code == "Delete"
}

// resolve must be called with s.mu held.
func (s *Session) resolve(shortcut keys.Shortcut) {
	s.state = CommittedPending
	s.pending = shortcut
	s.preview = ""
}

// Blur is losing input focus; while Capturing it cancels like Escape.
func (s *Session) Blur() {
	s.mu.Lock()
	capturing := s.state == Capturing
	s.mu.Unlock()
	if capturing {
		s.cancel()
	}
}

// Cancel abandons an in-progress capture without saving.
func (s *Session) Cancel() {
	s.Blur()
}

func (s *Session) cancel() {
	s.mu.Lock()
	if s.state != Capturing {
		s.mu.Unlock()
		return
	}
	s.state = Cancelled
	s.preview = ""
	s.mu.Unlock()
	s.notify(Cancelled)
	s.toIdle()
}

// Commit persists the resolved shortcut and returns to Idle. A failed save
// is kept as Err and returned; it is never retried.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	if s.state != CommittedPending || s.committing {
		s.mu.Unlock()
		return nil
	}
	s.committing = true
	shortcut := s.pending
	s.mu.Unlock()

	var err error
	if s.opts.Persist != nil {
		err = s.opts.Persist(ctx, shortcut)
	}
	log.CaptureSaved(s.opts.Name, string(shortcut), err)

	s.mu.Lock()
	if err != nil {
		s.errMsg = err.Error()
	} else {
		s.errMsg = ""
	}
	s.pending = ""
	s.mu.Unlock()

	if err == nil && s.opts.OnUpdate != nil {
		s.opts.OnUpdate()
	}
	s.toIdle()
	return err
}

func (s *Session) toIdle() {
	s.mu.Lock()
	s.state = Idle
	s.preview = ""
	s.committing = false
	release := s.release
	s.release = nil
	if release != nil {
		s.leases.Add(1)
		go func() {
			defer s.leases.Done()
			release()
		}()
	}
	s.mu.Unlock()
	s.notify(Idle)
}

func (s *Session) notify(st State) {
	if s.opts.OnChange != nil {
		s.opts.OnChange(st)
	}
}
