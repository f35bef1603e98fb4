// Package appstate folds the recording, transcription and error push events
// into the single state object the settings screen renders.
package appstate

import (
	"fmt"
	"sync"
	"time"

	"localwhisper/events"
)

const DefaultErrorTTL = 5 * time.Second

type State struct {
	Recording         bool
	Transcribing      bool
	LastTranscription *string
	Error             *string
	// ErrorDeadline is when Error will be cleared; zero without an error.
	ErrorDeadline time.Time
}

type Options struct {
	ErrorTTL time.Duration
	OnChange func(State)
}

// Bus owns State. Only the four event handlers mutate it.
type Bus struct {
	opts Options

	mu       sync.Mutex
	state    State
	errGen   uint64
	errTimer *time.Timer
	subs     []*events.Subscription
	closed   bool
}

// New subscribes to all four event kinds. If any subscription fails the ones
// already made are cancelled and the error is returned: the bus never runs
// with a partial set.
func New(src events.Source, opts Options) (*Bus, error) {
	if opts.ErrorTTL <= 0 {
		opts.ErrorTTL = DefaultErrorTTL
	}
	b := &Bus{opts: opts}

	steps := []struct {
		name string
		sub  func() (*events.Subscription, error)
	}{
		{events.RecordingStateChanged, func() (*events.Subscription, error) {
			return events.OnRecordingStateChanged(src, b.onRecording)
		}},
		{events.TranscriptionStarted, func() (*events.Subscription, error) {
			return events.OnTranscriptionStarted(src, b.onStarted)
		}},
		{events.TranscriptionComplete, func() (*events.Subscription, error) {
			return events.OnTranscriptionComplete(src, b.onComplete)
		}},
		{events.Error, func() (*events.Subscription, error) {
			return events.OnError(src, b.onError)
		}},
	}
	for _, s := range steps {
		sub, err := s.sub()
		if err != nil {
			for _, prev := range b.subs {
				prev.Cancel()
			}
			return nil, fmt.Errorf("app state: subscribe %s: %w", s.name, err)
		}
		b.subs = append(b.subs, sub)
	}
	return b, nil
}

func (b *Bus) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bus) onRecording(recording bool) {
	b.update(func(s *State) { s.Recording = recording })
}

func (b *Bus) onStarted() {
	b.update(func(s *State) { s.Transcribing = true })
}

func (b *Bus) onComplete(text string) {
	b.update(func(s *State) {
		s.Transcribing = false
		s.LastTranscription = &text
	})
}

func (b *Bus) onError(msg string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.state.Transcribing = false
	b.state.Error = &msg
	b.state.ErrorDeadline = time.Now().Add(b.opts.ErrorTTL)
	if b.errTimer != nil {
		b.errTimer.Stop()
	}
	b.errGen++
	gen := b.errGen
	b.errTimer = time.AfterFunc(b.opts.ErrorTTL, func() { b.clearError(gen) })
	st := b.state
	b.mu.Unlock()
	b.notify(st)
}

func (b *Bus) clearError(gen uint64) {
	b.mu.Lock()
	if b.closed || gen != b.errGen {
		b.mu.Unlock()
		return
	}
	b.state.Error = nil
	b.state.ErrorDeadline = time.Time{}
	b.errTimer = nil
	st := b.state
	b.mu.Unlock()
	b.notify(st)
}

func (b *Bus) update(fn func(*State)) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	fn(&b.state)
	st := b.state
	b.mu.Unlock()
	b.notify(st)
}

func (b *Bus) notify(st State) {
	if b.opts.OnChange != nil {
		b.opts.OnChange(st)
	}
}

// Close cancels every subscription and the pending error clear. Safe to call
// more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.errGen++
	if b.errTimer != nil {
		b.errTimer.Stop()
		b.errTimer = nil
	}
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
}
