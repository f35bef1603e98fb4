// Package miccheck runs a microphone test window and classifies whether any
// sound reached the input device.
package miccheck

import (
	"context"
	"errors"
	"sync"
	"time"

	"localwhisper/events"
	"localwhisper/log"
)

type State int

const (
	Idle State = iota
	Testing
	Success
	NoSound
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Testing:
		return "testing"
	case Success:
		return "success"
	case NoSound:
		return "no_sound"
	case Error:
		return "error"
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s == Success || s == NoSound || s == Error
}

const (
	// Threshold is the peak a test must exceed to count as sound.
	Threshold = 0.02

	DefaultResetDelay = 4 * time.Second
)

var ErrBusy = errors.New("microphone test already running")

// ErrNoTest is returned by Run when no backend test was configured.
var ErrNoTest = errors.New("no microphone test configured")

// Snapshot is what a level meter renders.
type Snapshot struct {
	State   State
	Level   float64
	Peak    float64
	Message string
}

type Options struct {
	Source events.Source
	// Test runs the blocking backend test window.
	Test       func(ctx context.Context) error
	ResetDelay time.Duration
	OnChange   func(Snapshot)
}

type Monitor struct {
	opts Options

	mu     sync.Mutex
	state  State
	level  float64
	peak   float64
	msg    string
	gen    uint64
	timer  *time.Timer
	closed bool
}

func New(opts Options) *Monitor {
	if opts.ResetDelay <= 0 {
		opts.ResetDelay = DefaultResetDelay
	}
	return &Monitor{opts: opts}
}

func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Monitor) snapshotLocked() Snapshot {
	return Snapshot{State: m.state, Level: m.level, Peak: m.peak, Message: m.msg}
}

func (m *Monitor) State() State { return m.Snapshot().State }

// Classify applies the sound threshold to a peak.
func Classify(peak float64) State {
	if peak > Threshold {
		return Success
	}
	return NoSound
}

// Run performs one test window and returns its classification. The error is
// the backend failure when the state is Error.
func (m *Monitor) Run(ctx context.Context) (State, error) {
	if m.opts.Test == nil {
		return Idle, ErrNoTest
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Idle, errors.New("monitor closed")
	}
	if m.state == Testing {
		m.mu.Unlock()
		return Testing, ErrBusy
	}
	m.stopTimerLocked()
	m.gen++
	gen := m.gen
	m.state = Testing
	m.level = 0
	m.peak = 0
	m.msg = ""
	m.mu.Unlock()
	m.notify()

	sub, err := events.OnMicTestLevel(m.opts.Source, func(v float64) { m.sample(gen, v) })
	if err != nil {
		m.finish(gen, err)
		return Error, err
	}

	testErr := m.opts.Test(ctx)
	sub.Cancel()

	return m.finish(gen, testErr), testErr
}

func (m *Monitor) sample(gen uint64, v float64) {
	m.mu.Lock()
	if gen != m.gen || m.state != Testing {
		m.mu.Unlock()
		return
	}
	m.level = v
	if v > m.peak {
		m.peak = v
	}
	m.mu.Unlock()
	m.notify()
}

func (m *Monitor) finish(gen uint64, testErr error) State {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return Idle
	}
	if testErr != nil {
		m.state = Error
		m.msg = testErr.Error()
	} else {
		m.state = Classify(m.peak)
	}
	st, peak := m.state, m.peak
	if !m.closed {
		m.timer = time.AfterFunc(m.opts.ResetDelay, func() { m.reset(gen) })
	}
	m.mu.Unlock()

	log.MicTest("", st.String(), peak)
	m.notify()
	return st
}

func (m *Monitor) reset(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.state.Terminal() {
		m.mu.Unlock()
		return
	}
	m.state = Idle
	m.level = 0
	m.msg = ""
	m.timer = nil
	m.mu.Unlock()
	m.notify()
}

func (m *Monitor) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Close cancels a pending auto-reset. The monitor cannot be reused.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.gen++
	m.stopTimerLocked()
}

func (m *Monitor) notify() {
	if m.opts.OnChange == nil {
		return
	}
	m.opts.OnChange(m.Snapshot())
}
