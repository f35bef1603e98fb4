package hotkey

import (
	"errors"
	"fmt"
	"sync"

	"localwhisper/log"
)

var ErrSameShortcut = errors.New("toggle and push-to-talk use the same shortcut")

// Factory builds a platform hotkey; New in production, FakeFactory.New in tests.
type Factory func(Accelerator) (Hotkey, error)

type binding struct {
	hk   Hotkey
	stop chan struct{}
}

// Manager owns the toggle and push-to-talk registrations. While suspended
// (a shortcut is being captured in the settings screen) nothing is
// registered; Set only records the new shortcuts, which take effect on
// Resume.
type Manager struct {
	factory Factory
	parse   func(string) (Accelerator, error)
	trigger *Trigger

	mu        sync.Mutex
	toggle    string
	ptt       string
	active    []binding
	suspended bool
	closed    bool
}

func NewManager(factory Factory, trigger *Trigger) *Manager {
	return &Manager{factory: factory, parse: Parse, trigger: trigger}
}

// Set replaces both shortcuts and re-registers them. An empty ptt disables
// push-to-talk.
func (m *Manager) Set(toggle, ptt string) error {
	if err := m.Check(toggle, ptt); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toggle, m.ptt = toggle, ptt
	if m.suspended || m.closed {
		return nil
	}
	m.unregisterLocked()
	return m.registerLocked()
}

// Check reports whether toggle and ptt would be accepted by Set without
// touching the current registrations.
func (m *Manager) Check(toggle, ptt string) error {
	var ta, pa Accelerator
	var err error
	if toggle != "" {
		if ta, err = m.parse(toggle); err != nil {
			return fmt.Errorf("toggle shortcut %q: %w", toggle, err)
		}
	}
	if ptt != "" {
		if pa, err = m.parse(ptt); err != nil {
			return fmt.Errorf("push-to-talk shortcut %q: %w", ptt, err)
		}
	}
	if toggle != "" && ptt != "" && ta == pa {
		return ErrSameShortcut
	}
	return nil
}

func (m *Manager) Bindings() (toggle, ptt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toggle, m.ptt
}

// Suspend unregisters both shortcuts.
func (m *Manager) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = true
	m.unregisterLocked()
	return nil
}

// Resume registers the current shortcuts again.
func (m *Manager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.suspended = false
	m.unregisterLocked()
	return m.registerLocked()
}

func (m *Manager) Suspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.unregisterLocked()
}

func (m *Manager) registerLocked() error {
	var errs []error
	if m.toggle != "" {
		if err := m.bindLocked(m.toggle, m.trigger.Toggle, nil); err != nil {
			errs = append(errs, fmt.Errorf("toggle: %w", err))
		}
	}
	if m.ptt != "" {
		if err := m.bindLocked(m.ptt, m.trigger.PTTDown, m.trigger.PTTUp); err != nil {
			errs = append(errs, fmt.Errorf("push-to-talk: %w", err))
		}
	}
	err := errors.Join(errs...)
	log.HotkeyRegistered(m.toggle, m.ptt, err)
	return err
}

func (m *Manager) bindLocked(s string, onDown, onUp func()) error {
	a, err := m.parse(s)
	if err != nil {
		return err
	}
	hk, err := m.factory(a)
	if err != nil {
		return err
	}
	if err := hk.Register(); err != nil {
		return err
	}
	b := binding{hk: hk, stop: make(chan struct{})}
	m.active = append(m.active, b)
	go pump(hk, b.stop, onDown, onUp)
	return nil
}

func pump(hk Hotkey, stop <-chan struct{}, onDown, onUp func()) {
	for {
		select {
		case <-stop:
			return
		case <-hk.Keydown():
			if onDown != nil {
				onDown()
			}
		case <-hk.Keyup():
			if onUp != nil {
				onUp()
			}
		}
	}
}

func (m *Manager) unregisterLocked() {
	for _, b := range m.active {
		close(b.stop)
		b.hk.Unregister()
	}
	m.active = nil
}
