// Package events carries backend push notifications to any number of
// subscribers. Payloads travel as JSON so the same bus serves in-process
// consumers and the WebSocket bridge.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("event bus closed")

// Handler receives the raw JSON payload of one event.
type Handler func(payload json.RawMessage)

// Source is anything that can hand out subscriptions.
type Source interface {
	Listen(name string, h Handler) (*Subscription, error)
}

// Emitter publishes events.
type Emitter interface {
	Emit(name string, payload any) error
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[string]Handler
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[string]Handler)}
}

// Listen registers h for events named name until the returned subscription
// is cancelled.
func (b *Bus) Listen(name string, h Handler) (*Subscription, error) {
	if h == nil {
		return nil, fmt.Errorf("listen %s: nil handler", name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	id := uuid.NewString()
	if b.subs[name] == nil {
		b.subs[name] = make(map[string]Handler)
	}
	b.subs[name][id] = h
	return newSubscription(name, func() { b.remove(name, id) }), nil
}

func (b *Bus) remove(name, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m := b.subs[name]; m != nil {
		delete(m, id)
		if len(m) == 0 {
			delete(b.subs, name)
		}
	}
}

// Emit marshals payload and delivers it synchronously to every current
// subscriber of name. A nil payload is sent as JSON null.
func (b *Bus) Emit(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("emit %s: %w", name, err)
	}
	return b.EmitRaw(name, data)
}

// EmitRaw delivers an already encoded payload.
func (b *Bus) EmitRaw(name string, payload json.RawMessage) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	handlers := make([]Handler, 0, len(b.subs[name]))
	for _, h := range b.subs[name] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
	return nil
}

// Subscribers returns the number of live subscriptions for name.
func (b *Bus) Subscribers(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Close drops every subscription. Later Listen and Emit calls fail with
// ErrClosed; cancelling an old subscription stays safe.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string]map[string]Handler)
}

// Subscription is a live registration. Cancel is idempotent.
type Subscription struct {
	name   string
	once   sync.Once
	cancel func()
}

func newSubscription(name string, cancel func()) *Subscription {
	return &Subscription{name: name, cancel: cancel}
}

func (s *Subscription) Name() string { return s.name }

func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
