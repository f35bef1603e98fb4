// Package listener guards the global hotkey listener with leases. The
// listener stays suspended while at least one lease is held and resumes when
// the last one is released, so overlapping capture sessions cannot re-enable
// it early.
package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"localwhisper/log"
)

// Target is the listener being suspended.
type Target interface {
	Suspend() error
	Resume() error
}

// Release gives a lease back. Calling it more than once is a no-op.
type Release = func()

var ErrClosed = errors.New("listener gate closed")

// legacyToken backs the boolean Suspend/Resume pair.
const legacyToken = "legacy"

type Gate struct {
	mu     sync.Mutex
	target Target
	leases map[string]string // token -> owner
	closed bool
}

func NewGate(target Target) *Gate {
	return &Gate{target: target, leases: make(map[string]string)}
}

// Acquire suspends the listener (if this is the first lease) and returns the
// capability that releases this lease. If suspension fails no lease is kept.
func (g *Gate) Acquire(ctx context.Context, owner string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	token := uuid.NewString()
	if err := g.acquire(token, owner); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { g.release(token) }) }, nil
}

func (g *Gate) acquire(token, owner string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if _, held := g.leases[token]; held {
		return nil
	}
	if len(g.leases) == 0 {
		if err := g.target.Suspend(); err != nil {
			return fmt.Errorf("suspend listener: %w", err)
		}
	}
	g.leases[token] = owner
	return nil
}

func (g *Gate) release(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.leases[token]; !held {
		return
	}
	delete(g.leases, token)
	if len(g.leases) == 0 && !g.closed {
		if err := g.target.Resume(); err != nil {
			log.Warnf("resume listener: %v", err)
		}
	}
}

// Suspend takes the single legacy lease. Repeated calls share it.
func (g *Gate) Suspend() error {
	return g.acquire(legacyToken, "legacy")
}

// Resume drops the legacy lease. Leases taken through Acquire stay in force.
func (g *Gate) Resume() {
	g.release(legacyToken)
}

// Held returns the number of outstanding leases.
func (g *Gate) Held() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.leases)
}

// Owners lists the owners of outstanding leases, for diagnostics.
func (g *Gate) Owners() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	owners := make([]string, 0, len(g.leases))
	for _, o := range g.leases {
		owners = append(owners, o)
	}
	return owners
}

// Close forgets every lease without resuming the target.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.leases = make(map[string]string)
}
