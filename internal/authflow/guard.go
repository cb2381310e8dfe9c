package authflow

import (
	"sync"

	"github.com/vittapay/portal-gateway/internal/domain"
)

// attemptGuard enforces two invariants per identity: only one submit may be
// in flight at a time, and a completion belonging to an abandoned or
// replaced attempt must be discarded. Generations implement the second; a
// new attempt or an explicit Back bumps the counter, and commits check the
// generation they captured at dispatch time.
type attemptGuard struct {
	mu         sync.Mutex
	inFlight   map[string]bool
	generation map[string]uint64
}

func newAttemptGuard() *attemptGuard {
	return &attemptGuard{
		inFlight:   make(map[string]bool),
		generation: make(map[string]uint64),
	}
}

// beginNew starts a fresh attempt: prior attempts for the identity are
// superseded before the in-flight slot is taken.
func (g *attemptGuard) beginNew(identity string) (uint64, func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[identity] {
		return 0, nil, domain.ErrAttemptInFlight
	}
	g.generation[identity]++
	g.inFlight[identity] = true
	return g.generation[identity], g.releaseFunc(identity), nil
}

// beginExisting continues the current attempt (OTP verification) without
// superseding it.
func (g *attemptGuard) beginExisting(identity string) (uint64, func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[identity] {
		return 0, nil, domain.ErrAttemptInFlight
	}
	g.inFlight[identity] = true
	return g.generation[identity], g.releaseFunc(identity), nil
}

// supersede invalidates the identity's current attempt.
func (g *attemptGuard) supersede(identity string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.generation[identity]++
}

// current reports whether gen is still the identity's live attempt.
func (g *attemptGuard) current(identity string, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generation[identity] == gen
}

func (g *attemptGuard) releaseFunc(identity string) func() {
	return func() {
		g.mu.Lock()
		delete(g.inFlight, identity)
		g.mu.Unlock()
	}
}
