// Package testutil provides deterministic stand-ins for the clock and token
// sources the engine and harness take as injection points.
package testutil

import (
	"sync"
	"time"
)

// FixedClock is a thread-safe wall clock pinned to a known instant.
//
// Injected through engine.WithClock, it makes managed datetime stamps
// reproducible: the same scenario with the same FixedClock produces
// byte-identical timestamps.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock creates a clock pinned to the given instant.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t.UTC()}
}

// Now returns the pinned instant. Matches the func() time.Time shape the
// engine expects.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the pinned instant forward by d and returns the new instant.
func (c *FixedClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

// Set pins the clock to a new instant.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t.UTC()
}
