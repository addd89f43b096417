// Package clock provides the virtual time manager for the simulation.
//
// Virtual time is measured in seconds from scenario start and advances only
// through explicit Advance calls made by the environment loop. Reads are safe
// from any goroutine; writes happen only on the loop goroutine.
package clock

import (
	"fmt"
	"sync"
)

// Clock holds the virtual clock for a single environment.
type Clock struct {
	mu sync.RWMutex
	t  float64
}

// New creates a clock positioned at start seconds.
func New(start float64) *Clock {
	if start < 0 {
		start = 0
	}
	return &Clock{t: start}
}

// Time returns the current virtual time in seconds.
func (c *Clock) Time() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Advance moves the clock forward by d seconds. d must be positive:
// virtual time is monotonic.
func (c *Clock) Advance(d float64) error {
	if d <= 0 {
		return fmt.Errorf("clock advance must be positive, got %v", d)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t += d
	return nil
}

// Reset positions the clock at t0. Used when an environment is re-seeded
// for a fresh run.
func (c *Clock) Reset(t0 float64) error {
	if t0 < 0 {
		return fmt.Errorf("clock reset time must be non-negative, got %v", t0)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t0
	return nil
}
