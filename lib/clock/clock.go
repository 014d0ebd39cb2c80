package clock

import (
	"sync"
	"time"
)

// Clock abstracts the time source of a store so expiration can be driven by
// real or simulated time.
//
// Implementations must be monotonic: Now never returns a time earlier than a
// previous call. Stores treat this as a precondition and do not check it.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// --------------------------------------------------------------------------
// Real clock
// --------------------------------------------------------------------------

// RealClock delegates to the standard time package. The returned times carry
// the runtime's monotonic reading, so comparisons between them are immune to
// wall clock adjustments.
type RealClock struct{}

func NewRealClock() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

// --------------------------------------------------------------------------
// Virtual clock
// --------------------------------------------------------------------------

// VirtualClock is a controllable clock for deterministic expiration tests and
// for the interactive shell. Time only moves when Advance or Set is called.
//
// Thread-safe for concurrent use.
type VirtualClock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewVirtualClock creates a VirtualClock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{
		current: start,
	}
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Advance moves the virtual clock forward by d.
// Panics if d is negative.
func (c *VirtualClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
}

// Set moves the virtual clock to an exact time.
// Panics if t is before the current time.
func (c *VirtualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.Before(c.current) {
		panic("clock: cannot set time to the past")
	}

	c.current = t
}
