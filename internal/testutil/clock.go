package testutil

import "sync"

// DefaultEpoch is the starting reading of a new ManualClock.
const DefaultEpoch uint64 = 1_700_000_000

// ManualClock is a wall clock that only moves when told to.
//
// Unlike handshake.SystemClock, ManualClock can be set, advanced and
// rewound, so tests can place an intent's expiry or skew window exactly.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

// NewManualClock creates a clock reading DefaultEpoch.
func NewManualClock() *ManualClock {
	return &ManualClock{now: DefaultEpoch}
}

// NewManualClockAt creates a clock reading now.
func NewManualClockAt(now uint64) *ManualClock {
	return &ManualClock{now: now}
}

// NowUnixSeconds returns the current reading.
//
// Implements handshake.Clock.
func (c *ManualClock) NowUnixSeconds() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by seconds.
func (c *ManualClock) Advance(seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
}

// Rewind moves the clock backward by seconds, stopping at zero.
// Real clocks never do this; tests use it to model a counterpart whose
// clock runs ahead.
func (c *ManualClock) Rewind(seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seconds > c.now {
		c.now = 0
		return
	}
	c.now -= seconds
}

// Set moves the clock to now.
func (c *ManualClock) Set(now uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
