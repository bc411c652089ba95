package testutil

import (
	"context"
	"sync"
	"time"
)

// Epoch is the instant every ManualClock starts at.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// ManualClock is a clock that only moves when told to.
//
// Sleep advances the clock instantly instead of blocking, so code with
// fixed settle delays runs at full speed under test while the elapsed
// time it observes stays exact.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	log    *CallLog
}

// NewManualClock creates a clock at Epoch.
// If log is non-nil every Sleep is also appended to it as "sleep <d>".
func NewManualClock(log *CallLog) *ManualClock {
	return &ManualClock{now: Epoch, log: log}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleep advances the clock by d without blocking.
// Returns ctx.Err() without advancing if ctx is already done.
func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()

	c.log.Add("sleep " + d.String())
	return nil
}

// Sleeps returns every duration passed to Sleep, in order.
func (c *ManualClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// Elapsed returns how far the clock has moved since Epoch.
func (c *ManualClock) Elapsed() time.Duration {
	return c.Now().Sub(Epoch)
}
