package engine

import (
	"context"
	"time"
)

// Clock is the timing utility used for settle delays and profiling.
//
// Production code uses SystemClock. Tests inject a manual clock so that
// the fixed settle delays cost nothing and profiled intervals are exact.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep suspends the caller for d or until ctx is done,
	// whichever comes first. Returns ctx.Err() if interrupted.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
//
// Thread-safety: SystemClock is stateless and safe for concurrent use.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sleep waits for d using a timer that is released on cancellation.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
