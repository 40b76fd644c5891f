package omp

import (
	"context"
	"time"
)

// Clock provides the pause between polls (injectable for testing).
type Clock interface {
	// Sleep blocks for d or until ctx is done, returning ctx's error in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock implements Clock using actual timers.
type SystemClock struct{}

// Sleep waits on a timer
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
