package engine

import (
	"context"
	"time"
)

// backoffDelay is base * 2^attempt, capped. Negative attempts get the base
// delay; the shift is capped early so it cannot overflow.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		return base
	}
	if attempt > 30 {
		return max
	}
	d := base * time.Duration(1<<attempt)
	if d > max {
		return max
	}
	return d
}

// sleepCtx waits d or until the context is cancelled, whichever is first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
