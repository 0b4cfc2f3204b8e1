package browser

import (
	"context"
	"time"
)

// DefaultPollInterval is how often PollUntil re-checks its condition
const DefaultPollInterval = 100 * time.Millisecond

// PollUntil evaluates cond until it returns true, returns an error, or timeout elapses.
// Running out of time is reported as (false, nil); only cond errors and cancellation
// of the parent context are errors.
func PollUntil(ctx context.Context, timeout, interval time.Duration, cond Condition) (bool, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	deadline := time.Now().Add(timeout)
	for {
		ok, err := cond(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		wait := interval
		if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
}

// Settle blocks for d, returning early only if ctx is cancelled
func Settle(ctx context.Context, d time.Duration) error {
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
