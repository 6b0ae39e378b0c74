package document

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a transient operation is attempted.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff returns the wait before the given attempt (2, 3, ...).
	Backoff func(attempt int) time.Duration
}

// ConstantBackoff waits d between attempts.
func ConstantBackoff(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// LinearBackoff waits attempt-1 times d, so the second attempt waits d.
func LinearBackoff(d time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration { return time.Duration(attempt-1) * d }
}

// Do runs fn until it succeeds, attempts run out or ctx ends. The last error
// is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && p.Backoff != nil {
			if werr := sleep(ctx, p.Backoff(attempt)); werr != nil {
				return werr
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
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
