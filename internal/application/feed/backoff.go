package feed

import (
	"context"
	"errors"
	"time"

	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

// RetryPolicy is the explicit retry/backoff policy for transient failures
// within a single poll cycle. It never spans cycles.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable decides which errors are worth another attempt.
	// Defaults to network-class errors.
	Retryable func(error) bool
	// sleep is swappable in tests.
	sleep func(context.Context, time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
}

// Delay returns the backoff before the given attempt (1-based): none before
// the first, then BaseDelay doubling per attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 2; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Do runs fn up to MaxAttempts times, backing off between attempts.
// Non-retryable errors are returned immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = func(err error) bool { return errors.Is(err, domerrors.ErrNetwork) }
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if d := p.Delay(attempt); d > 0 {
			if serr := sleep(ctx, d); serr != nil {
				return err
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
