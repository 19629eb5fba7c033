package utils

import (
	"context"
	"time"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the wall clock Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryPolicy is a bounded retry with a fixed delay between attempts.
type RetryPolicy struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts int
	Delay       time.Duration
}

// Do runs fn until it succeeds or the attempts are exhausted and returns the
// last error. onRetry, when set, is called before every wait.
func (p RetryPolicy) Do(
	ctx context.Context,
	sleep Sleeper,
	fn func(attempt int) error,
	onRetry func(attempt int, err error),
) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	if sleep == nil {
		sleep = Sleep
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(i); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		if onRetry != nil {
			onRetry(i, err)
		}
		if serr := sleep(ctx, p.Delay); serr != nil {
			return serr
		}
	}
	return err
}
