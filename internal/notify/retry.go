package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrGaveUp is returned by [RetryPolicy.Do] when every allowed attempt failed.
var ErrGaveUp = errors.New("gave up after max attempts")

// RetryPolicy controls how the [Dispatcher] retries recipient resolution and
// sends against a flaky messenger.
//
// Attempts are paced at most one per Delay. MaxAttempts == 0 retries until
// the operation succeeds or the context is cancelled.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy retries forever, five seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 0, Delay: 5 * time.Second}
}

// Do calls op until it returns nil. The first attempt runs immediately.
//
// It returns an error wrapping [ErrGaveUp] and the last failure once
// MaxAttempts is exhausted, or the context error if ctx is cancelled while
// waiting for the next attempt.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	limit := rate.Inf
	if p.Delay > 0 {
		limit = rate.Every(p.Delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var lastErr error
	for attempt := 1; p.MaxAttempts == 0 || attempt <= p.MaxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("waiting for attempt %d: %w", attempt, err)
		}
		if lastErr = op(ctx, attempt); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("%w (%d): %w", ErrGaveUp, p.MaxAttempts, lastErr)
}
