package utils

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy controls RetryWithBackoff
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable decides whether a failed attempt may be repeated. nil retries every error.
	Retryable func(error) bool
}

// RetryWithBackoff calls fn until it succeeds, the policy gives up, or ctx is done.
// The delay starts at BaseDelay and doubles after every failed attempt.
// Context errors returned by fn are never retried.
func RetryWithBackoff[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := policy.BaseDelay

	var zero T
	var lastErr error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, ctx.Err()
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if policy.Retryable != nil && !policy.Retryable(err) {
			return zero, err
		}
		if i == attempts-1 {
			break
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, lastErr
			case <-timer.C:
			}
			delay *= 2
		}
	}
	return zero, lastErr
}
