package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"tami-graph/backend/internal/utils"
	apperrors "tami-graph/backend/pkg/errors"
)

// guard wraps every store call with a per-call timeout and a circuit breaker,
// and optionally retries store outages with exponential backoff.
type guard struct {
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	policy  utils.RetryPolicy
	logger  *zap.Logger
}

func newGuard(opts Options, logger *zap.Logger) *guard {
	threshold := opts.BreakerThreshold
	settings := gobreaker.Settings{
		Name:        "graph-store",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Only outages trip the breaker. NotFound, Conflict and friends are answers.
		IsSuccessful: func(err error) bool {
			return err == nil || !(apperrors.IsStoreUnavailable(err) || errors.Is(err, context.DeadlineExceeded))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Store circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &guard{
		breaker: gobreaker.NewCircuitBreaker(settings),
		timeout: opts.StoreTimeout,
		policy: utils.RetryPolicy{
			MaxAttempts: opts.RetryAttempts,
			BaseDelay:   opts.RetryBaseDelay,
			Retryable:   apperrors.IsRetryable,
		},
		logger: logger,
	}
}

// call runs fn through the guard. Only idempotent operations may pass retry.
func call[T any](ctx context.Context, g *guard, op string, retry bool, fn func(context.Context) (T, error)) (T, error) {
	attempt := func(ctx context.Context) (T, error) {
		var zero T
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		out, err := g.breaker.Execute(func() (interface{}, error) {
			return fn(callCtx)
		})
		if err != nil {
			return zero, g.classify(ctx, op, err)
		}
		v, _ := out.(T)
		return v, nil
	}

	if !retry {
		return attempt(ctx)
	}

	attempts := 0
	out, err := utils.RetryWithBackoff(ctx, g.policy, func(ctx context.Context) (T, error) {
		attempts++
		if attempts > 1 {
			g.logger.Warn("Retrying store call", zap.String("op", op), zap.Int("attempt", attempts))
		}
		return attempt(ctx)
	})
	return out, err
}

// classify maps breaker and timeout failures onto the error taxonomy
func (g *guard) classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.NewStoreUnavailable(op, err)
	}
	// The caller gave up; report that rather than a store problem
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return apperrors.NewContextTimeout(op, g.timeout)
		}
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) && apperrors.TypeOf(err) == "" {
		return apperrors.NewStoreUnavailable(op, err)
	}
	return err
}
