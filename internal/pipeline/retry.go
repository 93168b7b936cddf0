package pipeline

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryConfig bounds the retries around fetch, embed, and store.
type RetryConfig struct {
	// MaxAttempts counts the first try; values below 2 disable retrying.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig is used when no RetryConfig is given.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     2 * time.Second,
}

func (c RetryConfig) backOff(ctx context.Context) backoff.BackOff {
	retries := 0
	if c.MaxAttempts > 1 {
		retries = c.MaxAttempts - 1
	}
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.InitialInterval),
		backoff.WithMaxInterval(c.MaxInterval),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// retry runs op until it succeeds, returns a permanent error, or attempts run out.
// Each attempt gets its own deadline of timeout when positive.
func retry[T any](ctx context.Context, cfg RetryConfig, timeout time.Duration, logger *zap.Logger, step State,
	permanent func(error) bool, op func(context.Context) (T, error)) (T, error) {
	attempt := 0
	return backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		stepCtx, cancel := withTimeout(ctx, timeout)
		defer cancel()
		v, err := op(stepCtx)
		if err != nil && (ctx.Err() != nil || permanent(err)) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, cfg.backOff(ctx), func(err error, next time.Duration) {
		logger.Warn("retrying step",
			zap.String("step", step.String()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", next),
			zap.Error(err))
	})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
