package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to a Service with a token bucket.
type RateLimited struct {
	inner   Service
	limiter *rate.Limiter
}

// NewRateLimited allows rps calls per second with the given burst.
// A non-positive rps disables limiting.
func NewRateLimited(inner Service, rps float64, burst int) Service {
	if rps <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Embed waits for a token, then delegates.
func (r *RateLimited) Embed(ctx context.Context, text, modelID, taskType string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.inner.Embed(ctx, text, modelID, taskType)
}
