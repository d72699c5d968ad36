package runner

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter bounds how many executions start per second
type RateLimiter struct {
	limiter *rate.Limiter
	enabled bool
}

// NewRateLimiter creates a rate limiter. A non-positive rate disables limiting.
func NewRateLimiter(perSecond float64) *RateLimiter {
	if perSecond <= 0 {
		return &RateLimiter{enabled: false}
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst(perSecond)),
		enabled: true,
	}
}

// Wait blocks until an execution may start
func (r *RateLimiter) Wait(ctx context.Context) error {
	if !r.enabled {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// Enabled reports whether limiting is active
func (r *RateLimiter) Enabled() bool {
	return r.enabled
}

// burst is at least one so that fractional rates still admit executions
func burst(perSecond float64) int {
	if perSecond < 1 {
		return 1
	}
	return int(perSecond)
}
