package adapter

import (
	"context"

	"github.com/yanun0323/errors"
	"golang.org/x/time/rate"

	"hft/pkg/exception"
)

// Limiter is a token bucket for venue REST calls.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows perSec requests per second with bursts of burst.
// perSec <= 0 disables limiting.
func NewLimiter(perSec float64, burst int) *Limiter {
	limit := rate.Limit(perSec)
	if perSec <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrap(exception.ErrRateLimit, err.Error())
	}
	return nil
}

// Allow takes a token without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
