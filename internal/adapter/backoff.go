package adapter

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
)

// Backoff paces venue reconnects. Attempts are 1-based and callers restart
// from 1 after a session that ended cleanly.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	// Jitter spreads each delay uniformly between Min and the exponential value.
	Jitter bool
}

func DefaultBackoff() Backoff {
	return Backoff{
		Min:    250 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2.0,
		Jitter: true,
	}
}

// Next returns the delay before the given attempt.
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	curve := backoff.Backoff{Min: b.Min, Max: b.Max, Factor: b.Factor, Jitter: b.Jitter}
	return curve.ForAttempt(float64(attempt - 1))
}

// Sleep waits for the attempt's delay. It returns false when ctx is done first.
func (b Backoff) Sleep(ctx context.Context, attempt int) bool {
	timer := time.NewTimer(b.Next(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
