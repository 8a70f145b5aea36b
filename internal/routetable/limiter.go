package routetable

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter rate limits mutating EC2 calls shared by every table worker.
// A nil *Limiter does not limit.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter returns a Limiter allowing rateLimit calls per second with the
// given burst.
func NewLimiter(rateLimit float64, burst int) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rateLimit), burst)}
}

// Wait blocks until a call is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}
