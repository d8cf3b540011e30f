package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces consecutive calls by a fixed courtesy delay. The first Wait
// returns immediately; each later one waits until delay has passed since the
// previous call was let through.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a pacer for the given delay. A non-positive delay disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Pacer{limiter: rate.NewLimiter(limit, 1)}
}

func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
