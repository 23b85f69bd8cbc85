package providers

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCallSpacing is the minimum interval between outbound generation
// calls when no spacing is configured.
const DefaultCallSpacing = 2 * time.Second

// Pacer enforces a minimum spacing between outbound generation calls. One
// instance is shared by every generator in the process; it is the sole
// serialization point across concurrent pipeline runs.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer allowing one call per minInterval with no burst
// allowance.
func NewPacer(minInterval time.Duration) *Pacer {
	if minInterval <= 0 {
		minInterval = DefaultCallSpacing
	}
	return &Pacer{
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Wait blocks until the next call slot is available or the context is
// cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Allow reports whether a call could proceed right now without consuming a
// slot on false.
func (p *Pacer) Allow() bool {
	return p.limiter.Allow()
}
