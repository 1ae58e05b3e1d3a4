package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/recepoksuz/nft-transferd/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket rate limiter for outbound RPC calls to the
// wallet bridge or the chain node.
type Limiter struct {
	limiter  *rate.Limiter
	endpoint string
}

// NewLimiter allows rps requests per second with a burst capacity of burst.
// endpoint labels the wait metric ("signer" or "chain").
func NewLimiter(rps float64, burst int, endpoint string) *Limiter {
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		endpoint: endpoint,
	}
}

// Wait blocks until the limiter allows one event, or ctx is done.
// Uses Reserve() to guarantee exactly one token is consumed per call.
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}
	delay := r.Delay()
	if delay > 0 {
		metrics.RPCRateLimitWaits.WithLabelValues(l.endpoint).Inc()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}
	return nil
}
