package ratelimit

import (
	"context"
	"fmt"

	"github.com/stewardhq/steward/pkg/observability"
)

// Limiter is the rate limit accountant: it tries the shared primary store
// first and transparently degrades to the in-process fallback when the
// primary is unreachable. Unavailable rate limiting must never take down the
// product, so Take never returns an error.
type Limiter struct {
	primary  Store
	fallback *MemoryStore
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewLimiter creates a limiter. primary may be nil for single-instance or
// test deployments, in which case all accounting is in-process. metrics may
// be nil.
func NewLimiter(primary Store, fallback *MemoryStore, logger *observability.Logger, metrics *observability.Metrics) *Limiter {
	if fallback == nil {
		fallback = NewMemoryStore()
	}
	return &Limiter{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		metrics:  metrics,
	}
}

// Take accounts one request under the named limit. The identifier is
// namespaced by the limit name so distinct limits never share counters.
func (l *Limiter) Take(ctx context.Context, limit Limit, subject string) Result {
	identifier := fmt.Sprintf("%s:%s", limit.Name, subject)

	if l.primary != nil {
		res, err := l.primary.Take(ctx, identifier, limit)
		if err == nil {
			l.record(limit, res)
			return res
		}
		// Degraded mode: operators must be able to see this, because the
		// fallback map is process-local and not authoritative.
		l.logger.WithError(err).
			WithField("limit", limit.Name).
			Warn("rate limit store unreachable, serving from in-process fallback")
		if l.metrics != nil {
			l.metrics.RateLimitFallbacksTotal.Inc()
		}
	}

	res, _ := l.fallback.Take(ctx, identifier, limit)
	l.record(limit, res)
	return res
}

func (l *Limiter) record(limit Limit, res Result) {
	if l.metrics != nil {
		l.metrics.RecordRateLimit(limit.Name, res.Allowed)
	}
}
