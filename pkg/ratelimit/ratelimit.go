// Package ratelimit implements fixed-window request accounting with a shared
// Redis counter as the primary store and an in-process map as degraded
// fallback.
//
// The algorithm is a fixed-window counter, not a sliding window or token
// bucket: the first request in a window sets count=1 and a reset timestamp;
// further requests increment the count until it reaches the limit; once the
// reset timestamp passes, the next request starts a fresh window. The Redis
// path performs the whole check-and-increment atomically (a Lua script) so
// concurrent instances never race. The in-process fallback runs the same
// algorithm under a mutex; it is process-local and never authoritative across
// instances.
package ratelimit

import (
	"context"
	"time"
)

// Limit is a named (max requests, window) pair applied to its own identifier
// namespace.
type Limit struct {
	Name        string        `json:"name"`
	MaxRequests int           `json:"max_requests"`
	Window      time.Duration `json:"window"`
}

// Result reports one accounting decision.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Store answers "is this identifier allowed one more request in its current
// window?". Implementations must be safe for concurrent use.
type Store interface {
	Take(ctx context.Context, identifier string, limit Limit) (Result, error)
}

// Limits holds the named limits the product applies. Each is a static
// configuration value.
type Limits struct {
	Messages     Limit `json:"messages"`      // outbound message sending, keyed by organization
	API          Limit `json:"api"`           // general API traffic, keyed by user
	Uploads      Limit `json:"uploads"`       // file uploads, keyed by user
	AuthAttempts Limit `json:"auth_attempts"` // authentication attempts, keyed by client IP
}

// DefaultLimits returns the default named limits.
func DefaultLimits() Limits {
	return Limits{
		Messages:     Limit{Name: "sms", MaxRequests: 100, Window: time.Hour},
		API:          Limit{Name: "api", MaxRequests: 1000, Window: time.Minute},
		Uploads:      Limit{Name: "upload", MaxRequests: 50, Window: time.Hour},
		AuthAttempts: Limit{Name: "auth", MaxRequests: 10, Window: 15 * time.Minute},
	}
}
