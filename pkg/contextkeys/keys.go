// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/stewardhq/steward/pkg/contextkeys"
//   ctx = contextkeys.WithIdentity(ctx, ident)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *identity.Identity
	// Set by: middleware.Authenticate (pkg/middleware/auth.go)
	// Required by: authorization middleware, rate limit keying
	// Type: *identity.Identity
	IdentityKey Key = "identity"

	// AuthzKey contains *authz.Authorized
	// Set by: middleware.RequireRole / middleware.RequireOrgScope
	// Required by: route handlers that need the caller's role and org
	// Type: *authz.Authorized
	AuthzKey Key = "authz_result"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: Logger, response headers, audit events
	// Type: string
	RequestIDKey Key = "request_id"
)

// WithIdentity adds the authenticated identity to the context
func WithIdentity(ctx context.Context, ident interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, ident)
}

// WithAuthz adds the authorization result to the context
func WithAuthz(ctx context.Context, result interface{}) context.Context {
	return context.WithValue(ctx, AuthzKey, result)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFrom extracts the request ID from the context
func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}
