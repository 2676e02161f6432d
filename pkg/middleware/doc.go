// Package middleware provides HTTP middleware for authentication,
// authorization, and rate limiting.
//
// # Overview
//
// Middleware composes in a fixed order per route: panic recovery, request
// ID, authentication (which accounts failed attempts against an IP-keyed
// limit of its own), a user-keyed rate limit, then the authorization gate
// (role set or organization scope). Each middleware short-circuits with the
// uniform JSON denial body on failure, so route handlers only ever see
// authorized requests.
//
// # Components
//
// Authenticate: bearer-token authentication via an identity.Verifier, with
// failed attempts accounted against the named auth limit by client IP
//
//	router.Use(middleware.Authenticate(verifier, limiter, limits.AuthAttempts, logger))
//
// RequireRole: role-set authorization
//
//	router.Use(middleware.RequireRole(gate, metrics, authz.RoleSuperAdmin, authz.RoleAdmin))
//
// RequireOrgScope: the {org_id} route variable must match the caller's
// active organization
//
//	router.Use(middleware.RequireOrgScope(gate, metrics, "org_id"))
//
// RateLimit: named fixed-window limits with X-RateLimit-* headers
//
//	router.Use(middleware.RateLimit(limiter, limits.API, middleware.UserKey))
//
// # Related Packages
//
//   - pkg/authz: gate decisions
//   - pkg/ratelimit: accounting
//   - pkg/identity: token verification
package middleware
