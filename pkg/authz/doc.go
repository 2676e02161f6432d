// Package authz implements request-scoped authorization: session and role
// resolution, role/organization gating, and the membership guard rules that
// protect destructive operations.
//
// # Overview
//
// Every authenticated request passes through a Gate, which drives a short
// per-request state machine:
//
//	Unauthenticated -> Authenticated -> Scoped -> Authorized | Denied
//
// The Gate consults a Resolver to map a user ID to their active organization
// and role. The Resolver reads session and membership records through a Store
// in a single combined query, and establishes a default active organization
// on first access. Infrastructure failures always fail closed: a store error
// is never reported as "no role".
//
// # Denials
//
// Denials are values, not errors. Each Denial carries a Kind that maps to an
// HTTP status and a remediation-class message (re-authenticate vs. contact an
// administrator). Messages never reveal whether an organization exists.
//
// # Related Packages
//
//   - pkg/middleware: HTTP adapters for the Gate
//   - pkg/storage/postgres: the persistent Store implementation
//   - pkg/members: membership routes that exercise the Guard
package authz
