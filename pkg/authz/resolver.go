package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/stewardhq/steward/pkg/observability"
)

const (
	// resolutionCacheSize bounds the best-effort process-local cache.
	resolutionCacheSize = 4096
	// resolutionCacheTTL keeps cached resolutions short-lived so role and
	// session changes propagate quickly. The cache is never authoritative.
	resolutionCacheTTL = 30 * time.Second
)

// Resolver maps a user ID to their active organization and role. It reads
// session and membership records in one combined query and establishes a
// default active organization on first access.
//
// The cache is process-local and never authoritative: Invalidate only
// reaches the instance it is called on, so a revoked membership or changed
// role can keep resolving stale on other instances for up to
// resolutionCacheTTL. Routes that cannot tolerate that window must read
// through the Store directly.
type Resolver struct {
	store  Store
	logger *observability.Logger
	cache  *expirable.LRU[string, Resolution]
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(store Store, logger *observability.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger,
		cache:  expirable.NewLRU[string, Resolution](resolutionCacheSize, nil, resolutionCacheTTL),
	}
}

// Resolve returns the user's session, role, and organization ID.
//
// Output contract:
//   - no membership rows: Role is RoleNone and OrganizationID is empty
//   - session pointing at an organization the user no longer belongs to:
//     Role is RoleNone (fail closed; the stale session is never silently
//     replaced by an arbitrary membership)
//   - membership but no session: a session is upserted pointing at the
//     oldest membership's organization
//
// A store failure returns ErrStoreUnavailable; callers must treat that as a
// 5xx, never as "no role".
func (r *Resolver) Resolve(ctx context.Context, userID string) (Resolution, error) {
	if userID == "" {
		return Resolution{}, fmt.Errorf("resolve: empty user id")
	}

	if res, ok := r.cache.Get(userID); ok {
		return res, nil
	}

	rec, err := r.store.ResolveUser(ctx, userID)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: resolve user %q: %v", ErrStoreUnavailable, userID, err)
	}

	if len(rec.Memberships) == 0 {
		if rec.Session != nil {
			r.logger.WithField("user_id", userID).
				WithField("session_org", rec.Session.OrganizationID).
				Warn("session points at an organization with no membership")
		}
		return Resolution{Session: rec.Session, Role: RoleNone}, nil
	}

	if rec.Session == nil {
		// First access: establish a default active organization from the
		// oldest membership. The upsert is idempotent and safe to retry.
		m := rec.Memberships[0]
		if err := r.store.UpsertSession(ctx, userID, m.OrganizationID); err != nil {
			return Resolution{}, fmt.Errorf("%w: upsert session for %q: %v", ErrStoreUnavailable, userID, err)
		}
		res := Resolution{
			Session:        &Session{UserID: userID, OrganizationID: m.OrganizationID},
			Role:           m.Role,
			OrganizationID: m.OrganizationID,
		}
		r.cache.Add(userID, res)
		return res, nil
	}

	m := rec.MembershipIn(rec.Session.OrganizationID)
	if m == nil {
		// The session and membership records disagree. Fail closed instead
		// of picking an arbitrary membership.
		r.logger.WithField("user_id", userID).
			WithField("session_org", rec.Session.OrganizationID).
			Warn("session organization does not match any membership")
		return Resolution{Session: rec.Session, Role: RoleNone}, nil
	}

	res := Resolution{
		Session:        rec.Session,
		Role:           m.Role,
		OrganizationID: m.OrganizationID,
	}
	r.cache.Add(userID, res)
	return res, nil
}

// SwitchOrganization changes the user's active organization. Membership in
// the target organization is re-validated before the session is overwritten.
func (r *Resolver) SwitchOrganization(ctx context.Context, userID, orgID string) error {
	if userID == "" || orgID == "" {
		return fmt.Errorf("switch organization: empty user or organization id")
	}

	rec, err := r.store.ResolveUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: resolve user %q: %v", ErrStoreUnavailable, userID, err)
	}
	if rec.MembershipIn(orgID) == nil {
		return ErrNotAMember
	}
	if err := r.store.UpsertSession(ctx, userID, orgID); err != nil {
		return fmt.Errorf("%w: upsert session for %q: %v", ErrStoreUnavailable, userID, err)
	}
	r.cache.Remove(userID)
	return nil
}

// Invalidate drops the cached resolution for a user. Membership routes call
// this after role changes and removals so the next request re-reads the store.
func (r *Resolver) Invalidate(userID string) {
	r.cache.Remove(userID)
}
