package authz

import (
	"context"
	"errors"
)

// ErrStoreUnavailable indicates the persistent session/membership store could
// not be reached or returned a malformed response. Callers must surface this
// as a 5xx, never as "no role".
var ErrStoreUnavailable = errors.New("authz: session/membership store unavailable")

// ErrNotAMember indicates an organization switch targeted an organization the
// user does not belong to.
var ErrNotAMember = errors.New("authz: user is not a member of the target organization")

// UserRecord is the result of the Store's combined session+membership read.
// Fetching both in one query avoids read skew between separate round-trips.
type UserRecord struct {
	// Session is the user's active-organization pointer, nil when absent.
	Session *Session
	// Memberships lists every organization the user belongs to, ordered by
	// join time (oldest first). Empty when the user has no memberships.
	Memberships []Membership
}

// MembershipIn returns the membership for the given organization, or nil.
func (r *UserRecord) MembershipIn(orgID string) *Membership {
	for i := range r.Memberships {
		if r.Memberships[i].OrganizationID == orgID {
			return &r.Memberships[i]
		}
	}
	return nil
}

// Store is the narrow persistence interface the authorization layer reads and
// writes through. Implementations must be safe for concurrent use across
// process instances.
type Store interface {
	// ResolveUser fetches the user's session and memberships in a single
	// combined query. A user with no rows at all yields an empty record,
	// not an error.
	ResolveUser(ctx context.Context, userID string) (*UserRecord, error)

	// UpsertSession points the user's active-organization session at orgID,
	// overwriting any prior pointer. Idempotent and safe to retry.
	UpsertSession(ctx context.Context, userID, orgID string) error

	// CountSuperAdmins returns the number of super_admin memberships in the
	// organization.
	CountSuperAdmins(ctx context.Context, orgID string) (int, error)
}
