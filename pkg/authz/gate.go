package authz

import (
	"context"
)

// RoleResolver is the Gate's view of the Resolver.
type RoleResolver interface {
	Resolve(ctx context.Context, userID string) (Resolution, error)
}

// Gate decides whether a request may proceed. Per request it transitions
// strictly through Unauthenticated -> Authenticated -> Scoped and terminates
// in Authorized or Denied; later stages are never evaluated once an earlier
// stage denies.
type Gate struct {
	resolver RoleResolver
}

// NewGate creates a gate backed by the given resolver.
func NewGate(resolver RoleResolver) *Gate {
	return &Gate{resolver: resolver}
}

// RequireRole authorizes the caller when their role in the active
// organization is one of the acceptable roles.
func (g *Gate) RequireRole(ctx context.Context, userID string, acceptable ...Role) Decision {
	res, denied := g.scope(ctx, userID)
	if denied != nil {
		return *denied
	}

	if !roleAllowed(res.Role, acceptable) {
		return deny(DenyInsufficientRole, acceptable...)
	}

	return Decision{Authorized: &Authorized{
		UserID:         userID,
		Role:           res.Role,
		OrganizationID: res.OrganizationID,
	}}
}

// RequireOrg authorizes the caller when the target resource's organization
// matches their active organization. The caller's role is not consulted; a
// role check that would otherwise pass never overrides an organization
// mismatch.
func (g *Gate) RequireOrg(ctx context.Context, userID, targetOrgID string) Decision {
	res, denied := g.scope(ctx, userID)
	if denied != nil {
		return *denied
	}

	if targetOrgID == "" || res.OrganizationID != targetOrgID {
		return deny(DenyCrossOrganization)
	}

	return Decision{Authorized: &Authorized{
		UserID:         userID,
		Role:           res.Role,
		OrganizationID: res.OrganizationID,
	}}
}

// scope runs the Unauthenticated -> Authenticated -> Scoped transitions and
// returns the resolution, or the terminal denial when a transition fails.
func (g *Gate) scope(ctx context.Context, userID string) (Resolution, *Decision) {
	if userID == "" {
		d := deny(DenyNoAuth)
		return Resolution{}, &d
	}

	res, err := g.resolver.Resolve(ctx, userID)
	if err != nil {
		// Fail closed: infrastructure failures never look like "no role".
		d := deny(DenyStoreUnavailable)
		return Resolution{}, &d
	}

	// No active organization at all is distinguished from "organization
	// resolved but no role there": remediation differs (sign in again vs.
	// an administrator must grant a role).
	if res.Session == nil {
		d := deny(DenyNoActiveOrganization)
		return Resolution{}, &d
	}
	if res.Role == RoleNone {
		d := deny(DenyNoRole)
		return Resolution{}, &d
	}

	return res, nil
}

// roleAllowed matches the caller's role against the acceptable set. The
// switch over the closed Role enumeration is exhaustive so a newly added
// role cannot silently pass.
func roleAllowed(caller Role, acceptable []Role) bool {
	switch caller {
	case RoleSuperAdmin, RoleAdmin, RoleMember, RoleViewer:
	case RoleNone:
		return false
	default:
		return false
	}
	for _, a := range acceptable {
		if caller == a {
			return true
		}
	}
	return false
}
