package authz

import (
	"context"
	"errors"
	"fmt"
)

// ErrLastSuperAdmin indicates an operation would leave an organization with
// zero super_admins.
var ErrLastSuperAdmin = errors.New("authz: organization must retain at least one super_admin")

// Guard enforces membership business rules layered on top of the Gate's
// primitive decisions. Routes performing destructive membership operations
// must consult it before any store mutation.
type Guard struct {
	store Store
}

// NewGuard creates a guard backed by the given store.
func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// CheckRemoval returns ErrLastSuperAdmin when removing a member holding the
// given role would leave the organization without a super_admin.
func (g *Guard) CheckRemoval(ctx context.Context, orgID string, role Role) error {
	if role != RoleSuperAdmin {
		return nil
	}
	return g.ensureAnotherSuperAdmin(ctx, orgID)
}

// CheckRoleChange returns ErrLastSuperAdmin when demoting the sole remaining
// super_admin. Promotions and same-role updates always pass.
func (g *Guard) CheckRoleChange(ctx context.Context, orgID string, current, next Role) error {
	if current != RoleSuperAdmin || next == RoleSuperAdmin {
		return nil
	}
	return g.ensureAnotherSuperAdmin(ctx, orgID)
}

func (g *Guard) ensureAnotherSuperAdmin(ctx context.Context, orgID string) error {
	count, err := g.store.CountSuperAdmins(ctx, orgID)
	if err != nil {
		return fmt.Errorf("%w: count super_admins in %q: %v", ErrStoreUnavailable, orgID, err)
	}
	if count <= 1 {
		return ErrLastSuperAdmin
	}
	return nil
}
