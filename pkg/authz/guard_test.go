package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_CheckRemoval_LastSuperAdmin(t *testing.T) {
	guard := NewGuard(&fakeStore{superAdmins: 1})

	err := guard.CheckRemoval(context.Background(), "org-y", RoleSuperAdmin)
	assert.ErrorIs(t, err, ErrLastSuperAdmin)
}

func TestGuard_CheckRemoval_OtherSuperAdminsRemain(t *testing.T) {
	guard := NewGuard(&fakeStore{superAdmins: 2})

	require.NoError(t, guard.CheckRemoval(context.Background(), "org-y", RoleSuperAdmin))
}

func TestGuard_CheckRemoval_NonSuperAdmin(t *testing.T) {
	// Removing non-super_admins never consults the store.
	guard := NewGuard(&fakeStore{countErr: errors.New("must not be called")})

	for _, role := range []Role{RoleAdmin, RoleMember, RoleViewer} {
		require.NoError(t, guard.CheckRemoval(context.Background(), "org-y", role))
	}
}

func TestGuard_CheckRoleChange_Demotion(t *testing.T) {
	guard := NewGuard(&fakeStore{superAdmins: 1})

	err := guard.CheckRoleChange(context.Background(), "org-y", RoleSuperAdmin, RoleAdmin)
	assert.ErrorIs(t, err, ErrLastSuperAdmin)
}

func TestGuard_CheckRoleChange_SameRole(t *testing.T) {
	guard := NewGuard(&fakeStore{superAdmins: 1})

	require.NoError(t, guard.CheckRoleChange(context.Background(), "org-y", RoleSuperAdmin, RoleSuperAdmin))
}

func TestGuard_CheckRoleChange_Promotion(t *testing.T) {
	guard := NewGuard(&fakeStore{countErr: errors.New("must not be called")})

	require.NoError(t, guard.CheckRoleChange(context.Background(), "org-y", RoleMember, RoleSuperAdmin))
}

func TestGuard_StoreError(t *testing.T) {
	guard := NewGuard(&fakeStore{countErr: errors.New("down")})

	err := guard.CheckRemoval(context.Background(), "org-y", RoleSuperAdmin)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRole_Valid(t *testing.T) {
	for _, role := range []Role{RoleSuperAdmin, RoleAdmin, RoleMember, RoleViewer} {
		assert.True(t, role.Valid())
	}
	assert.False(t, RoleNone.Valid())
	assert.False(t, Role("owner").Valid())
}
