package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubGrants struct {
	grants map[string][]Grant
	err    error
}

func (s *stubGrants) GrantsForUser(_ context.Context, userID string) ([]Grant, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.grants[userID], nil
}

func TestEffectivePermissionsRoleOnly(t *testing.T) {
	svc := NewService(&stubGrants{})

	perms, err := svc.EffectivePermissions(context.Background(), "u-1", RoleCRA)
	require.NoError(t, err)
	require.Equal(t, []string{PermQueriesRaise, PermQueriesResolve, PermQueriesView, PermStudiesView}, perms)
}

func TestEffectivePermissionsUnionsGrants(t *testing.T) {
	svc := NewService(&stubGrants{grants: map[string][]Grant{
		"u-1": {
			{ID: 1, UserID: "u-1", Permissions: []string{PermContractsView, PermStudiesView}},
			{ID: 2, UserID: "u-1", Permissions: []string{PermContractsView, ""}},
		},
	}})

	perms, err := svc.EffectivePermissions(context.Background(), "u-1", RoleViewer)
	require.NoError(t, err)
	// Deduplicated, sorted, empty strings dropped.
	require.Equal(t, []string{PermContractsView, PermStudiesView}, perms)
}

func TestEffectivePermissionsAdminWildcard(t *testing.T) {
	svc := NewService(&stubGrants{})

	for _, role := range []Role{RoleSystemAdmin, RoleAdmin} {
		perms, err := svc.EffectivePermissions(context.Background(), "u-1", role)
		require.NoError(t, err)
		require.Equal(t, []string{Wildcard}, perms)
	}
}

func TestEffectivePermissionsUnknownRole(t *testing.T) {
	svc := NewService(&stubGrants{})

	perms, err := svc.EffectivePermissions(context.Background(), "u-1", Role("bogus"))
	require.NoError(t, err)
	require.Empty(t, perms)
}

func TestRoleValid(t *testing.T) {
	require.True(t, RoleCRA.Valid())
	require.True(t, RoleOrgAdmin.Valid())
	require.False(t, Role("bogus").Valid())
	require.False(t, Role("").Valid())
}

func TestRolePermissionsReturnsCopy(t *testing.T) {
	perms := RolePermissions(RoleViewer)
	require.Equal(t, []string{PermStudiesView}, perms)

	perms[0] = "mutated"
	require.Equal(t, []string{PermStudiesView}, RolePermissions(RoleViewer))
}
