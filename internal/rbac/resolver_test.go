package rbac_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankcrm/bankcrm/internal/rbac"
)

func newResolver() *rbac.Resolver {
	return rbac.NewResolver(rbac.DefaultRegistry())
}

func TestHasPermissionMatchesRoleTable(t *testing.T) {
	resolver := newResolver()
	reg := resolver.Registry()
	all := reg.Permissions()

	for _, role := range reg.Roles() {
		user := rbac.User{ID: "u", Role: role.ID}
		held := make(map[string]bool, len(role.Permissions))
		for _, p := range role.Permissions {
			held[p.ID] = true
			assert.True(t, resolver.HasPermission(user, p.ID), "%s should hold %s", role.ID, p.ID)
		}
		for _, p := range all {
			if !held[p.ID] {
				assert.False(t, resolver.HasPermission(user, p.ID), "%s should not hold %s", role.ID, p.ID)
			}
		}
		assert.False(t, resolver.HasPermission(user, "branch_override"))
	}
}

func TestSupervisorCanAssignButFieldOfficerCannot(t *testing.T) {
	resolver := newResolver()

	assert.True(t, resolver.HasPermission(rbac.User{ID: "1", Role: rbac.RoleSupervisor}, "lead_assign"))
	assert.False(t, resolver.HasPermission(rbac.User{ID: "2", Role: rbac.RoleFieldSalesOfficer}, "lead_assign"))
}

func TestCanAccessLeadDelete(t *testing.T) {
	resolver := newResolver()

	assert.True(t, resolver.CanAccess(rbac.User{Role: rbac.RoleSupervisor}, rbac.ResourceLeads, rbac.ActionDelete))
	assert.False(t, resolver.CanAccess(rbac.User{Role: rbac.RoleRelationshipManager}, rbac.ResourceLeads, rbac.ActionDelete))
}

func TestCanAccessManageIsActionWildcard(t *testing.T) {
	resolver := newResolver()
	manager := rbac.User{Role: rbac.RoleBranchManager}

	for _, action := range rbac.Actions() {
		assert.True(t, resolver.CanAccess(manager, rbac.ResourceLeads, action), "branch manager %s leads", action)
	}
	// manage on reports does not spill over to other resources
	assert.False(t, resolver.CanAccess(manager, rbac.ResourceWorkflows, rbac.ActionRead))
	// user_read grants read only
	assert.True(t, resolver.CanAccess(manager, rbac.ResourceUsers, rbac.ActionRead))
	assert.False(t, resolver.CanAccess(manager, rbac.ResourceUsers, rbac.ActionUpdate))
}

func TestCanAccessMatchesPermissionGrants(t *testing.T) {
	resolver := newResolver()
	for _, role := range resolver.Registry().Roles() {
		user := rbac.User{Role: role.ID}
		for _, res := range rbac.Resources() {
			for _, act := range rbac.Actions() {
				want := false
				for _, p := range role.Permissions {
					if p.Resource == res && (p.Action == act || p.Action == rbac.ActionManage) {
						want = true
					}
				}
				assert.Equal(t, want, resolver.CanAccess(user, res, act), "%s %s:%s", role.ID, res, act)
			}
		}
	}
}

func TestEmptyListAsymmetry(t *testing.T) {
	resolver := newResolver()
	users := []rbac.User{
		{Role: rbac.RoleAdminMISOfficer},
		{Role: rbac.RoleBranchManager},
		{Role: "teller"},
		{},
	}
	for _, user := range users {
		assert.False(t, resolver.HasAnyPermission(user, nil), "any(nil) for %q", user.Role)
		assert.False(t, resolver.HasAnyPermission(user, []string{}), "any([]) for %q", user.Role)
		assert.True(t, resolver.HasAllPermissions(user, nil), "all(nil) for %q", user.Role)
		assert.True(t, resolver.HasAllPermissions(user, []string{}), "all([]) for %q", user.Role)
	}
}

func TestAnyAndAllPermissions(t *testing.T) {
	resolver := newResolver()
	rm := rbac.User{Role: rbac.RoleRelationshipManager}

	assert.True(t, resolver.HasAnyPermission(rm, []string{"lead_delete", "task_delete"}))
	assert.False(t, resolver.HasAnyPermission(rm, []string{"lead_delete", "user_manage"}))
	assert.True(t, resolver.HasAllPermissions(rm, []string{"task_create", "task_delete"}))
	assert.False(t, resolver.HasAllPermissions(rm, []string{"task_create", "lead_assign"}))
}

func TestUnknownRoleHasNothing(t *testing.T) {
	resolver := newResolver()
	for _, user := range []rbac.User{{ID: "x", Role: "teller"}, {ID: "y"}} {
		for _, p := range resolver.Registry().Permissions() {
			assert.False(t, resolver.HasPermission(user, p.ID))
			assert.False(t, resolver.HasAnyPermission(user, []string{p.ID}))
			assert.False(t, resolver.HasAllPermissions(user, []string{p.ID}))
			assert.False(t, resolver.CanAccess(user, p.Resource, p.Action))
		}
		assert.Empty(t, resolver.EffectivePermissions(user))
		assert.Zero(t, resolver.Level(user))
	}
}

func TestResolverIsDeterministic(t *testing.T) {
	resolver := newResolver()
	user := rbac.User{Role: rbac.RoleSupervisor}

	first := resolver.EffectivePermissions(user)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, resolver.EffectivePermissions(user))
		require.True(t, resolver.HasPermission(user, "lead_assign"))
		require.False(t, resolver.CanAccess(user, rbac.ResourceUsers, rbac.ActionRead))
	}
}

func TestEffectivePermissionsAndLevel(t *testing.T) {
	resolver := newResolver()
	user := rbac.User{Role: rbac.RoleFieldSalesOfficer}

	assert.Equal(t, []string{
		"customer_read", "geo_checkin", "lead_create", "lead_read", "lead_update",
		"task_create", "task_read", "task_update",
	}, resolver.EffectivePermissions(user))
	assert.Equal(t, 1, resolver.Level(user))
	assert.Equal(t, 5, resolver.Level(rbac.User{Role: rbac.RoleAdminMISOfficer}))
}

func TestNilResolverDenies(t *testing.T) {
	var resolver *rbac.Resolver
	user := rbac.User{Role: rbac.RoleSupervisor}

	assert.False(t, resolver.HasPermission(user, "lead_read"))
	assert.False(t, resolver.CanAccess(user, rbac.ResourceLeads, rbac.ActionRead))
	assert.True(t, resolver.HasAllPermissions(user, nil))
	assert.Empty(t, resolver.EffectivePermissions(user))
}
