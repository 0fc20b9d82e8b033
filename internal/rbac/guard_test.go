package rbac_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bankcrm/bankcrm/internal/rbac"
)

func TestGuardPrecedence(t *testing.T) {
	supervisor := &rbac.User{ID: "s", Role: rbac.RoleSupervisor}

	cases := []struct {
		name     string
		state    rbac.AuthState
		required rbac.RoleID
		want     rbac.Decision
	}{
		{"loading beats everything", rbac.AuthState{Loading: true, Authenticated: true, User: supervisor}, rbac.RoleSupervisor, rbac.Decision{Outcome: rbac.OutcomeLoading}},
		{"unauthenticated", rbac.AuthState{}, rbac.RoleSupervisor, rbac.Decision{Outcome: rbac.OutcomeLogin}},
		{"authenticated without user", rbac.AuthState{Authenticated: true}, "", rbac.Decision{Outcome: rbac.OutcomeLogin}},
		{"no required role", rbac.AuthState{Authenticated: true, User: supervisor}, "", rbac.Decision{Outcome: rbac.OutcomeGranted}},
		{"exact match", rbac.AuthState{Authenticated: true, User: supervisor}, rbac.RoleSupervisor, rbac.Decision{Outcome: rbac.OutcomeGranted}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, rbac.Guard(tc.state, tc.required))
		})
	}
}

func TestGuardHigherLevelIsStillDenied(t *testing.T) {
	manager := &rbac.User{ID: "bm", Role: rbac.RoleBranchManager}

	decision := rbac.Guard(rbac.AuthState{Authenticated: true, User: manager}, rbac.RoleSupervisor)

	assert.Equal(t, rbac.OutcomeDenied, decision.Outcome)
	assert.Equal(t, rbac.RoleSupervisor, decision.RequiredRole)
	assert.Equal(t, rbac.RoleBranchManager, decision.ActualRole)
}

func TestGuardLoadingShowsNoRoleDetails(t *testing.T) {
	fso := &rbac.User{ID: "f", Role: rbac.RoleFieldSalesOfficer}

	decision := rbac.Guard(rbac.AuthState{Loading: true, Authenticated: true, User: fso}, rbac.RoleAdminMISOfficer)

	assert.Equal(t, rbac.Decision{Outcome: rbac.OutcomeLoading}, decision)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "loading", rbac.OutcomeLoading.String())
	assert.Equal(t, "login", rbac.OutcomeLogin.String())
	assert.Equal(t, "denied", rbac.OutcomeDenied.String())
	assert.Equal(t, "granted", rbac.OutcomeGranted.String())
	assert.Equal(t, "unknown", rbac.Outcome(42).String())
}

func TestAuthStateContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, rbac.AuthState{}, rbac.AuthStateFromContext(ctx))
	_, ok := rbac.UserFromContext(ctx)
	assert.False(t, ok)

	user := &rbac.User{ID: "u1", Role: rbac.RoleRelationshipManager}
	ctx = rbac.ContextWithAuthState(ctx, rbac.AuthState{Authenticated: true, User: user})
	got, ok := rbac.UserFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, *user, got)

	loading := rbac.ContextWithAuthState(ctx, rbac.AuthState{Loading: true, Authenticated: true, User: user})
	_, ok = rbac.UserFromContext(loading)
	assert.False(t, ok)
}
