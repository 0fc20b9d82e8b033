package view

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankcrm/bankcrm/internal/rbac"
)

func newGuardPages(t *testing.T) GuardPages {
	t.Helper()
	engine, err := NewEngine(WithResolver(rbac.NewResolver(rbac.DefaultRegistry())))
	require.NoError(t, err)
	return GuardPages{Engine: engine}
}

func TestGuardPagesLoading(t *testing.T) {
	rr := httptest.NewRecorder()
	newGuardPages(t).Loading(rr, requestAs("/team", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "Checking your session")
	assert.NotContains(t, rr.Body.String(), "<form")
}

func TestGuardPagesLogin(t *testing.T) {
	rr := httptest.NewRecorder()
	newGuardPages(t).Login(rr, requestAs("/team", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `action="/auth/login"`)
	assert.Contains(t, body, `name="next" value="/team"`)
}

func TestGuardPagesDeniedShowsBothRoles(t *testing.T) {
	rr := httptest.NewRecorder()
	manager := &rbac.User{ID: "bm", Role: rbac.RoleBranchManager}
	decision := rbac.Guard(rbac.AuthState{Authenticated: true, User: manager}, rbac.RoleSupervisor)

	newGuardPages(t).Denied(rr, requestAs("/team", manager), decision)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Access denied")
	assert.Contains(t, body, "<strong>Supervisor</strong> role")
	assert.Contains(t, body, "Your role: <strong>Branch Manager</strong>")
	assert.Contains(t, body, `href="/leads"`)
	assert.NotContains(t, body, `href="/team"`)
}

func TestGuardPagesDeniedWithoutRequiredRole(t *testing.T) {
	rr := httptest.NewRecorder()
	fso := &rbac.User{ID: "f", Role: rbac.RoleFieldSalesOfficer}

	newGuardPages(t).Denied(rr, requestAs("/jobs", fso), rbac.Decision{Outcome: rbac.OutcomeDenied, ActualRole: fso.Role})

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "does not include the permission")
}
