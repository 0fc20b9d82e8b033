package roles_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/roles"
	"github.com/bankcrm/bankcrm/internal/view"
)

func newRouter(t *testing.T) chi.Router {
	t.Helper()
	resolver := rbac.NewResolver(rbac.DefaultRegistry())
	engine, err := view.NewEngine(view.WithResolver(resolver))
	require.NoError(t, err)
	h := roles.NewHandler(nil, resolver, engine, rbac.Middleware{Resolver: resolver})
	r := chi.NewRouter()
	r.Route("/admin/roles", h.MountRoutes)
	r.Route("/api", h.MountAPI)
	return r
}

func get(r http.Handler, path string, state *rbac.AuthState) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if state != nil {
		req = req.WithContext(rbac.ContextWithAuthState(req.Context(), *state))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func as(role rbac.RoleID) *rbac.AuthState {
	return &rbac.AuthState{Authenticated: true, User: &rbac.User{ID: "9", Role: role}}
}

func TestBuildCatalogueMatchesResolver(t *testing.T) {
	resolver := rbac.NewResolver(rbac.DefaultRegistry())
	cat := roles.BuildCatalogue(resolver)

	require.Len(t, cat.Roles, 5)
	assert.Len(t, cat.Permissions, 20)
	for _, row := range cat.Roles {
		assert.Len(t, row.Cells, len(cat.Resources)*len(cat.Actions))
		for _, cell := range row.Cells {
			assert.Equal(t, resolver.CanAccess(rbac.User{Role: row.ID}, cell.Resource, cell.Action), cell.Granted)
		}
	}

	manager := cat.Roles[3]
	assert.Equal(t, rbac.RoleBranchManager, manager.ID)
	assert.True(t, manager.Grants(rbac.ResourceLeads, rbac.ActionDelete))
	assert.False(t, manager.Grants(rbac.ResourceWorkflows, rbac.ActionRead))
}

func TestCataloguePageIsAdminOnly(t *testing.T) {
	r := newRouter(t)

	rr := get(r, "/admin/roles/", as(rbac.RoleAdminMISOfficer))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Permission catalogue")
	assert.Contains(t, rr.Body.String(), "Relationship Manager")

	rr = get(r, "/admin/roles/", as(rbac.RoleBranchManager))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = get(r, "/admin/roles/", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMyPermissions(t *testing.T) {
	r := newRouter(t)

	rr := get(r, "/api/me/permissions", as(rbac.RoleFieldSalesOfficer))
	require.Equal(t, http.StatusOK, rr.Code)
	var resp roles.PermissionsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "field_sales_officer", resp.Role)
	assert.Equal(t, "Field Sales Officer", resp.RoleName)
	assert.Equal(t, 1, resp.Level)
	assert.Contains(t, resp.Permissions, "geo_checkin")
	assert.NotContains(t, resp.Permissions, "lead_delete")

	rr = get(r, "/api/me/permissions", &rbac.AuthState{Loading: true})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = get(r, "/api/me/permissions", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMyPermissionsForUnknownRole(t *testing.T) {
	r := newRouter(t)

	rr := get(r, "/api/me/permissions", as("teller"))
	require.Equal(t, http.StatusOK, rr.Code)
	var resp roles.PermissionsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Empty(t, resp.Permissions)
	assert.Zero(t, resp.Level)
	assert.Empty(t, resp.RoleName)
}
