package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankcrm/bankcrm/internal/observability"
	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/roles"
	"github.com/bankcrm/bankcrm/internal/shared"
	"github.com/bankcrm/bankcrm/internal/view"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := rbac.NewResolver(rbac.DefaultRegistry())
	engine, err := view.NewEngine(view.WithResolver(resolver))
	require.NoError(t, err)
	mw := rbac.Middleware{Resolver: resolver, Logger: logger}
	cfg := validConfig()
	cfg.AppRequestTimeout = 5 * time.Second

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         &cfg,
		Templates:      engine,
		SessionManager: shared.NewSessionManager(client, "sid", "secret", time.Hour, false),
		CSRFManager:    shared.NewCSRFManager("csrf"),
		RBACMiddleware: mw,
		RolesHandler:   roles.NewHandler(logger, resolver, engine, mw),
		Metrics:        observability.NewMetrics(),
	})
}

func TestHealthzAndSecurityHeaders(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("Set-Cookie"))
}

func TestProtectedRoutesWithoutAuthState(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/admin/roles/", "/api/me/permissions"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestPostWithoutCSRFTokenIsRejected(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/preferences/theme", strings.NewReader("color=%23000000"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestStaticAssetsAreCached(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/me/permissions", nil))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "bankcrm_http_requests_total")
}
