package preferences_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankcrm/bankcrm/internal/preferences"
	"github.com/bankcrm/bankcrm/internal/rbac"
)

func newService(t *testing.T, ttl time.Duration) (*preferences.Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return preferences.NewService(preferences.NewRedisStore(client, ttl)), mr
}

func TestSnapshotDefaults(t *testing.T) {
	svc, _ := newService(t, 0)

	snap, err := svc.Snapshot(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, preferences.DefaultThemeColor, snap.ThemeColor)
	assert.False(t, snap.OnboardingSeen)
}

func TestThemeColorLifecycle(t *testing.T) {
	svc, mr := newService(t, 0)
	ctx := context.Background()

	require.NoError(t, svc.SetThemeColor(ctx, "42", "  #AABBCC "))
	assert.Equal(t, "#aabbcc", mr.HGet("prefs:42", preferences.KeyThemeColor))

	snap, err := svc.Snapshot(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "#aabbcc", snap.ThemeColor)

	other, err := svc.Snapshot(ctx, "43")
	require.NoError(t, err)
	assert.Equal(t, preferences.DefaultThemeColor, other.ThemeColor)

	require.NoError(t, svc.ResetThemeColor(ctx, "42"))
	snap, err = svc.Snapshot(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, preferences.DefaultThemeColor, snap.ThemeColor)
}

func TestSetThemeColorRejectsNonHex(t *testing.T) {
	svc, mr := newService(t, 0)

	for _, color := range []string{"", "red", "#12345g", "url(x)", "#1234567"} {
		err := svc.SetThemeColor(context.Background(), "42", color)
		assert.ErrorIs(t, err, preferences.ErrInvalidColor, color)
	}
	assert.False(t, mr.Exists("prefs:42"))
}

func TestOnboardingFlag(t *testing.T) {
	svc, _ := newService(t, 0)
	ctx := context.Background()

	require.NoError(t, svc.MarkOnboardingSeen(ctx, "9"))
	snap, err := svc.Snapshot(ctx, "9")
	require.NoError(t, err)
	assert.True(t, snap.OnboardingSeen)

	require.NoError(t, svc.ResetOnboarding(ctx, "9"))
	snap, err = svc.Snapshot(ctx, "9")
	require.NoError(t, err)
	assert.False(t, snap.OnboardingSeen)
}

func TestStoreTTL(t *testing.T) {
	svc, mr := newService(t, time.Hour)

	require.NoError(t, svc.MarkOnboardingSeen(context.Background(), "5"))
	assert.Equal(t, time.Hour, mr.TTL("prefs:5"))

	mr.FastForward(2 * time.Hour)
	snap, err := svc.Snapshot(context.Background(), "5")
	require.NoError(t, err)
	assert.False(t, snap.OnboardingSeen)
}

func TestSnapshotReportsStoreErrors(t *testing.T) {
	svc, mr := newService(t, 0)
	mr.Close()

	snap, err := svc.Snapshot(context.Background(), "1")
	assert.Error(t, err)
	assert.Equal(t, preferences.DefaultThemeColor, snap.ThemeColor)
}

func TestHandlerUpdatesTheme(t *testing.T) {
	svc, mr := newService(t, 0)
	mw := rbac.Middleware{Resolver: rbac.NewResolver(rbac.DefaultRegistry())}
	r := chi.NewRouter()
	preferences.NewHandler(nil, svc, mw).MountRoutes(r)

	form := url.Values{"color": {"#123456"}}
	req := httptest.NewRequest(http.MethodPost, "/theme", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", "http://example.com/leads?page=2")
	req.Host = "example.com"
	user := &rbac.User{ID: "77", Role: rbac.RoleFieldSalesOfficer}
	req = req.WithContext(rbac.ContextWithAuthState(req.Context(), rbac.AuthState{Authenticated: true, User: user}))
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/leads?page=2", rr.Header().Get("Location"))
	assert.Equal(t, "#123456", mr.HGet("prefs:77", preferences.KeyThemeColor))
}

func TestHandlerRequiresLogin(t *testing.T) {
	svc, _ := newService(t, 0)
	mw := rbac.Middleware{Resolver: rbac.NewResolver(rbac.DefaultRegistry())}
	r := chi.NewRouter()
	preferences.NewHandler(nil, svc, mw).MountRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/onboarding", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
