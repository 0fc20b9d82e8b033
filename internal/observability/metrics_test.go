package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	require.Contains(t, scrape(t, metrics), "go_goroutines")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `bankcrm_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `bankcrm_http_request_duration_seconds_bucket{route="/test"`)
}

func TestRecordDecision(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordDecision("role", "denied")
	metrics.RecordDecision("role", "denied")
	metrics.RecordDecision("gate", "granted")

	body := scrape(t, metrics)
	require.Contains(t, body, `bankcrm_authz_decisions_total{check="role",outcome="denied"} 2`)
	require.Contains(t, body, `bankcrm_authz_decisions_total{check="gate",outcome="granted"} 1`)

	var nilMetrics *Metrics
	require.NotPanics(t, func() { nilMetrics.RecordDecision("role", "granted") })
}
