package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/shared"
)

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	var p ProblemDetail
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))
	return p
}

func TestRespondErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("lead 4: %w", shared.ErrNotFound), http.StatusNotFound},
		{shared.ErrIdempotencyConflict, http.StatusConflict},
		{ErrForbidden, http.StatusForbidden},
		{ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code, tc.err.Error())
		assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
		assert.Equal(t, tc.status, decodeProblem(t, rr).Status)
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("pq: password authentication failed"))
	assert.Empty(t, decodeProblem(t, rr).Detail)
}

func TestRespondDecision(t *testing.T) {
	rr := httptest.NewRecorder()
	assert.False(t, RespondDecision(rr, rbac.Decision{Outcome: rbac.OutcomeGranted}))
	assert.Equal(t, 0, rr.Body.Len())

	rr = httptest.NewRecorder()
	assert.True(t, RespondDecision(rr, rbac.Decision{Outcome: rbac.OutcomeLoading}))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))

	rr = httptest.NewRecorder()
	assert.True(t, RespondDecision(rr, rbac.Decision{Outcome: rbac.OutcomeLogin}))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	assert.True(t, RespondDecision(rr, rbac.Decision{Outcome: rbac.OutcomeDenied, RequiredRole: rbac.RoleSupervisor, ActualRole: rbac.RoleBranchManager}))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "requires role supervisor, have branch_manager", decodeProblem(t, rr).Detail)
}
