package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/shared"
)

// Sentinel errors for JSON endpoints.
var (
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps err to a problem response. Unknown errors become a 500
// without detail.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate Submission", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// RespondDecision writes the problem response for a guard outcome other than
// granted. It reports false when decision is granted and nothing was written.
func RespondDecision(w http.ResponseWriter, decision rbac.Decision) bool {
	switch decision.Outcome {
	case rbac.OutcomeGranted:
		return false
	case rbac.OutcomeLoading:
		w.Header().Set("Retry-After", strconv.Itoa(2))
		Problem(w, http.StatusServiceUnavailable, "Loading", "session is still being resolved")
	case rbac.OutcomeLogin:
		RespondError(w, ErrUnauthorized)
	default:
		detail := "role " + string(decision.ActualRole) + " may not access this resource"
		if decision.RequiredRole != "" {
			detail = "requires role " + string(decision.RequiredRole) + ", have " + string(decision.ActualRole)
		}
		Problem(w, http.StatusForbidden, "Forbidden", detail)
	}
	return true
}
