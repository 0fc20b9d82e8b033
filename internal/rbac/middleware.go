package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// Pages renders the alternate views chosen by guards.
type Pages interface {
	Loading(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Denied(w http.ResponseWriter, r *http.Request, decision Decision)
}

// DecisionRecorder receives one observation per authorization decision.
type DecisionRecorder interface {
	RecordDecision(check, outcome string)
}

// Middleware wires guards and permission checks into HTTP handlers. The auth
// state is read from the request context, see ContextWithAuthState.
type Middleware struct {
	Resolver *Resolver
	Pages    Pages
	Logger   *slog.Logger
	Recorder DecisionRecorder
}

// RequireLogin protects a route with the authentication states only.
func (m Middleware) RequireLogin() func(http.Handler) http.Handler {
	return m.RequireRole("")
}

// RequireRole protects a route with the full route guard. The user's role must
// equal role exactly; the resolver is not consulted.
func (m Middleware) RequireRole(role RoleID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := Guard(AuthStateFromContext(r.Context()), role)
			m.record("role", decision.Outcome)
			if decision.Outcome == OutcomeGranted {
				next.ServeHTTP(w, r)
				return
			}
			if decision.Outcome == OutcomeDenied && m.Logger != nil {
				m.Logger.Warn("rbac role mismatch",
					slog.String("path", r.URL.Path),
					slog.String("required", string(decision.RequiredRole)),
					slog.String("actual", string(decision.ActualRole)))
			}
			m.renderDecision(w, r, decision)
		})
	}
}

// RequireAny ensures the current user holds at least one of perms.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.require("any", GateQuery{Permissions: normalizePermissions(perms)})
}

// RequireAll ensures the current user holds every one of perms.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.require("all", GateQuery{Permissions: normalizePermissions(perms), RequireAll: true})
}

// RequireAccess ensures the current user may perform action on resource.
func (m Middleware) RequireAccess(resource Resource, action Action) func(http.Handler) http.Handler {
	return m.require("access", GateQuery{Resource: resource, Action: action})
}

func (m Middleware) require(check string, query GateQuery) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := AuthStateFromContext(r.Context())
			decision := Guard(state, "")
			if decision.Outcome != OutcomeGranted {
				m.record(check, decision.Outcome)
				m.renderDecision(w, r, decision)
				return
			}
			user := *state.User
			if query.Allows(m.Resolver, user) {
				m.record(check, OutcomeGranted)
				next.ServeHTTP(w, r)
				return
			}
			m.record(check, OutcomeDenied)
			if m.Logger != nil {
				m.Logger.Warn("rbac permission denied",
					slog.String("path", r.URL.Path),
					slog.String("user", user.ID),
					slog.String("role", string(user.Role)),
					slog.String("query", query.String()))
			}
			m.renderDecision(w, r, Decision{Outcome: OutcomeDenied, ActualRole: user.Role})
		})
	}
}

// Gate serves next only when query allows the current user. Otherwise fallback
// is served; a nil fallback renders nothing.
func (m Middleware) Gate(query GateQuery, fallback http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := UserFromContext(r.Context())
			if query.Allows(m.Resolver, user) {
				m.record("gate", OutcomeGranted)
				next.ServeHTTP(w, r)
				return
			}
			m.record("gate", OutcomeDenied)
			if fallback != nil {
				fallback.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Length", "0")
			w.WriteHeader(http.StatusOK)
		})
	}
}

func (m Middleware) renderDecision(w http.ResponseWriter, r *http.Request, decision Decision) {
	switch decision.Outcome {
	case OutcomeLoading:
		w.Header().Set("Retry-After", strconv.Itoa(loadingRetrySeconds))
		if m.Pages != nil {
			m.Pages.Loading(w, r)
			return
		}
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	case OutcomeLogin:
		if m.Pages != nil {
			m.Pages.Login(w, r)
			return
		}
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	default:
		if m.Pages != nil {
			m.Pages.Denied(w, r, decision)
			return
		}
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	}
}

func (m Middleware) record(check string, outcome Outcome) {
	if m.Recorder != nil {
		m.Recorder.RecordDecision(check, outcome.String())
	}
}

const loadingRetrySeconds = 2

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, ok := unique[p]; ok {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
