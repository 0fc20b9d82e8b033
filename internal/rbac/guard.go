package rbac

import "context"

// AuthState is what the authentication collaborator currently knows about the
// requester.
type AuthState struct {
	Loading       bool
	Authenticated bool
	User          *User
}

// Outcome is the page a route guard selects.
type Outcome int

// Route guard outcomes.
const (
	OutcomeLoading Outcome = iota
	OutcomeLogin
	OutcomeDenied
	OutcomeGranted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoading:
		return "loading"
	case OutcomeLogin:
		return "login"
	case OutcomeDenied:
		return "denied"
	case OutcomeGranted:
		return "granted"
	}
	return "unknown"
}

// Decision is the result of Guard. RequiredRole and ActualRole are set when
// Outcome is OutcomeDenied.
type Decision struct {
	Outcome      Outcome
	RequiredRole RoleID
	ActualRole   RoleID
}

// Guard applies page-level protection. Loading takes precedence over every other
// input, an unauthenticated state always yields the login page, and requiredRole
// is compared to the user's role by exact equality. An empty requiredRole only
// requires authentication.
func Guard(state AuthState, requiredRole RoleID) Decision {
	if state.Loading {
		return Decision{Outcome: OutcomeLoading}
	}
	if !state.Authenticated || state.User == nil {
		return Decision{Outcome: OutcomeLogin}
	}
	if requiredRole != "" && state.User.Role != requiredRole {
		return Decision{Outcome: OutcomeDenied, RequiredRole: requiredRole, ActualRole: state.User.Role}
	}
	return Decision{Outcome: OutcomeGranted}
}

type authStateContextKey struct{}

// ContextWithAuthState stores state in ctx.
func ContextWithAuthState(ctx context.Context, state AuthState) context.Context {
	return context.WithValue(ctx, authStateContextKey{}, state)
}

// AuthStateFromContext returns the stored state. Without one the requester is
// treated as unauthenticated.
func AuthStateFromContext(ctx context.Context) AuthState {
	state, _ := ctx.Value(authStateContextKey{}).(AuthState)
	return state
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (User, bool) {
	state := AuthStateFromContext(ctx)
	if state.Loading || !state.Authenticated || state.User == nil {
		return User{}, false
	}
	return *state.User, true
}
