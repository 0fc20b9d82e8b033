package view

import "github.com/bankcrm/bankcrm/internal/rbac"

// Access exposes permission checks for the current user to templates, e.g.
// {{if .Access.Can "leads" "delete"}}...{{end}}. The zero value denies
// everything except HasAllPermissions with no arguments.
type Access struct {
	resolver      *rbac.Resolver
	user          rbac.User
	authenticated bool
}

// NewAccess binds resolver to user.
func NewAccess(resolver *rbac.Resolver, user rbac.User) Access {
	return Access{resolver: resolver, user: user, authenticated: true}
}

// Authenticated reports whether a user is signed in.
func (a Access) Authenticated() bool { return a.authenticated }

// UserID returns the current user id.
func (a Access) UserID() string { return a.user.ID }

// Role returns the current role id.
func (a Access) Role() string { return string(a.user.Role) }

// Level returns the role level, zero when anonymous.
func (a Access) Level() int { return a.resolver.Level(a.user) }

// HasPermission checks a single permission id.
func (a Access) HasPermission(id string) bool {
	return a.resolver.HasPermission(a.user, id)
}

// HasAnyPermission checks that at least one id is held.
func (a Access) HasAnyPermission(ids ...string) bool {
	return a.resolver.HasAnyPermission(a.user, ids)
}

// HasAllPermissions checks that every id is held.
func (a Access) HasAllPermissions(ids ...string) bool {
	return a.resolver.HasAllPermissions(a.user, ids)
}

// Can checks action on resource, honouring the manage wildcard.
func (a Access) Can(resource, action string) bool {
	return a.resolver.CanAccess(a.user, rbac.Resource(resource), rbac.Action(action))
}

// Gate evaluates an arbitrary query.
func (a Access) Gate(q rbac.GateQuery) bool {
	return q.Allows(a.resolver, a.user)
}
