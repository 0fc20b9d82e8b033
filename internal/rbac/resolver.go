package rbac

import "sort"

// Resolver answers permission queries against a Registry. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	registry *Registry
}

// NewResolver constructs a Resolver over registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Registry exposes the underlying registry.
func (r *Resolver) Registry() *Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// HasPermission reports whether the user's role holds permissionID.
// Users whose role is not registered hold nothing.
func (r *Resolver) HasPermission(user User, permissionID string) bool {
	if r == nil {
		return false
	}
	return r.registry.holds(user.Role, permissionID)
}

// HasAnyPermission reports whether at least one id is held. An empty list is
// denied.
func (r *Resolver) HasAnyPermission(user User, permissionIDs []string) bool {
	for _, id := range permissionIDs {
		if r.HasPermission(user, id) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every id is held. An empty list is granted,
// including for users without a registered role.
func (r *Resolver) HasAllPermissions(user User, permissionIDs []string) bool {
	for _, id := range permissionIDs {
		if !r.HasPermission(user, id) {
			return false
		}
	}
	return true
}

// CanAccess reports whether the role holds a permission on resource whose
// action is action or ActionManage.
func (r *Resolver) CanAccess(user User, resource Resource, action Action) bool {
	if r == nil {
		return false
	}
	role, ok := r.registry.Role(user.Role)
	if !ok {
		return false
	}
	for _, perm := range role.Permissions {
		if perm.Grants(resource, action) {
			return true
		}
	}
	return false
}

// EffectivePermissions returns the sorted permission ids held by the user.
func (r *Resolver) EffectivePermissions(user User) []string {
	if r == nil {
		return []string{}
	}
	role, ok := r.registry.Role(user.Role)
	if !ok {
		return []string{}
	}
	seen := make(map[string]struct{}, len(role.Permissions))
	ids := make([]string, 0, len(role.Permissions))
	for _, perm := range role.Permissions {
		if _, dup := seen[perm.ID]; dup {
			continue
		}
		seen[perm.ID] = struct{}{}
		ids = append(ids, perm.ID)
	}
	sort.Strings(ids)
	return ids
}

// Level returns the level of the user's role, or zero when unknown.
func (r *Resolver) Level(user User) int {
	if r == nil {
		return 0
	}
	role, ok := r.registry.Role(user.Role)
	if !ok {
		return 0
	}
	return role.Level
}
