package rbac

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidRegistry reports an inconsistent role table.
var ErrInvalidRegistry = errors.New("rbac: invalid registry")

// Registry is the immutable catalogue of roles and their permissions.
type Registry struct {
	roles       map[RoleID]Role
	grants      map[RoleID]map[string]struct{}
	permissions map[string]Permission
}

// NewRegistry validates roles and builds a Registry. Role ids must be unique and
// valid; a permission id may appear in several roles but must always carry the
// same resource and action.
func NewRegistry(roles []Role) (*Registry, error) {
	reg := &Registry{
		roles:       make(map[RoleID]Role, len(roles)),
		grants:      make(map[RoleID]map[string]struct{}, len(roles)),
		permissions: make(map[string]Permission),
	}
	for _, role := range roles {
		if role.ID == "" {
			return nil, fmt.Errorf("%w: role id required", ErrInvalidRegistry)
		}
		if _, dup := reg.roles[role.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate role %q", ErrInvalidRegistry, role.ID)
		}
		ids := make(map[string]struct{}, len(role.Permissions))
		for _, perm := range role.Permissions {
			if perm.ID == "" || !perm.Resource.Valid() || !perm.Action.Valid() {
				return nil, fmt.Errorf("%w: role %q has malformed permission %q", ErrInvalidRegistry, role.ID, perm.ID)
			}
			if known, ok := reg.permissions[perm.ID]; ok && (known.Resource != perm.Resource || known.Action != perm.Action) {
				return nil, fmt.Errorf("%w: permission %q redefined", ErrInvalidRegistry, perm.ID)
			}
			reg.permissions[perm.ID] = perm
			ids[perm.ID] = struct{}{}
		}
		stored := role
		stored.Permissions = append([]Permission(nil), role.Permissions...)
		reg.roles[role.ID] = stored
		reg.grants[role.ID] = ids
	}
	return reg, nil
}

// Role looks up a role by exact id. The boolean is false for unknown ids.
func (r *Registry) Role(id RoleID) (Role, bool) {
	if r == nil {
		return Role{}, false
	}
	role, ok := r.roles[id]
	if !ok {
		return Role{}, false
	}
	role.Permissions = append([]Permission(nil), role.Permissions...)
	return role, true
}

// Roles returns every role ordered by level, then id.
func (r *Registry) Roles() []Role {
	if r == nil {
		return nil
	}
	out := make([]Role, 0, len(r.roles))
	for id := range r.roles {
		role, _ := r.Role(id)
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Permissions returns every distinct permission sorted by id.
func (r *Registry) Permissions() []Permission {
	if r == nil {
		return nil
	}
	out := make([]Permission, 0, len(r.permissions))
	for _, p := range r.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) holds(id RoleID, permissionID string) bool {
	if r == nil {
		return false
	}
	ids, ok := r.grants[id]
	if !ok {
		return false
	}
	_, ok = ids[permissionID]
	return ok
}
