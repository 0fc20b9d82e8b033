package roles

import "github.com/bankcrm/bankcrm/internal/rbac"

// Cell is one resource/action intersection of the catalogue matrix.
type Cell struct {
	Resource rbac.Resource
	Action   rbac.Action
	Granted  bool
}

// RoleRow describes a single role on the catalogue page.
type RoleRow struct {
	ID          rbac.RoleID
	Name        string
	Description string
	Level       int
	Permissions []rbac.Permission
	Cells       []Cell
}

// Catalogue is the read model behind the role catalogue page.
type Catalogue struct {
	Resources   []rbac.Resource
	Actions     []rbac.Action
	Roles       []RoleRow
	Permissions []rbac.Permission
}

// BuildCatalogue evaluates every role against every resource/action pair.
// Cells are computed through the resolver so manage grants show up as they
// are enforced.
func BuildCatalogue(resolver *rbac.Resolver) Catalogue {
	reg := resolver.Registry()
	cat := Catalogue{
		Resources:   rbac.Resources(),
		Actions:     rbac.Actions(),
		Permissions: reg.Permissions(),
	}
	for _, role := range reg.Roles() {
		subject := rbac.User{Role: role.ID}
		row := RoleRow{
			ID:          role.ID,
			Name:        role.Name,
			Description: role.Description,
			Level:       role.Level,
			Permissions: role.Permissions,
			Cells:       make([]Cell, 0, len(cat.Resources)*len(cat.Actions)),
		}
		for _, res := range cat.Resources {
			for _, act := range cat.Actions {
				row.Cells = append(row.Cells, Cell{Resource: res, Action: act, Granted: resolver.CanAccess(subject, res, act)})
			}
		}
		cat.Roles = append(cat.Roles, row)
	}
	return cat
}

// Grants looks up a cell of the row.
func (r RoleRow) Grants(resource rbac.Resource, action rbac.Action) bool {
	for _, c := range r.Cells {
		if c.Resource == resource && c.Action == action {
			return c.Granted
		}
	}
	return false
}
