package rbac

// Action is an operation on a resource.
type Action string

// Supported actions. ActionManage subsumes every other action on its resource.
const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

// Valid reports whether the action is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage:
		return true
	}
	return false
}

// Resource is a domain object protected by permissions.
type Resource string

// Protected resources.
const (
	ResourceLeads     Resource = "leads"
	ResourceTasks     Resource = "tasks"
	ResourceCustomers Resource = "customers"
	ResourceReports   Resource = "reports"
	ResourceUsers     Resource = "users"
	ResourceGeo       Resource = "geo"
	ResourceDashboard Resource = "dashboard"
	ResourceWorkflows Resource = "workflows"
)

// Valid reports whether the resource is one of the known resources.
func (r Resource) Valid() bool {
	switch r {
	case ResourceLeads, ResourceTasks, ResourceCustomers, ResourceReports,
		ResourceUsers, ResourceGeo, ResourceDashboard, ResourceWorkflows:
		return true
	}
	return false
}

// RoleID identifies a role in the registry.
type RoleID string

// Known roles.
const (
	RoleFieldSalesOfficer   RoleID = "field_sales_officer"
	RoleRelationshipManager RoleID = "relationship_manager"
	RoleSupervisor          RoleID = "supervisor"
	RoleBranchManager       RoleID = "branch_manager"
	RoleAdminMISOfficer     RoleID = "admin_mis_officer"
)

// Permission is an atomic capability grant.
type Permission struct {
	ID          string
	Resource    Resource
	Action      Action
	Description string
}

// Grants reports whether the permission covers action on resource.
func (p Permission) Grants(resource Resource, action Action) bool {
	if p.Resource != resource {
		return false
	}
	return p.Action == action || p.Action == ActionManage
}

// Role bundles permissions granted to a category of users.
type Role struct {
	ID          RoleID
	Name        string
	Description string
	// Level is used for coarse UI decisions only; the resolver ignores it.
	Level       int
	Permissions []Permission
}

// User is the subject of every permission check.
type User struct {
	ID   string
	Role RoleID
}

// Resources lists every protected resource in display order.
func Resources() []Resource {
	return []Resource{ResourceLeads, ResourceTasks, ResourceCustomers, ResourceReports,
		ResourceUsers, ResourceGeo, ResourceDashboard, ResourceWorkflows}
}

// Actions lists every action in display order.
func Actions() []Action {
	return []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}
}
