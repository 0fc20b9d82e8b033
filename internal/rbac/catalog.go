package rbac

// Permission identifiers used across handlers and templates.
const (
	PermLeadCreate     = "lead_create"
	PermLeadRead       = "lead_read"
	PermLeadUpdate     = "lead_update"
	PermLeadDelete     = "lead_delete"
	PermLeadAssign     = "lead_assign"
	PermLeadManage     = "lead_manage"
	PermTaskCreate     = "task_create"
	PermTaskRead       = "task_read"
	PermTaskUpdate     = "task_update"
	PermTaskDelete     = "task_delete"
	PermCustomerRead   = "customer_read"
	PermCustomerUpdate = "customer_update"
	PermReportRead     = "report_read"
	PermReportManage   = "report_manage"
	PermUserRead       = "user_read"
	PermUserManage     = "user_manage"
	PermGeoCheckin     = "geo_checkin"
	PermGeoRead        = "geo_read"
	PermDashboardTeam  = "dashboard_team"
	PermWorkflowManage = "workflow_manage"
)

var (
	leadCreate     = Permission{ID: PermLeadCreate, Resource: ResourceLeads, Action: ActionCreate, Description: "Capture new leads"}
	leadRead       = Permission{ID: PermLeadRead, Resource: ResourceLeads, Action: ActionRead, Description: "View leads"}
	leadUpdate     = Permission{ID: PermLeadUpdate, Resource: ResourceLeads, Action: ActionUpdate, Description: "Update lead details and status"}
	leadDelete     = Permission{ID: PermLeadDelete, Resource: ResourceLeads, Action: ActionDelete, Description: "Delete leads"}
	leadAssign     = Permission{ID: PermLeadAssign, Resource: ResourceLeads, Action: ActionUpdate, Description: "Reassign leads to other officers"}
	leadManage     = Permission{ID: PermLeadManage, Resource: ResourceLeads, Action: ActionManage, Description: "Full control over leads"}
	taskCreate     = Permission{ID: PermTaskCreate, Resource: ResourceTasks, Action: ActionCreate, Description: "Schedule tasks"}
	taskRead       = Permission{ID: PermTaskRead, Resource: ResourceTasks, Action: ActionRead, Description: "View tasks"}
	taskUpdate     = Permission{ID: PermTaskUpdate, Resource: ResourceTasks, Action: ActionUpdate, Description: "Update and complete tasks"}
	taskDelete     = Permission{ID: PermTaskDelete, Resource: ResourceTasks, Action: ActionDelete, Description: "Delete tasks"}
	customerRead   = Permission{ID: PermCustomerRead, Resource: ResourceCustomers, Action: ActionRead, Description: "View customer 360"}
	customerUpdate = Permission{ID: PermCustomerUpdate, Resource: ResourceCustomers, Action: ActionUpdate, Description: "Edit customer profiles"}
	reportRead     = Permission{ID: PermReportRead, Resource: ResourceReports, Action: ActionRead, Description: "View reports"}
	reportManage   = Permission{ID: PermReportManage, Resource: ResourceReports, Action: ActionManage, Description: "Build and export reports"}
	userRead       = Permission{ID: PermUserRead, Resource: ResourceUsers, Action: ActionRead, Description: "View users"}
	userManage     = Permission{ID: PermUserManage, Resource: ResourceUsers, Action: ActionManage, Description: "Manage users"}
	geoCheckin     = Permission{ID: PermGeoCheckin, Resource: ResourceGeo, Action: ActionCreate, Description: "Record field check-ins"}
	geoRead        = Permission{ID: PermGeoRead, Resource: ResourceGeo, Action: ActionRead, Description: "View check-in history"}
	dashboardTeam  = Permission{ID: PermDashboardTeam, Resource: ResourceDashboard, Action: ActionRead, Description: "View team dashboards"}
	workflowManage = Permission{ID: PermWorkflowManage, Resource: ResourceWorkflows, Action: ActionManage, Description: "Configure workflow automation"}
)

// DefaultRoles returns the role table shipped with the application.
func DefaultRoles() []Role {
	return []Role{
		{
			ID:          RoleFieldSalesOfficer,
			Name:        "Field Sales Officer",
			Description: "Captures and works leads in the field",
			Level:       1,
			Permissions: []Permission{leadCreate, leadRead, leadUpdate, taskCreate, taskRead, taskUpdate, customerRead, geoCheckin},
		},
		{
			ID:          RoleRelationshipManager,
			Name:        "Relationship Manager",
			Description: "Owns customer relationships and their pipeline",
			Level:       2,
			Permissions: []Permission{leadCreate, leadRead, leadUpdate, taskCreate, taskRead, taskUpdate, taskDelete, customerRead, customerUpdate, reportRead, geoCheckin},
		},
		{
			ID:          RoleSupervisor,
			Name:        "Supervisor",
			Description: "Leads a sales team and distributes work",
			Level:       3,
			Permissions: []Permission{leadCreate, leadRead, leadUpdate, leadDelete, leadAssign, taskCreate, taskRead, taskUpdate, taskDelete, customerRead, customerUpdate, reportRead, geoRead, dashboardTeam},
		},
		{
			ID:          RoleBranchManager,
			Name:        "Branch Manager",
			Description: "Accountable for branch performance",
			Level:       4,
			Permissions: []Permission{leadManage, taskCreate, taskRead, taskUpdate, taskDelete, customerRead, customerUpdate, reportManage, geoRead, dashboardTeam, userRead},
		},
		{
			ID:          RoleAdminMISOfficer,
			Name:        "Admin / MIS Officer",
			Description: "Administers users, reporting and automation",
			Level:       5,
			Permissions: []Permission{leadRead, taskRead, customerRead, reportManage, userManage, geoRead, dashboardTeam, workflowManage},
		},
	}
}

// DefaultRegistry builds the registry from DefaultRoles.
// It panics if the built-in table is inconsistent.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry(DefaultRoles())
	if err != nil {
		panic(err)
	}
	return reg
}
