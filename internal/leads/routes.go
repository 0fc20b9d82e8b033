package leads

import (
	"github.com/go-chi/chi/v5"

	"github.com/bankcrm/bankcrm/internal/rbac"
)

// MountRoutes registers lead routes; mount under /leads.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAccess(rbac.ResourceLeads, rbac.ActionRead))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.With(h.rbac.Gate(rbac.GateQuery{Resource: rbac.ResourceLeads, Action: rbac.ActionUpdate}, nil)).
			Get("/{id}/actions", h.actions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAccess(rbac.ResourceLeads, rbac.ActionCreate))
		r.Get("/new", h.showForm)
		r.Post("/", h.create)
	})
	r.With(h.rbac.RequireAccess(rbac.ResourceLeads, rbac.ActionUpdate)).Post("/{id}/status", h.updateStatus)
	r.With(h.rbac.RequireAny(rbac.PermLeadAssign, rbac.PermLeadManage)).Post("/{id}/assign", h.assign)
	r.With(h.rbac.RequireAccess(rbac.ResourceLeads, rbac.ActionDelete)).Post("/{id}/delete", h.delete)
}
