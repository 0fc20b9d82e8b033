package roles

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bankcrm/bankcrm/internal/platform/httpx"
	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/view"
)

// Handler serves the role catalogue and the current user's permissions.
type Handler struct {
	logger    *slog.Logger
	resolver  *rbac.Resolver
	templates *view.Engine
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, resolver *rbac.Resolver, templates *view.Engine, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, resolver: resolver, templates: templates, rbac: rbac}
}

// MountRoutes registers the catalogue page under the admin router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireRole(rbac.RoleAdminMISOfficer)).Get("/", h.listRoles)
}

// MountAPI registers JSON endpoints.
func (h *Handler) MountAPI(r chi.Router) {
	r.Get("/me/permissions", h.myPermissions)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	data := h.templates.Page(r, "Roles & permissions", BuildCatalogue(h.resolver))
	if err := h.templates.Render(w, "pages/roles.html", data); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// PermissionsResponse is returned by GET /api/me/permissions.
type PermissionsResponse struct {
	UserID      string   `json:"user_id"`
	Role        string   `json:"role"`
	RoleName    string   `json:"role_name,omitempty"`
	Level       int      `json:"level"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	state := rbac.AuthStateFromContext(r.Context())
	if httpx.RespondDecision(w, rbac.Guard(state, "")) {
		return
	}
	user := *state.User
	resp := PermissionsResponse{
		UserID:      user.ID,
		Role:        string(user.Role),
		Level:       h.resolver.Level(user),
		Permissions: h.resolver.EffectivePermissions(user),
	}
	if role, ok := h.resolver.Registry().Role(user.Role); ok {
		resp.RoleName = role.Name
	}
	httpx.JSON(w, http.StatusOK, resp)
}
