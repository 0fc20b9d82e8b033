package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/shared"
	"github.com/bankcrm/bankcrm/internal/view"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAccess(rbac.ResourceUsers, rbac.ActionRead)).Get("/", h.listUsers)
	r.With(h.rbac.RequireAny(rbac.PermUserManage)).Post("/{id}/role", h.changeRole)
}

// ListPageData feeds pages/users.html.
type ListPageData struct {
	Users  []User
	Roles  []rbac.Role
	Errors map[string]string
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		h.render(w, r, ListPageData{Errors: map[string]string{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, ListPageData{Users: list, Roles: h.service.registry.Roles()}, http.StatusOK)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor, _ := rbac.UserFromContext(r.Context())
	role := rbac.RoleID(r.PostFormValue("role"))
	switch err := h.service.ChangeRole(r.Context(), actor, id, role); {
	case errors.Is(err, ErrUnknownRole):
		h.redirectWithFlash(w, r, "/admin/users", "danger", "Unknown role "+string(role))
	case err != nil:
		h.logger.Error("change role failed", slog.Int64("user_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/admin/users", "danger", shared.UserSafeMessage(err))
	default:
		h.logger.Info("user role changed", slog.Int64("user_id", id), slog.String("role", string(role)), slog.String("actor", actor.ID))
		h.redirectWithFlash(w, r, "/admin/users", "success", "Role updated")
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data ListPageData, status int) {
	if err := h.templates.RenderStatus(w, status, "pages/users.html", h.templates.Page(r, "Users", data)); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
