package tasks

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/shared"
	"github.com/bankcrm/bankcrm/internal/users"
	"github.com/bankcrm/bankcrm/internal/view"
)

// dueLayout matches the value of an HTML datetime-local input.
const dueLayout = "2006-01-02T15:04"

// OwnerLister supplies the owner picker.
type OwnerLister interface {
	ListAssignable(ctx context.Context) ([]users.User, error)
}

// Handler serves the task pages.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	owners    OwnerLister
	rbac      rbac.Middleware
}

// NewHandler builds a Handler. owners may be nil.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, owners OwnerLister, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, owners: owners, rbac: rbac}
}

// MountRoutes registers task routes; mount under /tasks.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAccess(rbac.ResourceTasks, rbac.ActionRead)).Get("/", h.list)
	r.With(h.rbac.RequireAccess(rbac.ResourceTasks, rbac.ActionCreate)).Post("/", h.create)
	r.With(h.rbac.RequireAccess(rbac.ResourceTasks, rbac.ActionUpdate)).Post("/{id}/complete", h.complete)
	r.With(h.rbac.RequireAccess(rbac.ResourceTasks, rbac.ActionDelete)).Post("/{id}/delete", h.delete)
}

// ListPageData feeds pages/tasks.html.
type ListPageData struct {
	Tasks      []Task
	Now        time.Time
	ShowDone   bool
	SeesTeam   bool
	Owners     []users.User
	Priorities []Priority
	Form       CreateTaskRequest
	FormDue    string
	Errors     map[string]string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, CreateTaskRequest{Priority: PriorityNormal}, "", map[string]string{}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	actor, _ := rbac.UserFromContext(r.Context())
	req, due, errs := parseCreateForm(r)
	if len(errs) > 0 {
		h.renderList(w, r, req, due, errs, http.StatusBadRequest)
		return
	}

	task, err := h.service.Create(r.Context(), actor, req)
	var fields FieldErrors
	switch {
	case errors.As(err, &fields):
		h.renderList(w, r, req, due, fields, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidOwner):
		h.renderList(w, r, req, due, map[string]string{"OwnerID": "You can only schedule tasks for yourself"}, http.StatusBadRequest)
	case err != nil:
		h.logger.Error("create task failed", slog.Any("error", err))
		h.renderList(w, r, req, due, map[string]string{"general": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
	default:
		h.logger.Info("task created", slog.Int64("task_id", task.ID), slog.Int64("owner_id", task.OwnerID))
		h.redirectWithFlash(w, r, "/tasks", "success", "Task scheduled")
	}
}

// parseCreateForm reads the new task form. Malformed optional ids and dates are
// reported as field errors rather than dropped.
func parseCreateForm(r *http.Request) (CreateTaskRequest, string, map[string]string) {
	req := CreateTaskRequest{
		Title:    r.PostFormValue("title"),
		Notes:    r.PostFormValue("notes"),
		Priority: Priority(r.PostFormValue("priority")),
	}
	errs := map[string]string{}
	var ok bool
	if req.LeadID, ok = parseOptionalID(r.PostFormValue("lead_id")); !ok {
		errs["LeadID"] = "Enter a valid lead number"
	}
	if req.OwnerID, ok = parseOptionalID(r.PostFormValue("owner_id")); !ok {
		errs["OwnerID"] = "Choose a valid owner"
	}
	due := strings.TrimSpace(r.PostFormValue("due_at"))
	if due != "" {
		parsed, err := time.ParseInLocation(dueLayout, due, time.Local)
		if err != nil {
			errs["DueAt"] = "Enter a valid date and time"
		} else {
			req.DueAt = parsed
		}
	}
	return req, due, errs
}

func parseOptionalID(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Complete, "Task completed")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Delete, "Task deleted")
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(context.Context, rbac.User, int64) error, success string) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid task ID", http.StatusBadRequest)
		return
	}
	actor, _ := rbac.UserFromContext(r.Context())
	switch err := op(r.Context(), actor, id); {
	case errors.Is(err, ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, ErrAlreadyDone):
		h.redirectWithFlash(w, r, "/tasks", "info", "Task was already completed")
	case err != nil:
		h.logger.Error("task update failed", slog.Int64("task_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/tasks", "danger", shared.UserSafeMessage(err))
	default:
		h.redirectWithFlash(w, r, "/tasks", "success", success)
	}
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, form CreateTaskRequest, due string, errs map[string]string, status int) {
	actor, _ := rbac.UserFromContext(r.Context())
	showDone := r.URL.Query().Get("done") == "1"
	list, err := h.service.List(r.Context(), actor, ListFilter{IncludeDone: showDone})
	if err != nil {
		h.logger.Error("list tasks failed", slog.Any("error", err))
		http.Error(w, "Failed to load tasks", http.StatusInternalServerError)
		return
	}
	data := ListPageData{
		Tasks:      list,
		Now:        time.Now(),
		ShowDone:   showDone,
		SeesTeam:   h.service.SeesTeam(actor),
		Priorities: Priorities(),
		Form:       form,
		FormDue:    due,
		Errors:     errs,
	}
	if data.SeesTeam && h.owners != nil {
		owners, err := h.owners.ListAssignable(r.Context())
		if err != nil {
			h.logger.Warn("list owners", slog.Any("error", err))
		}
		data.Owners = owners
	}
	if err := h.templates.RenderStatus(w, status, "pages/tasks.html", h.templates.Page(r, "Tasks", data)); err != nil {
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
