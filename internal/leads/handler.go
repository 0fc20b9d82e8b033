package leads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/shared"
	"github.com/bankcrm/bankcrm/internal/users"
	"github.com/bankcrm/bankcrm/internal/view"
)

// AssigneeLister supplies the assignee picker.
type AssigneeLister interface {
	ListAssignable(ctx context.Context) ([]users.User, error)
}

// Handler serves the lead pages.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	assignees AssigneeLister
	rbac      rbac.Middleware
}

// NewHandler builds a Handler. assignees may be nil.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, assignees AssigneeLister, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, assignees: assignees, rbac: rbac}
}

// ListPageData feeds pages/leads.html.
type ListPageData struct {
	Leads      []Lead
	Filter     ListFilter
	Pagination shared.Pagination
	Statuses   []Status
	SeesTeam   bool
	Assignees  []users.User
}

// FormPageData feeds pages/lead_form.html.
type FormPageData struct {
	Form           CreateLeadRequest
	Errors         map[string]string
	Products       []string
	Sources        []string
	Assignees      []users.User
	CanReassign    bool
	IdempotencyKey string
}

// DetailPageData feeds pages/lead_detail.html and partials/lead_actions.html.
type DetailPageData struct {
	Lead      *Lead
	Assignees []users.User
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.UserFromContext(r.Context())
	q := r.URL.Query()
	filter := ListFilter{
		Status: Status(q.Get("status")),
		Search: strings.TrimSpace(q.Get("q")),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	if v, err := strconv.ParseInt(q.Get("assigned_to"), 10, 64); err == nil {
		filter.AssignedTo = v
	}
	leads, total, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		h.logger.Error("list leads failed", slog.Any("error", err))
		http.Error(w, "Failed to load leads", http.StatusInternalServerError)
		return
	}
	perPage, _ := filter.limitOffset()
	data := ListPageData{
		Leads:      leads,
		Filter:     filter,
		Pagination: shared.NewPagination(filter.Page, perPage, total),
		Statuses:   Statuses(),
		SeesTeam:   h.service.SeesTeam(actor),
	}
	if data.SeesTeam {
		data.Assignees = h.loadAssignees(r.Context())
	}
	h.render(w, r, "pages/leads.html", "Leads", data, http.StatusOK)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.loadLead(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/lead_detail.html", lead.Name, h.detail(r, lead), http.StatusOK)
}

func (h *Handler) actions(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.loadLead(w, r)
	if !ok {
		return
	}
	h.render(w, r, "partials/lead_actions.html", "", h.detail(r, lead), http.StatusOK)
}

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.UserFromContext(r.Context())
	h.renderForm(w, r, actor, CreateLeadRequest{Source: "walk_in"}, map[string]string{}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	actor, _ := rbac.UserFromContext(r.Context())
	req := CreateLeadRequest{
		Name:           r.PostFormValue("name"),
		Phone:          r.PostFormValue("phone"),
		Email:          r.PostFormValue("email"),
		Product:        r.PostFormValue("product"),
		Source:         r.PostFormValue("source"),
		IdempotencyKey: r.PostFormValue("idempotency_key"),
	}
	errs := map[string]string{}
	if v := strings.TrimSpace(r.PostFormValue("value")); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs["Value"] = "Enter a number"
		}
		req.Value = parsed
	}
	if v := r.PostFormValue("assigned_to"); v != "" {
		req.AssignedTo, _ = strconv.ParseInt(v, 10, 64)
	}
	if len(errs) > 0 {
		h.renderForm(w, r, actor, req, errs, http.StatusBadRequest)
		return
	}

	lead, err := h.service.Create(r.Context(), actor, req)
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		h.renderForm(w, r, actor, req, verr.Fields, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidAssignee):
		h.renderForm(w, r, actor, req, map[string]string{"AssignedTo": "Choose an active user"}, http.StatusBadRequest)
	case errors.Is(err, shared.ErrIdempotencyConflict):
		h.redirectWithFlash(w, r, "/leads", "info", shared.UserSafeMessage(err))
	case err != nil:
		h.logger.Error("create lead failed", slog.Any("error", err))
		h.renderForm(w, r, actor, req, map[string]string{"general": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
	default:
		h.logger.Info("lead created", slog.Int64("lead_id", lead.ID), slog.String("actor", actor.ID))
		h.redirectWithFlash(w, r, fmt.Sprintf("/leads/%d", lead.ID), "success", "Lead captured")
	}
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	actor, _ := rbac.UserFromContext(r.Context())
	next := Status(r.PostFormValue("status"))
	_, err := h.service.UpdateStatus(r.Context(), actor, id, next)
	h.afterMutation(w, r, id, err, "Status changed to "+string(next))
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	actor, _ := rbac.UserFromContext(r.Context())
	userID, err := strconv.ParseInt(r.PostFormValue("assigned_to"), 10, 64)
	if err != nil {
		h.redirectWithFlash(w, r, fmt.Sprintf("/leads/%d", id), "danger", "Choose a user to assign")
		return
	}
	_, err = h.service.Assign(r.Context(), actor, id, userID)
	h.afterMutation(w, r, id, err, "Lead reassigned")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	actor, _ := rbac.UserFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.afterMutation(w, r, id, err, "")
		return
	}
	h.logger.Info("lead deleted", slog.Int64("lead_id", id), slog.String("actor", actor.ID))
	h.redirectWithFlash(w, r, "/leads", "success", "Lead deleted")
}

func (h *Handler) afterMutation(w http.ResponseWriter, r *http.Request, id int64, err error, success string) {
	back := fmt.Sprintf("/leads/%d", id)
	switch {
	case errors.Is(err, ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, ErrInvalidTransition):
		h.redirectWithFlash(w, r, back, "danger", "That status change is not allowed")
	case errors.Is(err, ErrInvalidAssignee):
		h.redirectWithFlash(w, r, back, "danger", "Choose an active user")
	case err != nil:
		h.logger.Error("lead update failed", slog.Int64("lead_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, back, "danger", shared.UserSafeMessage(err))
	default:
		h.redirectWithFlash(w, r, back, "success", success)
	}
}

func (h *Handler) loadLead(w http.ResponseWriter, r *http.Request) (*Lead, bool) {
	id, ok := parseID(w, r)
	if !ok {
		return nil, false
	}
	actor, _ := rbac.UserFromContext(r.Context())
	lead, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return nil, false
		}
		h.logger.Error("get lead failed", slog.Int64("lead_id", id), slog.Any("error", err))
		http.Error(w, "Failed to load lead", http.StatusInternalServerError)
		return nil, false
	}
	return lead, true
}

func (h *Handler) detail(r *http.Request, lead *Lead) DetailPageData {
	data := DetailPageData{Lead: lead}
	actor, _ := rbac.UserFromContext(r.Context())
	if h.service.CanReassign(actor) {
		data.Assignees = h.loadAssignees(r.Context())
	}
	return data
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, actor rbac.User, form CreateLeadRequest, errs map[string]string, status int) {
	data := FormPageData{
		Form:           form,
		Errors:         errs,
		Products:       Products,
		Sources:        Sources,
		CanReassign:    h.service.CanReassign(actor),
		IdempotencyKey: uuid.NewString(),
	}
	if data.CanReassign {
		data.Assignees = h.loadAssignees(r.Context())
	}
	h.render(w, r, "pages/lead_form.html", "New lead", data, status)
}

func (h *Handler) loadAssignees(ctx context.Context) []users.User {
	if h.assignees == nil {
		return nil
	}
	list, err := h.assignees.ListAssignable(ctx)
	if err != nil {
		h.logger.Warn("list assignees", slog.Any("error", err))
		return nil
	}
	return list
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	if err := h.templates.RenderStatus(w, status, template, h.templates.Page(r, title, data)); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid lead ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
