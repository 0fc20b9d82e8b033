package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/bankcrm/bankcrm/internal/leads"
	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/view"
)

const loadTimeout = 2 * time.Second

// LeadStats is the lead data the dashboards read.
type LeadStats interface {
	StatusCounts(ctx context.Context, actor rbac.User) (map[leads.Status]int, error)
	TeamPipeline(ctx context.Context) ([]leads.OwnerCount, error)
}

// TaskStats is the task data the dashboards read.
type TaskStats interface {
	OpenCount(ctx context.Context, actor rbac.User) (int, error)
}

// Handler serves the home and team dashboards.
type Handler struct {
	logger    *slog.Logger
	leads     LeadStats
	tasks     TaskStats
	templates *view.Engine
	rbac      rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, leads LeadStats, tasks TaskStats, templates *view.Engine, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, leads: leads, tasks: tasks, templates: templates, rbac: rbac}
}

// HomePageData feeds pages/home.html.
type HomePageData struct {
	Statuses   []leads.Status
	LeadCounts map[leads.Status]int
	OpenLeads  int
	OpenTasks  int
}

// TeamPageData feeds pages/team.html.
type TeamPageData struct {
	Statuses   []leads.Status
	Owners     []leads.OwnerCount
	LeadCounts map[leads.Status]int
	OpenTasks  int
}

// MountHome registers the home dashboard at the router root.
func (h *Handler) MountHome(r chi.Router) {
	r.With(h.rbac.RequireLogin()).Get("/", h.home)
}

// MountTeam registers the supervisor dashboard; mount under /team.
func (h *Handler) MountTeam(r chi.Router) {
	r.With(h.rbac.RequireRole(rbac.RoleSupervisor)).Get("/", h.team)
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.UserFromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), loadTimeout)
	defer cancel()

	data := HomePageData{Statuses: leads.Statuses()}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := h.leads.StatusCounts(ctx, actor)
		if err != nil {
			return err
		}
		data.LeadCounts = counts
		return nil
	})
	g.Go(func() error {
		open, err := h.tasks.OpenCount(ctx, actor)
		if err != nil {
			return err
		}
		data.OpenTasks = open
		return nil
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("load home dashboard", slog.String("user", actor.ID), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	data.OpenLeads = openLeads(data.LeadCounts)
	h.render(w, r, "pages/home.html", "Dashboard", data)
}

func (h *Handler) team(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.UserFromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), loadTimeout)
	defer cancel()

	data := TeamPageData{Statuses: leads.Statuses()}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		owners, err := h.leads.TeamPipeline(ctx)
		if err != nil {
			return err
		}
		data.Owners = owners
		return nil
	})
	g.Go(func() error {
		counts, err := h.leads.StatusCounts(ctx, actor)
		if err != nil {
			return err
		}
		data.LeadCounts = counts
		return nil
	})
	g.Go(func() error {
		open, err := h.tasks.OpenCount(ctx, actor)
		if err != nil {
			return err
		}
		data.OpenTasks = open
		return nil
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("load team dashboard", slog.String("user", actor.ID), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/team.html", "Team pipeline", data)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	if err := h.templates.Render(w, name, h.templates.Page(r, title, data)); err != nil {
		h.logger.Error("render template", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func openLeads(counts map[leads.Status]int) int {
	total := 0
	for status, n := range counts {
		if !status.Terminal() {
			total += n
		}
	}
	return total
}
