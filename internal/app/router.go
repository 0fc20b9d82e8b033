package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/bankcrm/bankcrm/internal/audit/http"
	"github.com/bankcrm/bankcrm/internal/auth"
	"github.com/bankcrm/bankcrm/internal/dashboard"
	"github.com/bankcrm/bankcrm/internal/leads"
	"github.com/bankcrm/bankcrm/internal/observability"
	"github.com/bankcrm/bankcrm/internal/preferences"
	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/roles"
	"github.com/bankcrm/bankcrm/internal/shared"
	"github.com/bankcrm/bankcrm/internal/tasks"
	"github.com/bankcrm/bankcrm/internal/users"
	"github.com/bankcrm/bankcrm/internal/view"
	"github.com/bankcrm/bankcrm/jobs"
	"github.com/bankcrm/bankcrm/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Templates          *view.Engine
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	StateResolver      *auth.StateResolver
	RBACMiddleware     rbac.Middleware
	AuthHandler        *auth.Handler
	DashboardHandler   *dashboard.Handler
	LeadsHandler       *leads.Handler
	TasksHandler       *tasks.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	AuditHandler       *audithttp.Handler
	PreferencesHandler *preferences.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with the CRM routes.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	mwCfg := MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}
	if params.StateResolver != nil {
		mwCfg.AuthState = params.StateResolver.Middleware
	}
	for _, mw := range MiddlewareStack(mwCfg) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.DashboardHandler != nil {
		params.DashboardHandler.MountHome(r)
		r.Route("/team", params.DashboardHandler.MountTeam)
	}
	if params.LeadsHandler != nil {
		r.Route("/leads", params.LeadsHandler.MountRoutes)
	}
	if params.TasksHandler != nil {
		r.Route("/tasks", params.TasksHandler.MountRoutes)
	}
	r.Route("/admin", func(r chi.Router) {
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
	})
	if params.RolesHandler != nil {
		r.Route("/api", params.RolesHandler.MountAPI)
	}
	if params.PreferencesHandler != nil {
		r.Route("/preferences", params.PreferencesHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireAny(rbac.PermWorkflowManage))
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler lets browsers cache static assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
