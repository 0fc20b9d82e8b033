package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bankcrm/bankcrm/internal/app"
	"github.com/bankcrm/bankcrm/internal/audit"
	audithttp "github.com/bankcrm/bankcrm/internal/audit/http"
	"github.com/bankcrm/bankcrm/internal/auth"
	"github.com/bankcrm/bankcrm/internal/dashboard"
	"github.com/bankcrm/bankcrm/internal/leads"
	"github.com/bankcrm/bankcrm/internal/observability"
	"github.com/bankcrm/bankcrm/internal/platform/cache"
	"github.com/bankcrm/bankcrm/internal/platform/db"
	"github.com/bankcrm/bankcrm/internal/preferences"
	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/roles"
	"github.com/bankcrm/bankcrm/internal/shared"
	"github.com/bankcrm/bankcrm/internal/tasks"
	"github.com/bankcrm/bankcrm/internal/users"
	"github.com/bankcrm/bankcrm/internal/view"
	"github.com/bankcrm/bankcrm/jobs"
	"github.com/bankcrm/bankcrm/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, sessions will fail until it recovers", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "bankcrm_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	registry := rbac.DefaultRegistry()
	resolver := rbac.NewResolver(registry)

	prefService := preferences.NewService(preferences.NewRedisStore(redisClient, 0))

	templates, err := view.NewEngine(
		view.WithResolver(resolver),
		view.WithCSRF(csrfManager),
		view.WithPreferences(prefService),
		view.WithLogger(logger),
	)
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	rbacMiddleware := rbac.Middleware{
		Resolver: resolver,
		Pages:    view.GuardPages{Engine: templates, Logger: logger},
		Logger:   logger,
		Recorder: metrics,
	}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	stateResolver := auth.NewStateResolver(authRepo, redisClient, auth.StateResolverConfig{
		Wait:     cfg.AuthResolveTimeout,
		CacheTTL: cfg.AuthUserCacheTTL,
	}, logger)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, stateResolver)

	usersService := users.NewService(users.NewRepository(dbpool), registry, stateResolver, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, templates, rbacMiddleware)

	leadsService := leads.NewService(leads.NewRepository(dbpool), resolver, usersService,
		leads.WithAuditor(auditLogger),
		leads.WithIdempotency(idempotencyStore),
		leads.WithLogger(logger),
	)
	leadsHandler := leads.NewHandler(logger, leadsService, templates, usersService, rbacMiddleware)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	tasksService := tasks.NewService(tasks.NewRepository(dbpool), resolver, leadsService, jobClient,
		tasks.Config{ReminderLead: cfg.TaskReminderLead}, logger,
		tasks.WithAuditor(auditLogger),
		tasks.WithUserDirectory(usersService),
	)
	tasksHandler := tasks.NewHandler(logger, tasksService, templates, usersService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	auditHandler := audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), templates, rbacMiddleware)
	if cfg.GotenbergURL != "" {
		reportClient := report.NewClient(cfg.GotenbergURL, cfg.GotenbergTimeout)
		if err := reportClient.Ping(ctx); err != nil {
			logger.Warn("gotenberg unavailable, pdf exports will fail", slog.Any("error", err))
		}
		auditHandler.WithPDF(reportClient)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Templates:          templates,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		StateResolver:      stateResolver,
		RBACMiddleware:     rbacMiddleware,
		AuthHandler:        authHandler,
		DashboardHandler:   dashboard.NewHandler(logger, leadsService, tasksService, templates, rbacMiddleware),
		LeadsHandler:       leadsHandler,
		TasksHandler:       tasksHandler,
		RolesHandler:       roles.NewHandler(logger, resolver, templates, rbacMiddleware),
		UsersHandler:       usersHandler,
		AuditHandler:       auditHandler,
		PreferencesHandler: preferences.NewHandler(logger, prefService, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Int("roles", len(registry.Roles())))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
