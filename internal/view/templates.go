package view

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/bankcrm/bankcrm/internal/preferences"
	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/shared"
	"github.com/bankcrm/bankcrm/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
	resolver  *rbac.Resolver
	csrf      *shared.CSRFManager
	prefs     PreferenceLoader
	logger    *slog.Logger
}

// PreferenceLoader supplies persisted UI flags for a user.
type PreferenceLoader interface {
	Snapshot(ctx context.Context, userID string) (preferences.Snapshot, error)
}

// Option customises an Engine.
type Option func(*Engine)

// WithResolver enables permission helpers in templates.
func WithResolver(resolver *rbac.Resolver) Option {
	return func(e *Engine) { e.resolver = resolver }
}

// WithCSRF lets Page issue CSRF tokens.
func WithCSRF(csrf *shared.CSRFManager) Option {
	return func(e *Engine) { e.csrf = csrf }
}

// WithPreferences lets Page read theme and onboarding flags.
func WithPreferences(prefs PreferenceLoader) Option {
	return func(e *Engine) { e.prefs = prefs }
}

// WithLogger sets the logger used for non-fatal rendering problems.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title          string
	CSRFToken      string
	Flash          *shared.FlashMessage
	CurrentPath    string
	Access         Access
	ThemeColor     string
	ShowOnboarding bool
	Data           any
}

var (
	titleCaser    = cases.Title(language.English)
	amountPrinter = message.NewPrinter(language.English)
)

// NewEngine parses templates at build-time.
func NewEngine(opts ...Option) (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"formatAmount": func(v float64) string {
			return formatAmount(v)
		},
		"label": func(v any) string {
			return titleCaser.String(strings.ReplaceAll(fmt.Sprint(v), "_", " "))
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	e := &Engine{templates: tpl, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Page assembles TemplateData for the current request: CSRF token, pending
// flash, access helpers and persisted preferences.
func (e *Engine) Page(r *http.Request, title string, data any) TemplateData {
	td := TemplateData{Title: title, CurrentPath: r.URL.Path, Data: data, ThemeColor: preferences.DefaultThemeColor}
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	if e == nil {
		return td
	}
	if e.csrf != nil && sess != nil {
		token, err := e.csrf.EnsureToken(ctx, sess)
		if err == nil {
			td.CSRFToken = token
		}
	}
	if sess != nil {
		td.Flash = sess.PopFlash()
	}
	user, ok := rbac.UserFromContext(ctx)
	td.Access = Access{resolver: e.resolver, user: user, authenticated: ok}
	if ok && e.prefs != nil {
		snap, err := e.prefs.Snapshot(ctx, user.ID)
		if err != nil {
			e.logger.Warn("load preferences", slog.String("user", user.ID), slog.Any("error", err))
		} else {
			td.ThemeColor = snap.ThemeColor
			td.ShowOnboarding = !snap.OnboardingSeen
		}
	}
	return td
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus executes a named template and writes it with status.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Execute writes a named template to w without HTTP framing.
func (e *Engine) Execute(w io.Writer, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	return e.templates.ExecuteTemplate(w, name, data)
}

func formatAmount(v float64) string {
	return amountPrinter.Sprintf("%.2f", v)
}
