package view

import (
	"log/slog"
	"net/http"

	"github.com/bankcrm/bankcrm/internal/rbac"
)

// LoginPageData backs pages/login.html.
type LoginPageData struct {
	Email  string
	Next   string
	Errors map[string]string
}

// DeniedPageData backs pages/access_denied.html.
type DeniedPageData struct {
	RequiredRole string
	ActualRole   string
}

// GuardPages renders the loading, login and access denied views for rbac guards.
type GuardPages struct {
	Engine *Engine
	Logger *slog.Logger
}

var _ rbac.Pages = GuardPages{}

// Loading renders the interstitial shown while the session user is resolved.
func (p GuardPages) Loading(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusServiceUnavailable, "pages/loading.html", "Loading", nil)
}

// Login renders the sign-in form in place of the protected page.
func (p GuardPages) Login(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusUnauthorized, "pages/login.html", "Sign in", LoginPageData{Next: r.URL.RequestURI()})
}

// Denied renders the access denied page with both roles.
func (p GuardPages) Denied(w http.ResponseWriter, r *http.Request, decision rbac.Decision) {
	data := DeniedPageData{RequiredRole: string(decision.RequiredRole), ActualRole: string(decision.ActualRole)}
	p.render(w, r, http.StatusForbidden, "pages/access_denied.html", "Access denied", data)
}

func (p GuardPages) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	if err := p.Engine.RenderStatus(w, status, name, p.Engine.Page(r, title, data)); err != nil {
		if p.Logger != nil {
			p.Logger.Error("render guard page", slog.String("template", name), slog.Any("error", err))
		}
		http.Error(w, http.StatusText(status), status)
	}
}
