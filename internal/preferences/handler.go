package preferences

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/shared"
)

// Handler exposes preference updates.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: mw}
}

// MountRoutes registers preference routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireLogin())
		r.Post("/theme", h.updateTheme)
		r.Post("/onboarding", h.updateOnboarding)
	})
}

func (h *Handler) updateTheme(w http.ResponseWriter, r *http.Request) {
	user, _ := rbac.UserFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	var err error
	if r.PostFormValue("reset") != "" {
		err = h.service.ResetThemeColor(r.Context(), user.ID)
	} else {
		err = h.service.SetThemeColor(r.Context(), user.ID, r.PostFormValue("color"))
	}
	switch {
	case errors.Is(err, ErrInvalidColor):
		h.redirectWithFlash(w, r, "danger", "Theme colour must be a hex value such as #0f4c81")
	case err != nil:
		h.logger.Error("update theme", slog.String("user", user.ID), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	default:
		h.redirectWithFlash(w, r, "success", "Theme updated")
	}
}

func (h *Handler) updateOnboarding(w http.ResponseWriter, r *http.Request) {
	user, _ := rbac.UserFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	var err error
	if r.PostFormValue("reset") != "" {
		err = h.service.ResetOnboarding(r.Context(), user.ID)
	} else {
		err = h.service.MarkOnboardingSeen(r.Context(), user.ID)
	}
	if err != nil {
		h.logger.Error("update onboarding", slog.String("user", user.ID), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

// backTo returns the same-site page the form was posted from.
func backTo(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return "/"
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}
