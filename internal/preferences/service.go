package preferences

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Keys stored per user.
const (
	KeyThemeColor     = "theme_color"
	KeyOnboardingSeen = "onboarding_seen"
)

// DefaultThemeColor is used until a user picks a colour.
const DefaultThemeColor = "#0f4c81"

// ErrInvalidColor is returned for values that are not hex colours.
var ErrInvalidColor = errors.New("preferences: invalid theme colour")

// Snapshot is the set of flags templates need.
type Snapshot struct {
	ThemeColor     string
	OnboardingSeen bool
}

// Service validates and reads preferences.
type Service struct {
	store    Store
	validate *validator.Validate
}

// NewService builds a Service over store.
func NewService(store Store) *Service {
	return &Service{store: store, validate: validator.New()}
}

type themeInput struct {
	Color string `validate:"required,hexcolor"`
}

// SetThemeColor stores a validated hex colour.
func (s *Service) SetThemeColor(ctx context.Context, userID, color string) error {
	color = strings.ToLower(strings.TrimSpace(color))
	if err := s.validate.Struct(themeInput{Color: color}); err != nil {
		return ErrInvalidColor
	}
	return s.store.Set(ctx, userID, KeyThemeColor, color)
}

// ResetThemeColor reverts to DefaultThemeColor.
func (s *Service) ResetThemeColor(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID, KeyThemeColor)
}

// MarkOnboardingSeen records that the onboarding tour was dismissed.
func (s *Service) MarkOnboardingSeen(ctx context.Context, userID string) error {
	return s.store.Set(ctx, userID, KeyOnboardingSeen, "1")
}

// ResetOnboarding shows the onboarding tour again.
func (s *Service) ResetOnboarding(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID, KeyOnboardingSeen)
}

// Snapshot loads the flags for userID, filling defaults.
func (s *Service) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	snap := Snapshot{ThemeColor: DefaultThemeColor}
	color, ok, err := s.store.Get(ctx, userID, KeyThemeColor)
	if err != nil {
		return snap, err
	}
	if ok && color != "" {
		snap.ThemeColor = color
	}
	seen, ok, err := s.store.Get(ctx, userID, KeyOnboardingSeen)
	if err != nil {
		return snap, err
	}
	snap.OnboardingSeen = ok && seen == "1"
	return snap, nil
}
