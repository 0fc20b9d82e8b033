package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bankcrm/bankcrm/internal/shared"
)

// Service checks CRM staff credentials and records login sessions.
type Service struct {
	repo Repository
	// dummyHash is compared against when the email is unknown so both paths
	// cost one bcrypt comparison.
	dummyHash []byte
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("bankcrm-unknown-user"), bcrypt.MinCost)
	return &Service{repo: repo, dummyHash: dummy}
}

// Authenticate returns the staff member owning email when password matches.
// Unknown emails and wrong passwords both yield shared.ErrInvalidCredentials;
// a deactivated account yields shared.ErrInactiveUser after the password
// check. Store failures are returned as is.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, fmt.Errorf("auth: user %d: %w", user.ID, shared.ErrInactiveUser)
	}
	return user, nil
}

// HashPassword produces a bcrypt hash for the users table.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("auth: password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// RegisterSession records a login in the sessions table.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes the login record for id.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
