package users

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filter ListFilter) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	UpdateRole(ctx context.Context, id int64, role rbac.RoleID) error
}

// StateForgetter drops cached auth state after a role change.
type StateForgetter interface {
	Forget(ctx context.Context, id int64)
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	registry *rbac.Registry
	states   StateForgetter
	audit    shared.Auditor
	logger   *slog.Logger
}

// NewService builds Service instance. states and audit may be nil.
func NewService(repo RepositoryPort, registry *rbac.Registry, states StateForgetter, audit shared.Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, registry: registry, states: states, audit: audit, logger: logger}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx, ListFilter{})
}

// ListAssignable returns active users that can own leads and tasks.
func (s *Service) ListAssignable(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx, ListFilter{ActiveOnly: true})
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// ChangeRole moves a user to another registered role.
func (s *Service) ChangeRole(ctx context.Context, actor rbac.User, id int64, role rbac.RoleID) error {
	if _, ok := s.registry.Role(role); !ok {
		return ErrUnknownRole
	}
	current, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if current.Role == role {
		return nil
	}
	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return err
	}
	if s.states != nil {
		s.states.Forget(ctx, id)
	}
	if s.audit != nil {
		entry := shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "user.role_changed",
			Entity:   "user",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"from": string(current.Role), "to": string(role)},
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			s.logger.Warn("audit role change", slog.Int64("user_id", id), slog.Any("error", err))
		}
	}
	return nil
}
