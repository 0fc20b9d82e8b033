package leads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/shared"
	"github.com/bankcrm/bankcrm/internal/users"
)

// UserDirectory resolves assignees.
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// IdempotencyGuard rejects replayed form submissions.
type IdempotencyGuard interface {
	Claim(ctx context.Context, scope, key string) error
	Release(ctx context.Context, scope, key string) error
}

const idempotencyScope = "leads.create"

// Service implements the lead pipeline rules.
type Service struct {
	repo     Repository
	resolver *rbac.Resolver
	users    UserDirectory
	audit    shared.Auditor
	idem     IdempotencyGuard
	validate *validator.Validate
	logger   *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithAuditor records lead changes.
func WithAuditor(a shared.Auditor) Option { return func(s *Service) { s.audit = a } }

// WithIdempotency enables replay protection for create.
func WithIdempotency(g IdempotencyGuard) Option { return func(s *Service) { s.idem = g } }

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// NewService constructs a Service.
func NewService(repo Repository, resolver *rbac.Resolver, directory UserDirectory, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		resolver: resolver,
		users:    directory,
		validate: validator.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidationError lists field problems of a form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	return "leads: invalid fields: " + strings.Join(keys, ", ")
}

// UserMessage implements shared.UserFacingError.
func (e *ValidationError) UserMessage() string {
	return "Please correct the highlighted fields."
}

// SeesTeam reports whether actor may see leads owned by others.
func (s *Service) SeesTeam(actor rbac.User) bool {
	return s.resolver.HasPermission(actor, rbac.PermDashboardTeam)
}

// CanReassign reports whether actor may choose an assignee.
func (s *Service) CanReassign(actor rbac.User) bool {
	return s.resolver.HasAnyPermission(actor, []string{rbac.PermLeadAssign, rbac.PermLeadManage})
}

// List returns leads visible to actor.
func (s *Service) List(ctx context.Context, actor rbac.User, filter ListFilter) ([]Lead, int, error) {
	if !s.SeesTeam(actor) {
		id, err := subjectID(actor)
		if err != nil {
			return nil, 0, err
		}
		filter.AssignedTo = id
	}
	if filter.Status != "" && !filter.Status.Valid() {
		filter.Status = ""
	}
	return s.repo.List(ctx, filter)
}

// Get loads a lead visible to actor.
func (s *Service) Get(ctx context.Context, actor rbac.User, id int64) (*Lead, error) {
	lead, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.visible(actor, lead) {
		return nil, ErrNotFound
	}
	return lead, nil
}

// Create validates req and stores a new lead in StatusNew.
func (s *Service) Create(ctx context.Context, actor rbac.User, req CreateLeadRequest) (*Lead, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	if fields := s.check(req); len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	creator, err := subjectID(actor)
	if err != nil {
		return nil, err
	}
	assignee := creator
	if req.AssignedTo > 0 && req.AssignedTo != creator {
		if !s.CanReassign(actor) {
			return nil, &ValidationError{Fields: map[string]string{"AssignedTo": "You can only capture leads for yourself"}}
		}
		if err := s.checkAssignee(ctx, req.AssignedTo); err != nil {
			return nil, err
		}
		assignee = req.AssignedTo
	}

	if req.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.Claim(ctx, idempotencyScope, req.IdempotencyKey); err != nil {
			return nil, err
		}
	}

	lead := Lead{
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Product:    req.Product,
		Source:     req.Source,
		Status:     StatusNew,
		Value:      req.Value,
		AssignedTo: assignee,
		CreatedBy:  creator,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, lead)
		if err != nil {
			return err
		}
		lead.ID = id
		return nil
	})
	if err != nil {
		if req.IdempotencyKey != "" && s.idem != nil {
			_ = s.idem.Release(ctx, idempotencyScope, req.IdempotencyKey)
		}
		return nil, fmt.Errorf("create lead: %w", err)
	}
	s.record(ctx, actor, "lead.created", lead.ID, map[string]any{"assigned_to": assignee, "product": lead.Product})
	return &lead, nil
}

// UpdateStatus moves a lead along the pipeline.
func (s *Service) UpdateStatus(ctx context.Context, actor rbac.User, id int64, next Status) (*Lead, error) {
	lead, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !lead.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, lead.Status, next)
	}
	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "lead.status_changed", id, map[string]any{"from": string(lead.Status), "to": string(next)})
	lead.Status = next
	return lead, nil
}

// Assign hands a lead to another active user.
func (s *Service) Assign(ctx context.Context, actor rbac.User, id, userID int64) (*Lead, error) {
	lead, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, userID); err != nil {
		return nil, err
	}
	if lead.AssignedTo == userID {
		return lead, nil
	}
	if err := s.repo.Assign(ctx, id, userID); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "lead.assigned", id, map[string]any{"from": lead.AssignedTo, "to": userID})
	lead.AssignedTo = userID
	return lead, nil
}

// Delete removes a lead.
func (s *Service) Delete(ctx context.Context, actor rbac.User, id int64) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "lead.deleted", id, nil)
	return nil
}

// StatusCounts returns per-stage counts, scoped like List.
func (s *Service) StatusCounts(ctx context.Context, actor rbac.User) (map[Status]int, error) {
	var owner int64
	if !s.SeesTeam(actor) {
		id, err := subjectID(actor)
		if err != nil {
			return nil, err
		}
		owner = id
	}
	return s.repo.CountByStatus(ctx, owner)
}

// TeamPipeline returns per-owner counts.
func (s *Service) TeamPipeline(ctx context.Context) ([]OwnerCount, error) {
	return s.repo.CountByOwner(ctx)
}

func (s *Service) visible(actor rbac.User, lead *Lead) bool {
	if s.SeesTeam(actor) {
		return true
	}
	id, err := subjectID(actor)
	return err == nil && lead.AssignedTo == id
}

func (s *Service) checkAssignee(ctx context.Context, userID int64) error {
	if s.users == nil {
		return nil
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ErrInvalidAssignee
		}
		return err
	}
	if !u.IsActive {
		return ErrInvalidAssignee
	}
	return nil
}

func (s *Service) check(req CreateLeadRequest) map[string]string {
	fields := make(map[string]string)
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fieldMessage(fe)
			}
		}
	}
	if req.Phone == "" && req.Email == "" {
		fields["Phone"] = "Provide a phone number or an email"
	}
	return fields
}

func (s *Service) record(ctx context.Context, actor rbac.User, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor.ID, Action: action, Entity: "lead", EntityID: strconv.FormatInt(id, 10), Meta: meta})
	if err != nil {
		s.logger.Warn("audit lead", slog.String("action", action), slog.Int64("lead_id", id), slog.Any("error", err))
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "oneof":
		return "Choose one of the listed options"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	case "gte":
		return "Must not be negative"
	}
	return "Invalid value"
}

func subjectID(actor rbac.User) (int64, error) {
	id, err := strconv.ParseInt(actor.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("leads: actor id %q: %w", actor.ID, err)
	}
	return id, nil
}
