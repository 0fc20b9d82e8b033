package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bankcrm/bankcrm/internal/leads"
	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/shared"
	"github.com/bankcrm/bankcrm/internal/users"
)

// ReminderScheduler queues and withdraws due-date reminders.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, task Task, at time.Time) error
	CancelReminder(ctx context.Context, taskID int64) error
}

// LeadLookup checks that a referenced lead is visible to the actor.
type LeadLookup interface {
	Get(ctx context.Context, actor rbac.User, id int64) (*leads.Lead, error)
}

// UserDirectory resolves task owners.
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// Config tunes the Service.
type Config struct {
	// ReminderLead is how long before DueAt the reminder fires.
	ReminderLead time.Duration
}

// Service implements task rules.
type Service struct {
	repo      Repository
	resolver  *rbac.Resolver
	leads     LeadLookup
	reminders ReminderScheduler
	users     UserDirectory
	audit     shared.Auditor
	cfg       Config
	validate  *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithAuditor records task changes.
func WithAuditor(a shared.Auditor) Option { return func(s *Service) { s.audit = a } }

// WithUserDirectory checks that owners assigned by others exist and are active.
func WithUserDirectory(d UserDirectory) Option { return func(s *Service) { s.users = d } }

// NewService constructs a Service. leads and reminders may be nil.
func NewService(repo Repository, resolver *rbac.Resolver, leads LeadLookup, reminders ReminderScheduler, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReminderLead <= 0 {
		cfg.ReminderLead = 30 * time.Minute
	}
	s := &Service{
		repo:      repo,
		resolver:  resolver,
		leads:     leads,
		reminders: reminders,
		cfg:       cfg,
		validate:  validator.New(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FieldErrors lists form problems.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	return "tasks: invalid fields: " + strings.Join(keys, ", ")
}

// UserMessage implements shared.UserFacingError.
func (e FieldErrors) UserMessage() string {
	return "Please correct the highlighted fields."
}

// SeesTeam reports whether actor may see and schedule tasks for others.
func (s *Service) SeesTeam(actor rbac.User) bool {
	return s.resolver.HasPermission(actor, rbac.PermDashboardTeam)
}

// List returns tasks visible to actor.
func (s *Service) List(ctx context.Context, actor rbac.User, filter ListFilter) ([]Task, error) {
	if !s.SeesTeam(actor) {
		id, err := subjectID(actor)
		if err != nil {
			return nil, err
		}
		filter.OwnerID = id
	}
	return s.repo.List(ctx, filter)
}

// Get loads a task visible to actor.
func (s *Service) Get(ctx context.Context, actor rbac.User, id int64) (*Task, error) {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.SeesTeam(actor) {
		owner, err := subjectID(actor)
		if err != nil || task.OwnerID != owner {
			return nil, ErrNotFound
		}
	}
	return task, nil
}

// Create stores a task and schedules its reminder.
func (s *Service) Create(ctx context.Context, actor rbac.User, req CreateTaskRequest) (*Task, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if err := s.validate.Struct(req); err != nil {
		fields := FieldErrors{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fieldMessage(fe)
			}
		}
		return nil, fields
	}
	creator, err := subjectID(actor)
	if err != nil {
		return nil, err
	}
	owner := creator
	if req.OwnerID > 0 && req.OwnerID != creator {
		if !s.SeesTeam(actor) {
			return nil, ErrInvalidOwner
		}
		if err := s.checkOwner(ctx, req.OwnerID); err != nil {
			return nil, err
		}
		owner = req.OwnerID
	}
	if req.LeadID > 0 && s.leads != nil {
		if _, err := s.leads.Get(ctx, actor, req.LeadID); err != nil {
			if errors.Is(err, leads.ErrNotFound) {
				return nil, FieldErrors{"LeadID": "Lead not found"}
			}
			return nil, err
		}
	}

	task := Task{
		Title:     req.Title,
		Notes:     strings.TrimSpace(req.Notes),
		LeadID:    req.LeadID,
		OwnerID:   owner,
		DueAt:     req.DueAt.UTC(),
		Priority:  req.Priority,
		CreatedBy: creator,
		CreatedAt: s.now(),
	}
	id, err := s.repo.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	task.ID = id
	s.record(ctx, actor, "task.created", id, map[string]any{"owner_id": owner, "lead_id": task.LeadID, "due_at": task.DueAt})
	s.schedule(ctx, task)
	return &task, nil
}

// Complete marks a task done and withdraws its reminder.
func (s *Service) Complete(ctx context.Context, actor rbac.User, id int64) error {
	task, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if task.Done {
		return ErrAlreadyDone
	}
	if err := s.repo.Complete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "task.completed", id, nil)
	s.cancel(ctx, id)
	return nil
}

// Delete removes a task and withdraws its reminder.
func (s *Service) Delete(ctx context.Context, actor rbac.User, id int64) error {
	task, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "task.deleted", id, map[string]any{"owner_id": task.OwnerID, "title": task.Title})
	s.cancel(ctx, id)
	return nil
}

// OpenCount counts open tasks scoped like List.
func (s *Service) OpenCount(ctx context.Context, actor rbac.User) (int, error) {
	var owner int64
	if !s.SeesTeam(actor) {
		id, err := subjectID(actor)
		if err != nil {
			return 0, err
		}
		owner = id
	}
	return s.repo.CountOpen(ctx, owner)
}

// ReminderAt returns when the reminder for task fires and whether one is due at all.
func (s *Service) ReminderAt(task Task) (time.Time, bool) {
	now := s.now()
	if task.Done || !task.DueAt.After(now) {
		return time.Time{}, false
	}
	at := task.DueAt.Add(-s.cfg.ReminderLead)
	if at.Before(now) {
		at = now
	}
	return at, true
}

func (s *Service) schedule(ctx context.Context, task Task) {
	if s.reminders == nil {
		return
	}
	at, ok := s.ReminderAt(task)
	if !ok {
		return
	}
	if err := s.reminders.ScheduleReminder(ctx, task, at); err != nil {
		s.logger.Warn("schedule task reminder", slog.Int64("task_id", task.ID), slog.Any("error", err))
	}
}

func (s *Service) cancel(ctx context.Context, id int64) {
	if s.reminders == nil {
		return
	}
	if err := s.reminders.CancelReminder(ctx, id); err != nil {
		s.logger.Warn("cancel task reminder", slog.Int64("task_id", id), slog.Any("error", err))
	}
}

func (s *Service) checkOwner(ctx context.Context, userID int64) error {
	if s.users == nil {
		return nil
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return FieldErrors{"OwnerID": ownerUnavailable}
		}
		return fmt.Errorf("load owner: %w", err)
	}
	if !u.IsActive {
		return FieldErrors{"OwnerID": ownerUnavailable}
	}
	return nil
}

const ownerUnavailable = "Choose an active team member"

func (s *Service) record(ctx context.Context, actor rbac.User, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor.ID, Action: action, Entity: "task", EntityID: strconv.FormatInt(id, 10), Meta: meta})
	if err != nil {
		s.logger.Warn("audit task", slog.String("action", action), slog.Int64("task_id", id), slog.Any("error", err))
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	case "oneof":
		return "Choose one of the listed options"
	}
	return "Invalid value"
}

func subjectID(actor rbac.User) (int64, error) {
	id, err := strconv.ParseInt(actor.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("tasks: actor id %q: %w", actor.ID, err)
	}
	return id, nil
}
