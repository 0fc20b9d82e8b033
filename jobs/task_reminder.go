package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/bankcrm/bankcrm/internal/jobs"
	"github.com/bankcrm/bankcrm/internal/tasks"
)

// ReminderStore is the slice of the task repository the reminder job needs.
type ReminderStore interface {
	ReminderTarget(ctx context.Context, id int64) (tasks.ReminderTarget, error)
	MarkReminded(ctx context.Context, id int64) error
}

// Notifier delivers a reminder to the task owner.
type Notifier interface {
	NotifyTaskDue(ctx context.Context, target tasks.ReminderTarget) error
}

// LogNotifier writes reminders to the log. It is used until a delivery channel
// is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// NotifyTaskDue implements Notifier.
func (n LogNotifier) NotifyTaskDue(ctx context.Context, target tasks.ReminderTarget) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "task due soon",
		slog.Int64("task_id", target.TaskID),
		slog.Int64("owner_id", target.OwnerID),
		slog.String("owner_email", target.OwnerEmail),
		slog.Time("due_at", target.DueAt),
	)
	return nil
}

// TaskReminderJob handles TaskTypeTaskReminder.
type TaskReminderJob struct {
	Store    ReminderStore
	Notifier Notifier
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewTaskReminderJob wires the reminder handler.
func NewTaskReminderJob(store ReminderStore, notifier Notifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *TaskReminderJob {
	return &TaskReminderJob{Store: store, Notifier: notifier, Logger: logger, Metrics: metrics}
}

// Handle sends the reminder unless the task is gone, done or already reminded.
func (j *TaskReminderJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("task reminder: handler not configured")
	}
	var payload TaskReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.TaskID <= 0 {
		return fmt.Errorf("task reminder: bad payload: %w", asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskTypeTaskReminder)
	defer func() {
		err = tracker.End(err)
	}()
	logger := j.logger().With(slog.Int64("task_id", payload.TaskID))

	target, err := j.Store.ReminderTarget(ctx, payload.TaskID)
	if errors.Is(err, tasks.ErrNotFound) {
		logger.Info("task gone, skipping reminder")
		j.Metrics.AddReminder(jobmetrics.ReminderSkipped)
		return nil
	}
	if err != nil {
		return err
	}
	if target.Done || target.Reminded {
		j.Metrics.AddReminder(jobmetrics.ReminderSkipped)
		return nil
	}
	if err := j.notifier().NotifyTaskDue(ctx, target); err != nil {
		logger.Warn("notify task due", slog.Any("error", err))
		return err
	}
	if err := j.Store.MarkReminded(ctx, target.TaskID); err != nil {
		return err
	}
	beforeDue := time.Until(target.DueAt)
	j.Metrics.AddReminder(jobmetrics.ReminderSent)
	j.Metrics.ObserveReminderLead(beforeDue)
	logger.Info("reminder sent", slog.Duration("before_due", beforeDue.Round(time.Minute)))
	return nil
}

func (j *TaskReminderJob) notifier() Notifier {
	if j.Notifier != nil {
		return j.Notifier
	}
	return LogNotifier{Logger: j.Logger}
}

func (j *TaskReminderJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeTaskReminder))
	}
	return slog.Default().With(slog.String("job", TaskTypeTaskReminder))
}

// KeyPruner deletes idempotency keys older than a cutoff.
type KeyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob handles TaskTypeIdempotencyCleanup.
type IdempotencyCleanupJob struct {
	Pruner  KeyPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle prunes keys older than the payload retention, defaulting to a week.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Pruner == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("idempotency cleanup: bad payload: %w", asynq.SkipRetry)
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	tracker := j.Metrics.Track(TaskTypeIdempotencyCleanup)
	defer func() {
		err = tracker.End(err)
	}()
	return j.Pruner.Cleanup(ctx, retention)
}
