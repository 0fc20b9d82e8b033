package jobs

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueReminders carries time-sensitive task reminders.
	QueueReminders = "reminders"
	// QueueMaintenance carries housekeeping jobs.
	QueueMaintenance = "maintenance"
	// TaskTypeTaskReminder notifies a task owner ahead of the due date.
	TaskTypeTaskReminder = "task:reminder"
	// TaskTypeIdempotencyCleanup prunes old form submission keys.
	TaskTypeIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// TaskReminderPayload identifies the task to remind about.
type TaskReminderPayload struct {
	TaskID  int64     `json:"task_id"`
	OwnerID int64     `json:"owner_id"`
	DueAt   time.Time `json:"due_at"`
}

// NewTaskReminderTask constructs a reminder processed at at. The asynq task id
// is derived from the CRM task id so a task has at most one pending reminder.
func NewTaskReminderTask(payload TaskReminderPayload, at time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeTaskReminder, data,
		asynq.Queue(QueueReminders),
		asynq.TaskID(reminderTaskID(payload.TaskID)),
		asynq.ProcessAt(at),
		asynq.MaxRetry(5),
	), nil
}

// IdempotencyCleanupPayload controls how old a key must be to be pruned.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask builds the periodic cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeIdempotencyCleanup, data, asynq.Queue(QueueMaintenance)), nil
}

func reminderTaskID(taskID int64) string {
	return "task-reminder-" + strconv.FormatInt(taskID, 10)
}
