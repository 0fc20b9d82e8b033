package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bankcrm/bankcrm/internal/tasks"
)

// Client enqueues and cancels task reminders. It implements
// tasks.ReminderScheduler.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewClient connects to the queue broker at redisOpts.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts), inspector: asynq.NewInspector(redisOpts)}, nil
}

// ScheduleReminder enqueues the reminder for task at at. An already pending
// reminder for the same task is kept.
func (c *Client) ScheduleReminder(ctx context.Context, task tasks.Task, at time.Time) error {
	t, err := NewTaskReminderTask(TaskReminderPayload{TaskID: task.ID, OwnerID: task.OwnerID, DueAt: task.DueAt}, at)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, t)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// CancelReminder removes a pending reminder, if any.
func (c *Client) CancelReminder(_ context.Context, taskID int64) error {
	err := c.inspector.DeleteTask(QueueReminders, reminderTaskID(taskID))
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}

var _ tasks.ReminderScheduler = (*Client)(nil)
