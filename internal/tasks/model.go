package tasks

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for tasks that do not exist or are not visible.
	ErrNotFound = errors.New("tasks: not found")
	// ErrAlreadyDone rejects completing a task twice.
	ErrAlreadyDone = errors.New("tasks: already completed")
	// ErrInvalidOwner rejects scheduling work for someone else without team rights.
	ErrInvalidOwner = errors.New("tasks: invalid owner")
)

// Priority orders work in the task list.
type Priority string

// Task priorities.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Priorities lists the options shown in forms.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityNormal, PriorityHigh}
}

// Task is a follow-up scheduled for a user, optionally about a lead.
type Task struct {
	ID          int64
	Title       string
	Notes       string
	LeadID      int64
	LeadName    string
	OwnerID     int64
	OwnerName   string
	DueAt       time.Time
	Priority    Priority
	Done        bool
	CompletedAt *time.Time
	RemindedAt  *time.Time
	CreatedBy   int64
	CreatedAt   time.Time
}

// Overdue reports whether an open task is past due at now.
func (t Task) Overdue(now time.Time) bool {
	return !t.Done && t.DueAt.Before(now)
}

// ReminderTarget is what the reminder job needs to know about a task.
type ReminderTarget struct {
	TaskID     int64
	Title      string
	OwnerID    int64
	OwnerEmail string
	DueAt      time.Time
	Done       bool
	Reminded   bool
}
