package tasks

import "time"

// CreateTaskRequest captures the new task form.
type CreateTaskRequest struct {
	Title    string    `validate:"required,max=200"`
	Notes    string    `validate:"max=2000"`
	LeadID   int64     `validate:"gte=0"`
	OwnerID  int64     `validate:"gte=0"`
	DueAt    time.Time `validate:"required"`
	Priority Priority  `validate:"required,oneof=low normal high"`
}

// ListFilter narrows task listings.
type ListFilter struct {
	OwnerID     int64
	LeadID      int64
	IncludeDone bool
	Limit       int
}
