package leads

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for leads that do not exist or are outside the
	// caller's visibility.
	ErrNotFound = errors.New("leads: not found")
	// ErrInvalidTransition rejects status changes not allowed by the pipeline.
	ErrInvalidTransition = errors.New("leads: invalid status transition")
	// ErrInvalidAssignee rejects assignment to unknown or inactive users.
	ErrInvalidAssignee = errors.New("leads: invalid assignee")
)

// Status is a pipeline stage.
type Status string

// Pipeline stages.
const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusConverted Status = "converted"
	StatusLost      Status = "lost"
)

var transitions = map[Status][]Status{
	StatusNew:       {StatusContacted, StatusLost},
	StatusContacted: {StatusQualified, StatusLost},
	StatusQualified: {StatusConverted, StatusLost},
}

// Statuses lists every stage in pipeline order.
func Statuses() []Status {
	return []Status{StatusNew, StatusContacted, StatusQualified, StatusConverted, StatusLost}
}

// Valid reports whether s is a known stage.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusConverted, StatusLost:
		return true
	}
	return false
}

// Next returns the stages reachable from s.
func (s Status) Next() []Status {
	return append([]Status(nil), transitions[s]...)
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Products offered through the CRM.
var Products = []string{"savings", "credit_card", "personal_loan", "mortgage", "sme_loan", "wealth"}

// Sources of new leads.
var Sources = []string{"walk_in", "referral", "field", "campaign", "online"}

// Lead is a prospective customer in the sales pipeline.
type Lead struct {
	ID           int64
	Name         string
	Phone        string
	Email        string
	Product      string
	Source       string
	Status       Status
	Value        float64
	AssignedTo   int64
	AssigneeName string
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OwnerCount summarises the pipeline of one assignee.
type OwnerCount struct {
	UserID int64
	Name   string
	Counts map[Status]int
	Value  float64
}

// Total sums the counts of every stage.
func (o OwnerCount) Total() int {
	total := 0
	for _, n := range o.Counts {
		total += n
	}
	return total
}
