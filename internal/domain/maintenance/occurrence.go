package maintenance

import (
	"database/sql"
	"time"
)

// Status tracks the lifecycle of a single occurrence.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusOverdue   Status = "overdue"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Open reports whether the occurrence still counts against the
// one-open-occurrence-per-pair invariant.
func (s Status) Open() bool {
	return s == StatusScheduled || s == StatusOverdue
}

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Occurrence is one scheduled instance of a recurring Task at a specific
// hall. At most one occurrence per (hall, task) pair may be open at any
// time; the repository enforces this on create.
type Occurrence struct {
	ID            int64
	HallID        int64
	TaskID        int64
	ScheduledDate time.Time
	CompletedDate sql.NullTime // set if and only if Status == StatusCompleted
	Status        Status
	Notes         sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
