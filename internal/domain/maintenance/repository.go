package maintenance

import (
	"context"
	"time"
)

// Repository defines persistence for tasks, occurrences, notifications and
// history. Implementations must enforce the two uniqueness invariants:
// at most one open occurrence per (hall, task) pair, and at most one
// notification per (occurrence, contact, channel, attempt_series).
type Repository interface {
	// Task methods
	GetTaskByID(ctx context.Context, id int64) (*Task, error)
	ListActiveTasks(ctx context.Context) ([]*Task, error)
	DeactivateTask(ctx context.Context, id int64) error

	// Occurrence methods.
	// CreateOccurrence commits the row and its 'created' history entry as
	// one transaction, and returns ErrDuplicateOpenOccurrence when an open
	// occurrence already exists for the pair (the compare-and-create guard).
	CreateOccurrence(ctx context.Context, occ *Occurrence, performedBy string) error
	GetOccurrenceByID(ctx context.Context, id int64) (*Occurrence, error)
	GetOpenOccurrence(ctx context.Context, hallID, taskID int64) (*Occurrence, error)
	LatestCompletedOccurrence(ctx context.Context, hallID, taskID int64) (*Occurrence, error)
	ListDueOccurrences(ctx context.Context, asOf time.Time) ([]*Occurrence, error)
	UpdateOccurrenceStatus(ctx context.Context, occ *Occurrence) error
	// CancelOpenByHall cancels every open occurrence of a hall and appends
	// the matching history rows in one transaction. Returns the number of
	// occurrences cancelled.
	CancelOpenByHall(ctx context.Context, hallID int64, reason, performedBy string) (int, error)

	// Notification methods
	CreateNotification(ctx context.Context, n *Notification) error
	NotificationExists(ctx context.Context, occurrenceID, contactID int64, channel Channel) (bool, error)
	ListNotificationsByOccurrence(ctx context.Context, occurrenceID int64) ([]*Notification, error)
	MarkNotificationSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkNotificationFailed(ctx context.Context, id int64, errorMessage string) error
	UpdateNotificationError(ctx context.Context, id int64, errorMessage string) error

	// History methods
	AppendHistory(ctx context.Context, entry *HistoryEntry) error
	ListHistoryByOccurrence(ctx context.Context, occurrenceID int64) ([]*HistoryEntry, error)
}
