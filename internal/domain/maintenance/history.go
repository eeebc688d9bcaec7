package maintenance

import (
	"database/sql"
	"time"
)

// Action enumerates what a history entry records.
type Action string

const (
	ActionCreated      Action = "created"
	ActionNotified     Action = "notified"
	ActionCompleted    Action = "completed"
	ActionCancelled    Action = "cancelled"
	ActionNotifyFailed Action = "notify_failed"
)

// HistoryEntry is one append-only audit record for an occurrence.
// Entries are never updated or deleted.
type HistoryEntry struct {
	ID           int64
	OccurrenceID int64
	Action       Action
	PerformedBy  string // "system" for engine-initiated actions, otherwise a user identifier
	Notes        sql.NullString
	CreatedAt    time.Time
}
