package hall

import "time"

// Hall represents a kingdom hall whose maintenance is tracked.
// Deactivating a hall cancels all of its open occurrences and removes its
// contacts from notification selection.
type Hall struct {
	ID        int64
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
