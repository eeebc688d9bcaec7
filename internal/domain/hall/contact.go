package hall

import (
	"database/sql"
	"time"
)

// Contact is a person attached to a hall who may receive maintenance
// reminders. A contact is only eligible for a channel when it is active
// and the matching notify flag is set.
type Contact struct {
	ID          int64
	HallID      int64
	Name        string
	Email       sql.NullString
	Phone       sql.NullString
	Role        sql.NullString
	NotifyEmail bool
	NotifySMS   bool
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
