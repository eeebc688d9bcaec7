package maintenance

import (
	"database/sql"
	"time"
)

// Channel is a notification delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// NotificationStatus tracks a single notification record. A record moves
// pending -> sent or pending -> failed exactly once and is never reused.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is one reminder directed at one contact over one channel.
// AttemptSeries is 0 for the original send; an explicit resend creates a
// new record with the next series number instead of mutating the old one,
// so the audit trail survives. The uniqueness constraint covers
// (occurrence, contact, channel, attempt_series).
type Notification struct {
	ID             int64
	OccurrenceID   int64
	ContactID      int64
	Channel        Channel
	AttemptSeries  int
	SentAt         sql.NullTime
	Status         NotificationStatus
	MessageContent string
	ErrorMessage   sql.NullString
	CreatedAt      time.Time
}
