package delivery

import (
	"context"
	"errors"
	"fmt"

	"hall_maintenance_service/internal/domain/hall"
)

// Sender delivers one rendered message to one contact over one channel.
// This decouples the dispatch logic from the concrete transport (SMTP,
// SMS gateway). Implementations must honor ctx cancellation; the caller
// supplies a per-attempt timeout.
type Sender interface {
	Send(ctx context.Context, contact *hall.Contact, message string) error
}

// Error classifies a failed delivery. Permanent failures (invalid
// address, rejected recipient) are never retried; everything else is
// treated as transient and retried with backoff.
type Error struct {
	Permanent bool
	Detail    string
	Err       error
}

func (e *Error) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s delivery failure: %s: %v", kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s delivery failure: %s", kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// NewTransient wraps err as a retryable delivery failure.
func NewTransient(detail string, err error) *Error {
	return &Error{Permanent: false, Detail: detail, Err: err}
}

// NewPermanent wraps err as a non-retryable delivery failure.
func NewPermanent(detail string, err error) *Error {
	return &Error{Permanent: true, Detail: detail, Err: err}
}

// IsPermanent reports whether err is a permanent delivery failure.
// Unclassified errors (including timeouts) count as transient.
func IsPermanent(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Permanent
}
