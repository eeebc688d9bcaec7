package hall

import (
	"context"
)

// Repository defines read access to halls and their contacts, plus the
// deactivation toggle. The engine never creates or edits halls and
// contacts; that stays with the CRUD layer.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Hall, error)
	ListActive(ctx context.Context) ([]*Hall, error)
	Deactivate(ctx context.Context, id int64) error

	GetContactByID(ctx context.Context, id int64) (*Contact, error)
	ListActiveContacts(ctx context.Context, hallID int64) ([]*Contact, error)
}
