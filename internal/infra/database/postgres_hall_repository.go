// internal/infra/database/postgres_hall_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"hall_maintenance_service/internal/domain/hall"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var ErrHallNotFound = fmt.Errorf("hall not found")
var ErrContactNotFound = fmt.Errorf("contact not found")

type PostgresHallRepository struct {
	db *sql.DB
}

func NewPostgresHallRepository(db *sql.DB) *PostgresHallRepository {
	return &PostgresHallRepository{db: db}
}

func (r *PostgresHallRepository) GetByID(ctx context.Context, id int64) (*hall.Hall, error) {
	query := `SELECT id, name, is_active, created_at, updated_at
               FROM halls WHERE id = $1`
	h := &hall.Hall{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&h.ID, &h.Name, &h.IsActive, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrHallNotFound
		}
		return nil, fmt.Errorf("error getting hall by ID: %w", err)
	}
	return h, nil
}

func (r *PostgresHallRepository) ListActive(ctx context.Context) ([]*hall.Hall, error) {
	query := `SELECT id, name, is_active, created_at, updated_at
               FROM halls WHERE is_active = TRUE ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active halls: %w", err)
	}
	defer rows.Close()

	halls := make([]*hall.Hall, 0)
	for rows.Next() {
		h := &hall.Hall{}
		if err := rows.Scan(&h.ID, &h.Name, &h.IsActive, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning active hall: %w", err)
		}
		halls = append(halls, h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active halls: %w", err)
	}
	return halls, nil
}

func (r *PostgresHallRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE halls SET is_active = FALSE, updated_at = NOW()
               WHERE id = $1
               RETURNING updated_at`
	var updatedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(&updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrHallNotFound
		}
		return fmt.Errorf("error deactivating hall: %w", err)
	}
	return nil
}

func (r *PostgresHallRepository) GetContactByID(ctx context.Context, id int64) (*hall.Contact, error) {
	query := `SELECT id, hall_id, name, email, phone, role, notify_email, notify_sms, is_active, created_at, updated_at
               FROM contacts WHERE id = $1`
	c := &hall.Contact{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.HallID, &c.Name, &c.Email, &c.Phone, &c.Role,
		&c.NotifyEmail, &c.NotifySMS, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("error getting contact by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresHallRepository) ListActiveContacts(ctx context.Context, hallID int64) ([]*hall.Contact, error) {
	query := `SELECT id, hall_id, name, email, phone, role, notify_email, notify_sms, is_active, created_at, updated_at
               FROM contacts
               WHERE hall_id = $1 AND is_active = TRUE ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, hallID)
	if err != nil {
		return nil, fmt.Errorf("error listing active contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]*hall.Contact, 0)
	for rows.Next() {
		c := &hall.Contact{}
		if err := rows.Scan(
			&c.ID, &c.HallID, &c.Name, &c.Email, &c.Phone, &c.Role,
			&c.NotifyEmail, &c.NotifySMS, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning active contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active contacts: %w", err)
	}
	return contacts, nil
}
