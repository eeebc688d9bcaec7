// internal/infra/database/postgres_maintenance_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hall_maintenance_service/internal/domain/maintenance"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors specific to maintenance repository
var ErrTaskNotFound = fmt.Errorf("maintenance task not found")
var ErrOccurrenceNotFound = fmt.Errorf("scheduled maintenance occurrence not found")
var ErrNotificationNotFound = fmt.Errorf("notification not found")

// ErrDuplicateOpenOccurrence signals the partial unique index rejected a
// second open occurrence for a (hall, task) pair. Callers treat it as
// "someone else won the race" and re-fetch.
var ErrDuplicateOpenOccurrence = fmt.Errorf("open occurrence already exists for (hall, task) pair")

// ErrDuplicateNotification signals a notification already exists for the
// (occurrence, contact, channel, attempt_series) tuple.
var ErrDuplicateNotification = fmt.Errorf("duplicate notification (occurrence, contact, channel, series)")

const (
	openOccurrenceIndex     = "scheduled_maintenances_open_pair_unique"
	notificationTupleIndex  = "notifications_delivery_tuple_unique"
	occurrenceSelectColumns = `id, hall_id, task_id, scheduled_date, completed_date, status, notes, created_at, updated_at`
)

type PostgresMaintenanceRepository struct {
	db *sql.DB
}

func NewPostgresMaintenanceRepository(db *sql.DB) *PostgresMaintenanceRepository {
	return &PostgresMaintenanceRepository{db: db}
}

// --- Task Methods ---

func (r *PostgresMaintenanceRepository) GetTaskByID(ctx context.Context, id int64) (*maintenance.Task, error) {
	query := `SELECT id, name, description, frequency_type, interval_days, estimated_duration, is_active, activated_at, created_at, updated_at
               FROM maintenance_tasks WHERE id = $1`
	t := &maintenance.Task{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Description, &t.FrequencyType, &t.IntervalDays,
		&t.EstimatedDuration, &t.IsActive, &t.ActivatedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("error getting maintenance task by ID: %w", err)
	}
	return t, nil
}

func (r *PostgresMaintenanceRepository) ListActiveTasks(ctx context.Context) ([]*maintenance.Task, error) {
	query := `SELECT id, name, description, frequency_type, interval_days, estimated_duration, is_active, activated_at, created_at, updated_at
               FROM maintenance_tasks WHERE is_active = TRUE ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active maintenance tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*maintenance.Task, 0)
	for rows.Next() {
		t := &maintenance.Task{}
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Description, &t.FrequencyType, &t.IntervalDays,
			&t.EstimatedDuration, &t.IsActive, &t.ActivatedAt, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning active maintenance task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active maintenance tasks: %w", err)
	}
	return tasks, nil
}

func (r *PostgresMaintenanceRepository) DeactivateTask(ctx context.Context, id int64) error {
	query := `UPDATE maintenance_tasks SET is_active = FALSE, updated_at = NOW()
               WHERE id = $1
               RETURNING updated_at`
	var updatedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(&updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrTaskNotFound
		}
		return fmt.Errorf("error deactivating maintenance task: %w", err)
	}
	return nil
}

// --- Occurrence Methods ---

// CreateOccurrence inserts the occurrence and its 'created' history entry
// in one transaction. The partial unique index on open (hall_id, task_id)
// pairs acts as the compare-and-create guard under concurrent sweeps.
func (r *PostgresMaintenanceRepository) CreateOccurrence(ctx context.Context, occ *maintenance.Occurrence, performedBy string) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for occurrence create: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	insertOcc := `INSERT INTO scheduled_maintenances (hall_id, task_id, scheduled_date, status, notes)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at, updated_at`
	err = txn.QueryRowContext(ctx, insertOcc, occ.HallID, occ.TaskID, occ.ScheduledDate, occ.Status, occ.Notes).
		Scan(&occ.ID, &occ.CreatedAt, &occ.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), openOccurrenceIndex) {
			return ErrDuplicateOpenOccurrence
		}
		return fmt.Errorf("error creating occurrence: %w", err)
	}

	insertHistory := `INSERT INTO maintenance_history (scheduled_maintenance_id, action, performed_by, notes)
               VALUES ($1, $2, $3, $4)`
	note := fmt.Sprintf("occurrence scheduled for %s", occ.ScheduledDate.Format("2006-01-02"))
	_, err = txn.ExecContext(ctx, insertHistory, occ.ID, maintenance.ActionCreated, performedBy, note)
	if err != nil {
		return fmt.Errorf("error appending created history for occurrence %d: %w", occ.ID, err)
	}

	return txn.Commit()
}

func scanOccurrence(row *sql.Row) (*maintenance.Occurrence, error) {
	occ := &maintenance.Occurrence{}
	err := row.Scan(
		&occ.ID, &occ.HallID, &occ.TaskID, &occ.ScheduledDate, &occ.CompletedDate,
		&occ.Status, &occ.Notes, &occ.CreatedAt, &occ.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return occ, nil
}

func (r *PostgresMaintenanceRepository) GetOccurrenceByID(ctx context.Context, id int64) (*maintenance.Occurrence, error) {
	query := `SELECT ` + occurrenceSelectColumns + ` FROM scheduled_maintenances WHERE id = $1`
	occ, err := scanOccurrence(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOccurrenceNotFound
		}
		return nil, fmt.Errorf("error getting occurrence by ID: %w", err)
	}
	return occ, nil
}

func (r *PostgresMaintenanceRepository) GetOpenOccurrence(ctx context.Context, hallID, taskID int64) (*maintenance.Occurrence, error) {
	query := `SELECT ` + occurrenceSelectColumns + `
               FROM scheduled_maintenances
               WHERE hall_id = $1 AND task_id = $2 AND status IN ($3, $4)
               LIMIT 1`
	occ, err := scanOccurrence(r.db.QueryRowContext(ctx, query, hallID, taskID, maintenance.StatusScheduled, maintenance.StatusOverdue))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOccurrenceNotFound
		}
		return nil, fmt.Errorf("error getting open occurrence: %w", err)
	}
	return occ, nil
}

func (r *PostgresMaintenanceRepository) LatestCompletedOccurrence(ctx context.Context, hallID, taskID int64) (*maintenance.Occurrence, error) {
	query := `SELECT ` + occurrenceSelectColumns + `
               FROM scheduled_maintenances
               WHERE hall_id = $1 AND task_id = $2 AND status = $3
               ORDER BY completed_date DESC, id DESC LIMIT 1`
	occ, err := scanOccurrence(r.db.QueryRowContext(ctx, query, hallID, taskID, maintenance.StatusCompleted))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOccurrenceNotFound
		}
		return nil, fmt.Errorf("error getting latest completed occurrence: %w", err)
	}
	return occ, nil
}

func (r *PostgresMaintenanceRepository) ListDueOccurrences(ctx context.Context, asOf time.Time) ([]*maintenance.Occurrence, error) {
	query := `SELECT ` + occurrenceSelectColumns + `
               FROM scheduled_maintenances
               WHERE status IN ($1, $2) AND scheduled_date <= $3
               ORDER BY scheduled_date, id`
	rows, err := r.db.QueryContext(ctx, query, maintenance.StatusScheduled, maintenance.StatusOverdue, asOf)
	if err != nil {
		return nil, fmt.Errorf("error querying due occurrences: %w", err)
	}
	defer rows.Close()

	occurrences := make([]*maintenance.Occurrence, 0)
	for rows.Next() {
		occ := &maintenance.Occurrence{}
		if err := rows.Scan(
			&occ.ID, &occ.HallID, &occ.TaskID, &occ.ScheduledDate, &occ.CompletedDate,
			&occ.Status, &occ.Notes, &occ.CreatedAt, &occ.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning due occurrence: %w", err)
		}
		occurrences = append(occurrences, occ)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due occurrences: %w", err)
	}
	return occurrences, nil
}

func (r *PostgresMaintenanceRepository) UpdateOccurrenceStatus(ctx context.Context, occ *maintenance.Occurrence) error {
	query := `UPDATE scheduled_maintenances
               SET status = $1, completed_date = $2, notes = $3, updated_at = NOW()
               WHERE id = $4
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, occ.Status, occ.CompletedDate, occ.Notes, occ.ID).Scan(&occ.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrOccurrenceNotFound
		}
		return fmt.Errorf("error updating occurrence status: %w", err)
	}
	return nil
}

func (r *PostgresMaintenanceRepository) CancelOpenByHall(ctx context.Context, hallID int64, reason, performedBy string) (int, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction for hall cancellation: %w", err)
	}
	defer txn.Rollback()

	cancel := `UPDATE scheduled_maintenances
               SET status = $1, updated_at = NOW()
               WHERE hall_id = $2 AND status IN ($3, $4)
               RETURNING id`
	rows, err := txn.QueryContext(ctx, cancel, maintenance.StatusCancelled, hallID, maintenance.StatusScheduled, maintenance.StatusOverdue)
	if err != nil {
		return 0, fmt.Errorf("error cancelling open occurrences for hall %d: %w", hallID, err)
	}
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("error scanning cancelled occurrence id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("error iterating cancelled occurrence ids: %w", err)
	}
	rows.Close()

	insertHistory := `INSERT INTO maintenance_history (scheduled_maintenance_id, action, performed_by, notes)
               VALUES ($1, $2, $3, $4)`
	for _, id := range ids {
		if _, err := txn.ExecContext(ctx, insertHistory, id, maintenance.ActionCancelled, performedBy, reason); err != nil {
			return 0, fmt.Errorf("error appending cancelled history for occurrence %d: %w", id, err)
		}
	}

	if err := txn.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit hall cancellation: %w", err)
	}
	return len(ids), nil
}

// --- Notification Methods ---

func (r *PostgresMaintenanceRepository) CreateNotification(ctx context.Context, n *maintenance.Notification) error {
	query := `INSERT INTO notifications (scheduled_maintenance_id, contact_id, channel, attempt_series, status, message_content)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, n.OccurrenceID, n.ContactID, n.Channel, n.AttemptSeries, n.Status, n.MessageContent).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), notificationTupleIndex) {
			return ErrDuplicateNotification
		}
		return fmt.Errorf("error creating notification: %w", err)
	}
	return nil
}

func (r *PostgresMaintenanceRepository) NotificationExists(ctx context.Context, occurrenceID, contactID int64, channel maintenance.Channel) (bool, error) {
	query := `SELECT EXISTS(
               SELECT 1 FROM notifications
               WHERE scheduled_maintenance_id = $1 AND contact_id = $2 AND channel = $3)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, occurrenceID, contactID, channel).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking notification existence: %w", err)
	}
	return exists, nil
}

func (r *PostgresMaintenanceRepository) ListNotificationsByOccurrence(ctx context.Context, occurrenceID int64) ([]*maintenance.Notification, error) {
	query := `SELECT id, scheduled_maintenance_id, contact_id, channel, attempt_series, sent_at, status, message_content, error_message, created_at
               FROM notifications
               WHERE scheduled_maintenance_id = $1
               ORDER BY contact_id, channel, attempt_series`
	rows, err := r.db.QueryContext(ctx, query, occurrenceID)
	if err != nil {
		return nil, fmt.Errorf("error querying notifications by occurrence: %w", err)
	}
	defer rows.Close()

	notifications := make([]*maintenance.Notification, 0)
	for rows.Next() {
		n := &maintenance.Notification{}
		if err := rows.Scan(
			&n.ID, &n.OccurrenceID, &n.ContactID, &n.Channel, &n.AttemptSeries,
			&n.SentAt, &n.Status, &n.MessageContent, &n.ErrorMessage, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning notification row: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return notifications, nil
}

func (r *PostgresMaintenanceRepository) MarkNotificationSent(ctx context.Context, id int64, sentAt time.Time) error {
	query := `UPDATE notifications
               SET status = $1, sent_at = $2
               WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, maintenance.NotificationSent, sentAt, id, maintenance.NotificationPending)
	if err != nil {
		return fmt.Errorf("error marking notification sent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected for notification sent: %w", err)
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *PostgresMaintenanceRepository) MarkNotificationFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `UPDATE notifications
               SET status = $1, error_message = $2
               WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, maintenance.NotificationFailed, errorMessage, id, maintenance.NotificationPending)
	if err != nil {
		return fmt.Errorf("error marking notification failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected for notification failed: %w", err)
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *PostgresMaintenanceRepository) UpdateNotificationError(ctx context.Context, id int64, errorMessage string) error {
	query := `UPDATE notifications SET error_message = $1 WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, errorMessage, id)
	if err != nil {
		return fmt.Errorf("error updating notification error message: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected for notification error update: %w", err)
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// --- History Methods ---

func (r *PostgresMaintenanceRepository) AppendHistory(ctx context.Context, entry *maintenance.HistoryEntry) error {
	query := `INSERT INTO maintenance_history (scheduled_maintenance_id, action, performed_by, notes)
               VALUES ($1, $2, $3, $4)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, entry.OccurrenceID, entry.Action, entry.PerformedBy, entry.Notes).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("error appending maintenance history: %w", err)
	}
	return nil
}

func (r *PostgresMaintenanceRepository) ListHistoryByOccurrence(ctx context.Context, occurrenceID int64) ([]*maintenance.HistoryEntry, error) {
	query := `SELECT id, scheduled_maintenance_id, action, performed_by, notes, created_at
               FROM maintenance_history
               WHERE scheduled_maintenance_id = $1
               ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, occurrenceID)
	if err != nil {
		return nil, fmt.Errorf("error querying maintenance history: %w", err)
	}
	defer rows.Close()

	entries := make([]*maintenance.HistoryEntry, 0)
	for rows.Next() {
		e := &maintenance.HistoryEntry{}
		if err := rows.Scan(&e.ID, &e.OccurrenceID, &e.Action, &e.PerformedBy, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning maintenance history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating maintenance history rows: %w", err)
	}
	return entries, nil
}
