// internal/app/lifecycle_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hall_maintenance_service/internal/domain/hall"
	"hall_maintenance_service/internal/domain/maintenance"
	idb "hall_maintenance_service/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// SystemActor identifies engine-initiated actions in the audit trail.
const SystemActor = "system"

var ErrHallInactive = fmt.Errorf("hall is not active")
var ErrTaskInactive = fmt.Errorf("maintenance task is not active")

// LifecycleService is the occurrence state machine: it creates the single
// open occurrence per (hall, task) pair, flips scheduled occurrences to
// overdue, and handles the two terminal transitions.
type LifecycleService struct {
	hallRepo  hall.Repository
	maintRepo maintenance.Repository
	logger    *logrus.Logger
}

func NewLifecycleService(hr hall.Repository, mr maintenance.Repository, logger *logrus.Logger) *LifecycleService {
	return &LifecycleService{
		hallRepo:  hr,
		maintRepo: mr,
		logger:    logger,
	}
}

// EnsureOccurrence returns the open occurrence for the pair, creating one
// when none exists. The scheduled date comes from the frequency resolver
// anchored on the most recent completion, or on the task's activation
// date for a pair that has never completed. Safe to call repeatedly and
// concurrently: a duplicate-create race is resolved by re-fetching the
// row that won.
func (s *LifecycleService) EnsureOccurrence(ctx context.Context, hallID, taskID int64) (*maintenance.Occurrence, error) {
	existing, err := s.maintRepo.GetOpenOccurrence(ctx, hallID, taskID)
	if err == nil {
		return existing, nil
	}
	if err != idb.ErrOccurrenceNotFound {
		return nil, fmt.Errorf("failed to check open occurrence for hall %d task %d: %w", hallID, taskID, err)
	}

	h, err := s.hallRepo.GetByID(ctx, hallID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hall %d: %w", hallID, err)
	}
	if !h.IsActive {
		return nil, ErrHallInactive
	}

	task, err := s.maintRepo.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", taskID, err)
	}
	if !task.IsActive {
		return nil, ErrTaskInactive
	}

	reference := task.ActivatedAt
	lastCompleted, err := s.maintRepo.LatestCompletedOccurrence(ctx, hallID, taskID)
	if err == nil && lastCompleted.CompletedDate.Valid {
		reference = lastCompleted.CompletedDate.Time
	} else if err != nil && err != idb.ErrOccurrenceNotFound {
		return nil, fmt.Errorf("failed to get latest completed occurrence for hall %d task %d: %w", hallID, taskID, err)
	}

	dueDate, err := maintenance.NextDue(reference, task.FrequencyType, task.IntervalDays)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve next due date for task %d: %w", taskID, err)
	}

	occ := &maintenance.Occurrence{
		HallID:        hallID,
		TaskID:        taskID,
		ScheduledDate: dueDate,
		Status:        maintenance.StatusScheduled,
	}
	if err := s.maintRepo.CreateOccurrence(ctx, occ, SystemActor); err != nil {
		if err == idb.ErrDuplicateOpenOccurrence {
			// A concurrent sweep created it first; use theirs.
			s.logger.Debugf("Concurrent occurrence create for hall %d task %d, re-fetching winner", hallID, taskID)
			return s.maintRepo.GetOpenOccurrence(ctx, hallID, taskID)
		}
		return nil, fmt.Errorf("failed to create occurrence for hall %d task %d: %w", hallID, taskID, err)
	}

	s.logger.Infof("Created occurrence %d for hall %d task %d, scheduled %s",
		occ.ID, hallID, taskID, occ.ScheduledDate.Format("2006-01-02"))
	return occ, nil
}

// MarkOverdueIfDue transitions scheduled -> overdue once the scheduled
// date has passed. No-op for any other state; idempotent.
func (s *LifecycleService) MarkOverdueIfDue(ctx context.Context, occ *maintenance.Occurrence, now time.Time) error {
	if occ.Status != maintenance.StatusScheduled || !now.After(occ.ScheduledDate) {
		return nil
	}
	occ.Status = maintenance.StatusOverdue
	if err := s.maintRepo.UpdateOccurrenceStatus(ctx, occ); err != nil {
		return fmt.Errorf("failed to mark occurrence %d overdue: %w", occ.ID, err)
	}
	s.logger.Infof("Occurrence %d is overdue (scheduled %s)", occ.ID, occ.ScheduledDate.Format("2006-01-02"))
	return nil
}

// Complete marks the occurrence completed, records the audit entry, and
// immediately seeds the next cycle for the pair.
func (s *LifecycleService) Complete(ctx context.Context, occurrenceID int64, completedDate time.Time, notes, performedBy string) (*maintenance.Occurrence, error) {
	occ, err := s.maintRepo.GetOccurrenceByID(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if occ.Status.Terminal() {
		return nil, fmt.Errorf("cannot complete occurrence %d: %w", occurrenceID, maintenance.ErrTerminalState)
	}

	occ.Status = maintenance.StatusCompleted
	occ.CompletedDate = sql.NullTime{Time: completedDate, Valid: true}
	if notes != "" {
		occ.Notes = sql.NullString{String: notes, Valid: true}
	}
	if err := s.maintRepo.UpdateOccurrenceStatus(ctx, occ); err != nil {
		return nil, fmt.Errorf("failed to complete occurrence %d: %w", occurrenceID, err)
	}

	entry := &maintenance.HistoryEntry{
		OccurrenceID: occ.ID,
		Action:       maintenance.ActionCompleted,
		PerformedBy:  performedBy,
	}
	if notes != "" {
		entry.Notes = sql.NullString{String: notes, Valid: true}
	}
	if err := s.maintRepo.AppendHistory(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append completed history for occurrence %d: %w", occurrenceID, err)
	}
	s.logger.Infof("Occurrence %d completed by %s on %s", occ.ID, performedBy, completedDate.Format("2006-01-02"))

	// Seed the next cycle from the fresh completion date. A deactivated
	// hall or task means the pair is done generating; that is not a
	// failure of the completion itself.
	if _, err := s.EnsureOccurrence(ctx, occ.HallID, occ.TaskID); err != nil {
		if err == ErrHallInactive || err == ErrTaskInactive {
			s.logger.Infof("Next cycle for hall %d task %d not seeded: %v", occ.HallID, occ.TaskID, err)
		} else {
			s.logger.Warnf("Failed to seed next occurrence for hall %d task %d: %v", occ.HallID, occ.TaskID, err)
		}
	}

	return occ, nil
}

// Cancel marks the occurrence cancelled with an audit entry. Used for
// explicit cancellation; hall deactivation cancels in bulk via
// DeactivateHall instead.
func (s *LifecycleService) Cancel(ctx context.Context, occurrenceID int64, reason, performedBy string) (*maintenance.Occurrence, error) {
	occ, err := s.maintRepo.GetOccurrenceByID(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if occ.Status.Terminal() {
		return nil, fmt.Errorf("cannot cancel occurrence %d: %w", occurrenceID, maintenance.ErrTerminalState)
	}

	occ.Status = maintenance.StatusCancelled
	if err := s.maintRepo.UpdateOccurrenceStatus(ctx, occ); err != nil {
		return nil, fmt.Errorf("failed to cancel occurrence %d: %w", occurrenceID, err)
	}

	entry := &maintenance.HistoryEntry{
		OccurrenceID: occ.ID,
		Action:       maintenance.ActionCancelled,
		PerformedBy:  performedBy,
	}
	if reason != "" {
		entry.Notes = sql.NullString{String: reason, Valid: true}
	}
	if err := s.maintRepo.AppendHistory(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append cancelled history for occurrence %d: %w", occurrenceID, err)
	}
	s.logger.Infof("Occurrence %d cancelled by %s: %s", occ.ID, performedBy, reason)
	return occ, nil
}

// ListDueOccurrences returns open occurrences with scheduled_date <= asOf.
func (s *LifecycleService) ListDueOccurrences(ctx context.Context, asOf time.Time) ([]*maintenance.Occurrence, error) {
	return s.maintRepo.ListDueOccurrences(ctx, asOf)
}

// DeactivateHall flips the hall's active flag and cancels every open
// occurrence it still has, each with its own audit entry.
func (s *LifecycleService) DeactivateHall(ctx context.Context, hallID int64, performedBy string) error {
	if err := s.hallRepo.Deactivate(ctx, hallID); err != nil {
		return fmt.Errorf("failed to deactivate hall %d: %w", hallID, err)
	}
	cancelled, err := s.maintRepo.CancelOpenByHall(ctx, hallID, "hall deactivated", performedBy)
	if err != nil {
		return fmt.Errorf("failed to cancel open occurrences for hall %d: %w", hallID, err)
	}
	s.logger.Infof("Hall %d deactivated by %s, %d open occurrence(s) cancelled", hallID, performedBy, cancelled)
	return nil
}

// DeactivateTask stops new occurrence generation for the task. Existing
// open occurrences are left alone.
func (s *LifecycleService) DeactivateTask(ctx context.Context, taskID int64, performedBy string) error {
	if err := s.maintRepo.DeactivateTask(ctx, taskID); err != nil {
		return fmt.Errorf("failed to deactivate task %d: %w", taskID, err)
	}
	s.logger.Infof("Task %d deactivated by %s; open occurrences kept", taskID, performedBy)
	return nil
}
