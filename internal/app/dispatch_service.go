// internal/app/dispatch_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hall_maintenance_service/internal/domain/delivery"
	"hall_maintenance_service/internal/domain/hall"
	"hall_maintenance_service/internal/domain/maintenance"
	idb "hall_maintenance_service/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// Recipient pairs a contact with the channel it should be reached on.
// A contact with both notify flags set yields two recipients.
type Recipient struct {
	Contact *hall.Contact
	Channel maintenance.Channel
}

// DispatchConfig carries the tunables of the dispatcher.
type DispatchConfig struct {
	LeadTime    time.Duration // how far before scheduled_date a reminder may go out
	MaxRetries  int           // retries after the initial attempt, transient failures only
	RetryBase   time.Duration // first backoff delay, doubled per retry
	SendTimeout time.Duration // per-attempt adapter timeout
}

// DispatchService selects eligible recipients for a due occurrence and
// sends at most one notification per (occurrence, contact, channel)
// tuple, whatever the number of sweeps that see the occurrence.
type DispatchService struct {
	hallRepo  hall.Repository
	maintRepo maintenance.Repository
	senders   map[maintenance.Channel]delivery.Sender
	cfg       DispatchConfig
	logger    *logrus.Logger
}

func NewDispatchService(
	hr hall.Repository,
	mr maintenance.Repository,
	senders map[maintenance.Channel]delivery.Sender,
	cfg DispatchConfig,
	logger *logrus.Logger,
) *DispatchService {
	return &DispatchService{
		hallRepo:  hr,
		maintRepo: mr,
		senders:   senders,
		cfg:       cfg,
		logger:    logger,
	}
}

// EligibleRecipients returns every active contact of the occurrence's
// hall fanned out per enabled channel. Contacts of a deactivated hall are
// never eligible. Pure read.
func (s *DispatchService) EligibleRecipients(ctx context.Context, occ *maintenance.Occurrence) ([]Recipient, error) {
	h, err := s.hallRepo.GetByID(ctx, occ.HallID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hall %d: %w", occ.HallID, err)
	}
	if !h.IsActive {
		return nil, nil
	}

	contacts, err := s.hallRepo.ListActiveContacts(ctx, occ.HallID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active contacts for hall %d: %w", occ.HallID, err)
	}

	recipients := make([]Recipient, 0, len(contacts))
	for _, c := range contacts {
		if c.NotifyEmail {
			recipients = append(recipients, Recipient{Contact: c, Channel: maintenance.ChannelEmail})
		}
		if c.NotifySMS {
			recipients = append(recipients, Recipient{Contact: c, Channel: maintenance.ChannelSMS})
		}
	}
	return recipients, nil
}

// NotifyDue sends reminders for an occurrence once it is inside the lead
// window. Delivery failures are recorded on the notification rows and in
// history, never returned; only repository failures propagate.
func (s *DispatchService) NotifyDue(ctx context.Context, occ *maintenance.Occurrence, now time.Time) error {
	if !occ.Status.Open() {
		return nil
	}
	if occ.ScheduledDate.Add(-s.cfg.LeadTime).After(now) {
		return nil
	}

	h, err := s.hallRepo.GetByID(ctx, occ.HallID)
	if err != nil {
		return fmt.Errorf("failed to get hall %d: %w", occ.HallID, err)
	}
	task, err := s.maintRepo.GetTaskByID(ctx, occ.TaskID)
	if err != nil {
		return fmt.Errorf("failed to get task %d: %w", occ.TaskID, err)
	}

	recipients, err := s.EligibleRecipients(ctx, occ)
	if err != nil {
		return err
	}

	for _, r := range recipients {
		exists, err := s.maintRepo.NotificationExists(ctx, occ.ID, r.Contact.ID, r.Channel)
		if err != nil {
			return fmt.Errorf("failed to check notification for occurrence %d contact %d: %w", occ.ID, r.Contact.ID, err)
		}
		if exists {
			continue
		}

		n := &maintenance.Notification{
			OccurrenceID:   occ.ID,
			ContactID:      r.Contact.ID,
			Channel:        r.Channel,
			AttemptSeries:  0,
			Status:         maintenance.NotificationPending,
			MessageContent: renderMessage(h, task, occ),
		}
		if err := s.maintRepo.CreateNotification(ctx, n); err != nil {
			if err == idb.ErrDuplicateNotification {
				// A concurrent dispatcher claimed this tuple first.
				continue
			}
			return fmt.Errorf("failed to create notification for occurrence %d contact %d: %w", occ.ID, r.Contact.ID, err)
		}

		if err := s.deliver(ctx, n, r, now); err != nil {
			return err
		}
	}
	return nil
}

// Resend creates a fresh notification record for a tuple that was already
// notified, on explicit operator request. The prior record is untouched.
func (s *DispatchService) Resend(ctx context.Context, occurrenceID, contactID int64, channel maintenance.Channel, now time.Time) (*maintenance.Notification, error) {
	occ, err := s.maintRepo.GetOccurrenceByID(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	contact, err := s.hallRepo.GetContactByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	h, err := s.hallRepo.GetByID(ctx, occ.HallID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hall %d: %w", occ.HallID, err)
	}
	task, err := s.maintRepo.GetTaskByID(ctx, occ.TaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", occ.TaskID, err)
	}

	prior, err := s.maintRepo.ListNotificationsByOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for occurrence %d: %w", occurrenceID, err)
	}
	series := 0
	for _, p := range prior {
		if p.ContactID == contactID && p.Channel == channel && p.AttemptSeries >= series {
			series = p.AttemptSeries + 1
		}
	}

	n := &maintenance.Notification{
		OccurrenceID:   occurrenceID,
		ContactID:      contactID,
		Channel:        channel,
		AttemptSeries:  series,
		Status:         maintenance.NotificationPending,
		MessageContent: renderMessage(h, task, occ),
	}
	if err := s.maintRepo.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create resend notification for occurrence %d contact %d: %w", occurrenceID, contactID, err)
	}
	if err := s.deliver(ctx, n, Recipient{Contact: contact, Channel: channel}, now); err != nil {
		return nil, err
	}
	return n, nil
}

// deliver runs the attempt loop for one pending notification: send, and
// on transient failure back off and retry until MaxRetries is spent.
// Permanent failures short-circuit. The row ends sent or failed either
// way, with the matching history entry.
func (s *DispatchService) deliver(ctx context.Context, n *maintenance.Notification, r Recipient, now time.Time) error {
	sender, ok := s.senders[r.Channel]
	if !ok {
		s.logger.Errorf("No sender configured for channel %s, failing notification %d", r.Channel, n.ID)
		return s.recordFailure(ctx, n, r, fmt.Sprintf("no sender configured for channel %s", r.Channel))
	}

	totalAttempts := s.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= totalAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		err := sender.Send(sendCtx, r.Contact, n.MessageContent)
		cancel()

		if err == nil {
			if err := s.maintRepo.MarkNotificationSent(ctx, n.ID, now); err != nil {
				return fmt.Errorf("failed to mark notification %d sent: %w", n.ID, err)
			}
			n.Status = maintenance.NotificationSent
			n.SentAt = sql.NullTime{Time: now, Valid: true}
			note := fmt.Sprintf("%s reminder sent to %s", r.Channel, r.Contact.Name)
			if attempt > 1 {
				note = fmt.Sprintf("%s (after %d attempts)", note, attempt)
			}
			if err := s.appendDeliveryHistory(ctx, n.OccurrenceID, maintenance.ActionNotified, note); err != nil {
				return err
			}
			s.logger.Infof("Notification %d sent via %s to contact %d (attempt %d)", n.ID, r.Channel, r.Contact.ID, attempt)
			return nil
		}

		lastErr = err
		if err := s.maintRepo.UpdateNotificationError(ctx, n.ID, err.Error()); err != nil {
			return fmt.Errorf("failed to record attempt error for notification %d: %w", n.ID, err)
		}

		if delivery.IsPermanent(err) {
			s.logger.Warnf("Notification %d permanently failed via %s to contact %d: %v", n.ID, r.Channel, r.Contact.ID, err)
			return s.recordFailure(ctx, n, r, err.Error())
		}

		s.logger.Warnf("Notification %d attempt %d/%d failed via %s to contact %d: %v",
			n.ID, attempt, totalAttempts, r.Channel, r.Contact.ID, err)
		if attempt < totalAttempts {
			if err := s.waitBackoff(ctx, attempt); err != nil {
				return s.recordFailure(ctx, n, r, lastErr.Error())
			}
		}
	}

	return s.recordFailure(ctx, n, r, lastErr.Error())
}

func (s *DispatchService) recordFailure(ctx context.Context, n *maintenance.Notification, r Recipient, detail string) error {
	if err := s.maintRepo.MarkNotificationFailed(ctx, n.ID, detail); err != nil {
		return fmt.Errorf("failed to mark notification %d failed: %w", n.ID, err)
	}
	n.Status = maintenance.NotificationFailed
	n.ErrorMessage = sql.NullString{String: detail, Valid: true}
	note := fmt.Sprintf("%s reminder to %s failed: %s", r.Channel, r.Contact.Name, detail)
	return s.appendDeliveryHistory(ctx, n.OccurrenceID, maintenance.ActionNotifyFailed, note)
}

func (s *DispatchService) appendDeliveryHistory(ctx context.Context, occurrenceID int64, action maintenance.Action, note string) error {
	entry := &maintenance.HistoryEntry{
		OccurrenceID: occurrenceID,
		Action:       action,
		PerformedBy:  SystemActor,
	}
	entry.Notes.String = note
	entry.Notes.Valid = true
	if err := s.maintRepo.AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("failed to append %s history for occurrence %d: %w", action, occurrenceID, err)
	}
	return nil
}

// waitBackoff sleeps base * 2^(attempt-1), abandoning the wait when the
// sweep context is cancelled.
func (s *DispatchService) waitBackoff(ctx context.Context, attempt int) error {
	delay := s.cfg.RetryBase * (1 << (attempt - 1))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func renderMessage(h *hall.Hall, task *maintenance.Task, occ *maintenance.Occurrence) string {
	date := occ.ScheduledDate.Format("2006-01-02")
	if occ.Status == maintenance.StatusOverdue {
		return fmt.Sprintf("Maintenance overdue: %s at %s was due on %s. Please arrange it as soon as possible.", task.Name, h.Name, date)
	}
	return fmt.Sprintf("Maintenance reminder: %s at %s is due on %s.", task.Name, h.Name, date)
}
