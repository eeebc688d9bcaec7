package app

import (
	"context"
	"database/sql"
	"io"
	"sort"
	"sync"
	"time"

	"hall_maintenance_service/internal/domain/delivery"
	"hall_maintenance_service/internal/domain/hall"
	"hall_maintenance_service/internal/domain/maintenance"
	idb "hall_maintenance_service/internal/infra/database"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// --- in-memory hall repository ---

type memHallRepo struct {
	mu          sync.RWMutex
	halls       map[int64]hall.Hall
	contacts    map[int64]hall.Contact
	contactsErr map[int64]error // hallID -> forced ListActiveContacts failure
}

func newMemHallRepo() *memHallRepo {
	return &memHallRepo{
		halls:       make(map[int64]hall.Hall),
		contacts:    make(map[int64]hall.Contact),
		contactsErr: make(map[int64]error),
	}
}

func (r *memHallRepo) putHall(h hall.Hall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.halls[h.ID] = h
}

func (r *memHallRepo) putContact(c hall.Contact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts[c.ID] = c
}

func (r *memHallRepo) GetByID(_ context.Context, id int64) (*hall.Hall, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.halls[id]
	if !ok {
		return nil, idb.ErrHallNotFound
	}
	out := h
	return &out, nil
}

func (r *memHallRepo) ListActive(_ context.Context) ([]*hall.Hall, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*hall.Hall, 0)
	for _, h := range r.halls {
		if h.IsActive {
			c := h
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memHallRepo) Deactivate(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.halls[id]
	if !ok {
		return idb.ErrHallNotFound
	}
	h.IsActive = false
	r.halls[id] = h
	return nil
}

func (r *memHallRepo) GetContactByID(_ context.Context, id int64) (*hall.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contacts[id]
	if !ok {
		return nil, idb.ErrContactNotFound
	}
	out := c
	return &out, nil
}

func (r *memHallRepo) ListActiveContacts(_ context.Context, hallID int64) ([]*hall.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err, ok := r.contactsErr[hallID]; ok {
		return nil, err
	}
	out := make([]*hall.Contact, 0)
	for _, c := range r.contacts {
		if c.HallID == hallID && c.IsActive {
			cc := c
			out = append(out, &cc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- in-memory maintenance repository ---

type memMaintRepo struct {
	mu            sync.Mutex
	tasks         map[int64]maintenance.Task
	occurrences   map[int64]maintenance.Occurrence
	notifications map[int64]maintenance.Notification
	history       []maintenance.HistoryEntry
	nextOccID     int64
	nextNotifID   int64
	nextHistID    int64
}

func newMemMaintRepo() *memMaintRepo {
	return &memMaintRepo{
		tasks:         make(map[int64]maintenance.Task),
		occurrences:   make(map[int64]maintenance.Occurrence),
		notifications: make(map[int64]maintenance.Notification),
	}
}

func (r *memMaintRepo) putTask(t maintenance.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID] = t
}

func (r *memMaintRepo) GetTaskByID(_ context.Context, id int64) (*maintenance.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, idb.ErrTaskNotFound
	}
	out := t
	return &out, nil
}

func (r *memMaintRepo) ListActiveTasks(_ context.Context) ([]*maintenance.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*maintenance.Task, 0)
	for _, t := range r.tasks {
		if t.IsActive {
			tt := t
			out = append(out, &tt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memMaintRepo) DeactivateTask(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return idb.ErrTaskNotFound
	}
	t.IsActive = false
	r.tasks[id] = t
	return nil
}

func (r *memMaintRepo) CreateOccurrence(_ context.Context, occ *maintenance.Occurrence, performedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.occurrences {
		if existing.HallID == occ.HallID && existing.TaskID == occ.TaskID && existing.Status.Open() {
			return idb.ErrDuplicateOpenOccurrence
		}
	}
	r.nextOccID++
	occ.ID = r.nextOccID
	occ.CreatedAt = time.Now()
	occ.UpdatedAt = occ.CreatedAt
	r.occurrences[occ.ID] = *occ

	r.nextHistID++
	r.history = append(r.history, maintenance.HistoryEntry{
		ID:           r.nextHistID,
		OccurrenceID: occ.ID,
		Action:       maintenance.ActionCreated,
		PerformedBy:  performedBy,
		CreatedAt:    occ.CreatedAt,
	})
	return nil
}

func (r *memMaintRepo) GetOccurrenceByID(_ context.Context, id int64) (*maintenance.Occurrence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	occ, ok := r.occurrences[id]
	if !ok {
		return nil, idb.ErrOccurrenceNotFound
	}
	out := occ
	return &out, nil
}

func (r *memMaintRepo) GetOpenOccurrence(_ context.Context, hallID, taskID int64) (*maintenance.Occurrence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, occ := range r.occurrences {
		if occ.HallID == hallID && occ.TaskID == taskID && occ.Status.Open() {
			out := occ
			return &out, nil
		}
	}
	return nil, idb.ErrOccurrenceNotFound
}

func (r *memMaintRepo) LatestCompletedOccurrence(_ context.Context, hallID, taskID int64) (*maintenance.Occurrence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *maintenance.Occurrence
	for id := range r.occurrences {
		occ := r.occurrences[id]
		if occ.HallID != hallID || occ.TaskID != taskID || occ.Status != maintenance.StatusCompleted {
			continue
		}
		if latest == nil || occ.CompletedDate.Time.After(latest.CompletedDate.Time) {
			out := occ
			latest = &out
		}
	}
	if latest == nil {
		return nil, idb.ErrOccurrenceNotFound
	}
	return latest, nil
}

func (r *memMaintRepo) ListDueOccurrences(_ context.Context, asOf time.Time) ([]*maintenance.Occurrence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*maintenance.Occurrence, 0)
	for id := range r.occurrences {
		occ := r.occurrences[id]
		if occ.Status.Open() && !occ.ScheduledDate.After(asOf) {
			o := occ
			out = append(out, &o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.Before(out[j].ScheduledDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memMaintRepo) UpdateOccurrenceStatus(_ context.Context, occ *maintenance.Occurrence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.occurrences[occ.ID]; !ok {
		return idb.ErrOccurrenceNotFound
	}
	occ.UpdatedAt = time.Now()
	r.occurrences[occ.ID] = *occ
	return nil
}

func (r *memMaintRepo) CancelOpenByHall(_ context.Context, hallID int64, reason, performedBy string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancelled := 0
	for id := range r.occurrences {
		occ := r.occurrences[id]
		if occ.HallID != hallID || !occ.Status.Open() {
			continue
		}
		occ.Status = maintenance.StatusCancelled
		occ.UpdatedAt = time.Now()
		r.occurrences[id] = occ
		r.nextHistID++
		r.history = append(r.history, maintenance.HistoryEntry{
			ID:           r.nextHistID,
			OccurrenceID: id,
			Action:       maintenance.ActionCancelled,
			PerformedBy:  performedBy,
			Notes:        sql.NullString{String: reason, Valid: reason != ""},
			CreatedAt:    time.Now(),
		})
		cancelled++
	}
	return cancelled, nil
}

func (r *memMaintRepo) CreateNotification(_ context.Context, n *maintenance.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.notifications {
		if existing.OccurrenceID == n.OccurrenceID && existing.ContactID == n.ContactID &&
			existing.Channel == n.Channel && existing.AttemptSeries == n.AttemptSeries {
			return idb.ErrDuplicateNotification
		}
	}
	r.nextNotifID++
	n.ID = r.nextNotifID
	n.CreatedAt = time.Now()
	r.notifications[n.ID] = *n
	return nil
}

func (r *memMaintRepo) NotificationExists(_ context.Context, occurrenceID, contactID int64, channel maintenance.Channel) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.OccurrenceID == occurrenceID && n.ContactID == contactID && n.Channel == channel {
			return true, nil
		}
	}
	return false, nil
}

func (r *memMaintRepo) ListNotificationsByOccurrence(_ context.Context, occurrenceID int64) ([]*maintenance.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*maintenance.Notification, 0)
	for id := range r.notifications {
		n := r.notifications[id]
		if n.OccurrenceID == occurrenceID {
			nn := n
			out = append(out, &nn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memMaintRepo) MarkNotificationSent(_ context.Context, id int64, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.Status != maintenance.NotificationPending {
		return idb.ErrNotificationNotFound
	}
	n.Status = maintenance.NotificationSent
	n.SentAt = sql.NullTime{Time: sentAt, Valid: true}
	r.notifications[id] = n
	return nil
}

func (r *memMaintRepo) MarkNotificationFailed(_ context.Context, id int64, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.Status != maintenance.NotificationPending {
		return idb.ErrNotificationNotFound
	}
	n.Status = maintenance.NotificationFailed
	n.ErrorMessage = sql.NullString{String: errorMessage, Valid: true}
	r.notifications[id] = n
	return nil
}

func (r *memMaintRepo) UpdateNotificationError(_ context.Context, id int64, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return idb.ErrNotificationNotFound
	}
	n.ErrorMessage = sql.NullString{String: errorMessage, Valid: true}
	r.notifications[id] = n
	return nil
}

func (r *memMaintRepo) AppendHistory(_ context.Context, entry *maintenance.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextHistID++
	entry.ID = r.nextHistID
	entry.CreatedAt = time.Now()
	r.history = append(r.history, *entry)
	return nil
}

func (r *memMaintRepo) ListHistoryByOccurrence(_ context.Context, occurrenceID int64) ([]*maintenance.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*maintenance.HistoryEntry, 0)
	for i := range r.history {
		if r.history[i].OccurrenceID == occurrenceID {
			e := r.history[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

// countOpen reports open occurrences for a pair; used to assert the
// one-open-occurrence invariant.
func (r *memMaintRepo) countOpen(hallID, taskID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, occ := range r.occurrences {
		if occ.HallID == hallID && occ.TaskID == taskID && occ.Status.Open() {
			count++
		}
	}
	return count
}

func (r *memMaintRepo) historyActions(occurrenceID int64) []maintenance.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]maintenance.Action, 0)
	for _, e := range r.history {
		if e.OccurrenceID == occurrenceID {
			actions = append(actions, e.Action)
		}
	}
	return actions
}

// --- scripted channel adapter ---

// scriptedSender returns its scripted outcomes in order, then succeeds.
type scriptedSender struct {
	mu       sync.Mutex
	outcomes []error
	calls    int
	sentTo   []int64
}

func (s *scriptedSender) Send(_ context.Context, contact *hall.Contact, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	var err error
	if len(s.outcomes) > 0 {
		err = s.outcomes[0]
		s.outcomes = s.outcomes[1:]
	}
	if err == nil {
		s.sentTo = append(s.sentTo, contact.ID)
	}
	return err
}

func (s *scriptedSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// --- shared fixture ---

type fixture struct {
	halls       *memHallRepo
	maint       *memMaintRepo
	emailSender *scriptedSender
	smsSender   *scriptedSender
	lifecycle   *LifecycleService
	dispatch    *DispatchService
	sweep       *SweepService
}

func defaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		LeadTime:    72 * time.Hour,
		MaxRetries:  2,
		RetryBase:   0, // no real waiting in tests
		SendTimeout: time.Second,
	}
}

func newFixture(cfg DispatchConfig) *fixture {
	f := &fixture{
		halls:       newMemHallRepo(),
		maint:       newMemMaintRepo(),
		emailSender: &scriptedSender{},
		smsSender:   &scriptedSender{},
	}
	log := testLogger()
	senders := map[maintenance.Channel]delivery.Sender{
		maintenance.ChannelEmail: f.emailSender,
		maintenance.ChannelSMS:   f.smsSender,
	}
	f.lifecycle = NewLifecycleService(f.halls, f.maint, log)
	f.dispatch = NewDispatchService(f.halls, f.maint, senders, cfg, log)
	f.sweep = NewSweepService(f.halls, f.maint, f.lifecycle, f.dispatch, 4, log)
	return f
}
