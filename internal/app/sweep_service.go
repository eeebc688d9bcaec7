// internal/app/sweep_service.go
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hall_maintenance_service/internal/domain/hall"
	"hall_maintenance_service/internal/domain/maintenance"

	"github.com/sirupsen/logrus"
)

// PairFailure reports one (hall, task) pair whose sweep step failed.
type PairFailure struct {
	HallID int64
	TaskID int64
	Err    error
}

// SweepReport summarizes one sweep run. A sweep never aborts globally on
// a single pair's failure; failures are collected here instead.
type SweepReport struct {
	StartedAt time.Time
	Succeeded int
	Failures  []PairFailure
}

func (r *SweepReport) Failed() int { return len(r.Failures) }

func (r *SweepReport) Summary() string {
	return fmt.Sprintf("sweep at %s: %d pair(s) ok, %d failed",
		r.StartedAt.Format("2006-01-02 15:04:05"), r.Succeeded, r.Failed())
}

// SweepService drives one pass over every active (hall, task) pair:
// ensure the open occurrence exists, flip it overdue when its date has
// passed, then dispatch reminders. Pairs are independent, so they run
// on a bounded worker pool.
type SweepService struct {
	hallRepo  hall.Repository
	maintRepo maintenance.Repository
	lifecycle *LifecycleService
	dispatch  *DispatchService
	workers   int
	logger    *logrus.Logger
}

func NewSweepService(
	hr hall.Repository,
	mr maintenance.Repository,
	lifecycle *LifecycleService,
	dispatch *DispatchService,
	workers int,
	logger *logrus.Logger,
) *SweepService {
	if workers < 1 {
		workers = 1
	}
	return &SweepService{
		hallRepo:  hr,
		maintRepo: mr,
		lifecycle: lifecycle,
		dispatch:  dispatch,
		workers:   workers,
		logger:    logger,
	}
}

type pair struct {
	hallID int64
	taskID int64
}

// RunSweep executes one sweep as of now. Listing failures abort the whole
// run (nothing to iterate); per-pair failures only land in the report.
// Cancelling ctx stops the run between pairs without corrupting state,
// since each pair's work is independently transactional.
func (s *SweepService) RunSweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	halls, err := s.hallRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active halls: %w", err)
	}
	tasks, err := s.maintRepo.ListActiveTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tasks: %w", err)
	}

	pairs := make([]pair, 0, len(halls)*len(tasks))
	for _, h := range halls {
		for _, t := range tasks {
			pairs = append(pairs, pair{hallID: h.ID, taskID: t.ID})
		}
	}
	s.logger.Infof("Sweep starting over %d pair(s) (%d halls x %d tasks)", len(pairs), len(halls), len(tasks))

	report := &SweepReport{StartedAt: now}
	var mu sync.Mutex
	var wg sync.WaitGroup
	permits := make(chan struct{}, s.workers)

	for _, p := range pairs {
		if ctx.Err() != nil {
			s.logger.Warnf("Sweep cancelled after %d pair(s): %v", report.Succeeded+report.Failed(), ctx.Err())
			break
		}
		permits <- struct{}{}
		wg.Add(1)
		go func(p pair) {
			defer wg.Done()
			defer func() { <-permits }()

			err := s.sweepPair(ctx, p, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, PairFailure{HallID: p.hallID, TaskID: p.taskID, Err: err})
			} else {
				report.Succeeded++
			}
		}(p)
	}
	wg.Wait()

	for _, f := range report.Failures {
		s.logger.Errorf("Sweep pair (hall %d, task %d) failed: %v", f.HallID, f.TaskID, f.Err)
	}
	s.logger.Infof("Sweep finished: %d ok, %d failed", report.Succeeded, report.Failed())
	return report, nil
}

func (s *SweepService) sweepPair(ctx context.Context, p pair, now time.Time) error {
	occ, err := s.lifecycle.EnsureOccurrence(ctx, p.hallID, p.taskID)
	if err != nil {
		// The pair list is built from active rows, but a hall or task may
		// be deactivated while the sweep is running. Not a failure.
		if err == ErrHallInactive || err == ErrTaskInactive {
			return nil
		}
		return err
	}
	if err := s.lifecycle.MarkOverdueIfDue(ctx, occ, now); err != nil {
		return err
	}
	return s.dispatch.NotifyDue(ctx, occ, now)
}
