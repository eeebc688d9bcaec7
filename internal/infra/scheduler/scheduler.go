package scheduler

import (
	"context"
	"time"

	"hall_maintenance_service/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Per-run ceiling; a sweep over every pair should finish well inside it.
const sweepRunTimeout = 10 * time.Minute

// SweepAlerter receives sweep outcomes. Optional.
type SweepAlerter interface {
	SweepCompleted(report *app.SweepReport) error
}

// SweepScheduler runs the sweep on a fixed cron interval.
type SweepScheduler struct {
	cronEngine *cron.Cron
	sweep      *app.SweepService
	alerter    SweepAlerter // may be nil
	logger     *logrus.Logger
	cronSpec   string
}

func NewSweepScheduler(sweep *app.SweepService, alerter SweepAlerter, logger *logrus.Logger, cronSpec string) *SweepScheduler {
	return &SweepScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		sweep:      sweep,
		alerter:    alerter,
		logger:     logger,
		cronSpec:   cronSpec,
	}
}

func (s *SweepScheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Info("Cron job triggered for maintenance sweep.")
		ctx, cancel := context.WithTimeout(context.Background(), sweepRunTimeout)
		defer cancel()
		s.runOnce(ctx, time.Now())
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.Infof("Sweep scheduler started with spec %q.", s.cronSpec)
	return nil
}

func (s *SweepScheduler) runOnce(ctx context.Context, now time.Time) {
	report, err := s.sweep.RunSweep(ctx, now)
	if err != nil {
		s.logger.Errorf("Sweep run failed before iterating pairs: %v", err)
		return
	}
	if s.alerter == nil {
		return
	}
	if report.Failed() == 0 && report.Succeeded == 0 {
		return // nothing to report
	}
	if err := s.alerter.SweepCompleted(report); err != nil {
		s.logger.Warnf("Failed to deliver sweep report alert: %v", err)
	}
}

func (s *SweepScheduler) Stop() {
	s.logger.Info("Stopping sweep scheduler...")
	ctx := s.cronEngine.Stop() // Waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Sweep scheduler gracefully stopped.")
}
