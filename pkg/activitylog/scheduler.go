package activitylog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultPruneSchedule runs the retention prune once a day.
const DefaultPruneSchedule = "@daily"

// Scheduler runs Prune on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	svc      *Service
	schedule string
	logger   *slog.Logger
	onPrune  func(deleted int64)
}

func NewScheduler(svc *Service, schedule string, logger *slog.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:     cron.New(),
		svc:      svc,
		schedule: schedule,
		logger:   logger,
	}
}

// OnPrune sets a callback invoked with the row count after each successful prune.
func (s *Scheduler) OnPrune(fn func(deleted int64)) {
	s.onPrune = fn
}

// Start registers the prune job and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("activity log prune scheduler started", "schedule", s.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("activity log prune scheduler stopped")
}

func (s *Scheduler) run() {
	n, err := s.svc.Prune(context.Background())
	if err != nil {
		s.logger.Warn("scheduled prune failed", "error", err)
		return
	}
	s.logger.Debug("scheduled prune finished", "deleted", n)
	if s.onPrune != nil {
		s.onPrune(n)
	}
}
