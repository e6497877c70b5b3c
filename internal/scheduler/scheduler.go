// Package scheduler runs the nightly freshness sweep on a cron schedule.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pantrylog/pantrylog/internal/lifecycle"
)

// DefaultSchedule runs the sweep shortly after local midnight, once the day
// boundary every countdown is measured against has passed.
const DefaultSchedule = "5 0 * * *"

// Scheduler manages the nightly sweep job.
type Scheduler struct {
	cron     *cron.Cron
	svc      *lifecycle.Service
	schedule string
	logger   *zap.Logger
}

// New creates a scheduler. An empty schedule falls back to DefaultSchedule.
func New(svc *lifecycle.Service, schedule string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}

	return &Scheduler{
		cron:     cron.New(),
		svc:      svc,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep job and starts the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("schedule", s.schedule))

	if _, err := s.cron.AddFunc(s.schedule, s.runSweep); err != nil {
		s.logger.Error("failed to schedule freshness sweep", zap.Error(err))
		return
	}

	s.cron.Start()
}

// Stop stops the cron loop. Already-running jobs finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := s.svc.RunDailySweep(ctx); err != nil {
		s.logger.Error("freshness sweep failed", zap.Error(err))
	}
}
