// Package scheduler runs the daily rental sweeps on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carsharing/backend/internal/service"
	"github.com/robfig/cron/v3"
)

const sweepTimeout = 10 * time.Minute

// Sweeper runs one sweep pass.
type Sweeper interface {
	RunOverdue(ctx context.Context) (service.SweepResult, error)
	RunNonOverdue(ctx context.Context) (service.SweepResult, error)
}

// Schedules holds the cron expressions of the two passes (standard 5-field
// syntax).
type Schedules struct {
	NonOverdue string
	Overdue    string
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron      *cron.Cron
	sweeper   Sweeper
	schedules Schedules
	logger    *slog.Logger
}

// New creates a new scheduler instance.
func New(sweeper Sweeper, schedules Schedules, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:      c,
		sweeper:   sweeper,
		schedules: schedules,
		logger:    logger,
	}
}

// Start registers both sweeps and starts the cron scheduler. An invalid
// schedule is an error so a bad deployment fails at boot.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context) (service.SweepResult, error)
	}{
		{"non-overdue", s.schedules.NonOverdue, s.sweeper.RunNonOverdue},
		{"overdue", s.schedules.Overdue, s.sweeper.RunOverdue},
	}

	for _, j := range jobs {
		j := j
		if _, err := s.cron.AddFunc(j.schedule, func() { s.runSweep(j.name, j.run) }); err != nil {
			return fmt.Errorf("failed to schedule %s sweep %q: %w", j.name, j.schedule, err)
		}
		s.logger.Info("scheduled rental sweep", "pass", j.name, "schedule", j.schedule)
	}

	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler. The returned context is done
// once running jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runSweep(name string, run func(context.Context) (service.SweepResult, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	s.logger.Info("starting rental sweep", "pass", name)
	if _, err := run(ctx); err != nil {
		s.logger.Error("rental sweep failed", "pass", name, "error", err)
	}
}
