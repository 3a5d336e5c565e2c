// Package cron schedules the nightly reclassification sweep.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Reclassifier runs a full tag reclassification sweep
type Reclassifier interface {
	ReclassifyAll(ctx context.Context) error
}

// Scheduler runs periodic background jobs
type Scheduler struct {
	cron         *cron.Cron
	reclassifier Reclassifier
	schedule     string
	logger       *slog.Logger
}

// NewScheduler creates a scheduler with the given cron expression
func NewScheduler(reclassifier Reclassifier, schedule string, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(
		cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug)),
	))

	return &Scheduler{
		cron:         c,
		reclassifier: reclassifier,
		schedule:     schedule,
		logger:       logger,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.runReclassification)
	if err != nil {
		return fmt.Errorf("failed to schedule reclassification job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", slog.String("reclassify_schedule", s.schedule))

	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// RunNow triggers the reclassification sweep outside the schedule
func (s *Scheduler) RunNow() {
	s.runReclassification()
}

func (s *Scheduler) runReclassification() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	s.logger.Info("starting scheduled reclassification sweep")

	if err := s.reclassifier.ReclassifyAll(ctx); err != nil {
		s.logger.Error("scheduled reclassification sweep failed", slog.Any("error", err))
		return
	}
}
