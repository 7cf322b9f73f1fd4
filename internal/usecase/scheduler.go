package usecase

import (
	"context"
	"log/slog"
	"time"

	"PropDashboards/internal/logging"
	"PropDashboards/internal/ports"
)

// Scheduler wires the weekly driver with the generator use case.
type Scheduler struct {
	driver    ports.Scheduler
	generator *Generator
	logger    *slog.Logger
}

// NewScheduler returns a helper to start/stop the weekly batch.
func NewScheduler(driver ports.Scheduler, generator *Generator, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{driver: driver, generator: generator, logger: logger}
}

// Start registers the generator with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.generator == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.logger.Info("weekly generation triggered", "at", trigger)
		results, err := s.generator.GenerateAll(ctx)
		if err != nil {
			s.logger.Error("weekly generation failed", "err", err)
		}
		for _, res := range results {
			s.logger.Info("weekly generation done", "category", res.Category, "rendered", res.Rendered, "failed", res.Failed)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
