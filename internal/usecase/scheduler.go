package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/ports"
)

// Scheduler wires the interval driver with the pipeline use case.
type Scheduler struct {
	driver     ports.Scheduler
	pipeline   *Pipeline
	topics     []domain.Topic
	windowDays int
	logger     *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs over a fixed topic set.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, topics []domain.Topic, windowDays int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		driver:     driver,
		pipeline:   pipeline,
		topics:     topics,
		windowDays: windowDays,
		logger:     orDiscard(logger),
	}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		state, err := s.pipeline.Run(ctx, s.topics, s.windowDays)
		switch {
		case errors.Is(err, domain.ErrNoArticles):
			s.logger.Warn("scheduled run produced no articles", "trigger", trigger, "run_id", state.ID)
		case err != nil:
			s.logger.Error("scheduled run failed", "trigger", trigger, "run_id", state.ID, "error", err)
		default:
			s.logger.Info("scheduled run complete", "trigger", trigger, "run_id", state.ID, "report_id", state.ReportID())
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
