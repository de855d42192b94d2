package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

// Scheduler wires the cron driver with the runner.
type Scheduler struct {
	driver ports.Scheduler
	runner *Runner
	input  domain.RunInput
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop the recurring briefing.
// input is what every scheduled run is invoked with.
func NewScheduler(driver ports.Scheduler, runner *Runner, input domain.RunInput, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, runner: runner, input: input, logger: logger.With("component", "scheduler")}
}

// Tick runs one scheduled briefing. A tick that lands while a run is in
// flight is skipped; a failed run is left for the next tick.
func (s *Scheduler) Tick(ctx context.Context, at time.Time) {
	record, err := s.runner.Trigger(ctx, domain.TriggerSchedule, s.input)
	switch {
	case errors.Is(err, ErrRunInFlight):
		s.logger.Warn("tick skipped, previous run still in flight", "tick", at)
	case err != nil:
		s.logger.Error("scheduled run failed, waiting for next tick", "tick", at, "run_id", record.ID, "stage", record.FailedStage)
	default:
		s.logger.Info("scheduled run completed", "tick", at, "run_id", record.ID, "delivered_to", record.DeliveredTo)
	}
}

// Start registers the briefing with the provided driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.Tick(ctx, trigger)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
