package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

// ErrRunInFlight is returned when a run is requested while another is still executing.
var ErrRunInFlight = errors.New("a briefing run is already in flight")

const saveTimeout = 5 * time.Second

// Executor is what the runner drives; *Pipeline satisfies it.
type Executor interface {
	Execute(ctx context.Context, in domain.RunInput) (domain.Run, error)
}

// Runner wraps the pipeline with run ids, a single-flight guard and history.
type Runner struct {
	pipeline Executor
	history  ports.RunRepository
	logger   *slog.Logger
	now      func() time.Time
	busy     atomic.Bool
}

// NewRunner accepts a nil history to disable recording.
func NewRunner(pipeline Executor, history ports.RunRepository, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		pipeline: pipeline,
		history:  history,
		logger:   logger.With("component", "runner"),
		now:      time.Now,
	}
}

// Busy reports whether a run is currently executing.
func (r *Runner) Busy() bool {
	return r.busy.Load()
}

// Trigger executes one run. The returned record is populated on success and on
// failure; err is the pipeline error (or ErrRunInFlight, with an empty record).
func (r *Runner) Trigger(ctx context.Context, trigger domain.Trigger, in domain.RunInput) (domain.RunRecord, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return domain.RunRecord{}, ErrRunInFlight
	}
	defer r.busy.Store(false)

	record := domain.RunRecord{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: r.now().UTC(),
	}
	logger := r.logger.With("run_id", record.ID, "trigger", trigger)
	logger.Info("run started")

	run, err := r.pipeline.Execute(ctx, in)
	record.FinishedAt = r.now().UTC()
	record.PromptDigest = run.PromptDigest
	if run.Score != nil {
		value := run.Score.Value
		record.Score = &value
	}

	if err != nil {
		failure := apperr.Describe(err)
		record.Status = domain.RunFailed
		record.FailedStage = failure.Stage
		record.ErrorKind = string(failure.Kind)
		record.ErrorReason = failure.Reason
		logger.Error("run failed", "stage", failure.Stage, "kind", failure.Kind, "reason", failure.Reason)
	} else {
		record.Status = domain.RunSucceeded
		record.Message = run.Result.Message
		record.DeliveredTo = run.Result.DeliveredTo
		logger.Info("run finished",
			"delivered_to", run.Result.DeliveredTo,
			"events", run.Events,
			"weather", run.WeatherOK,
			"duration", record.FinishedAt.Sub(record.StartedAt),
		)
	}

	r.record(ctx, logger, record)
	return record, err
}

// record persists best-effort; a storage failure never fails the run.
func (r *Runner) record(ctx context.Context, logger *slog.Logger, record domain.RunRecord) {
	if r.history == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := r.history.SaveRun(saveCtx, record); err != nil {
		logger.Warn("run history not saved", "error", err)
	}
}
