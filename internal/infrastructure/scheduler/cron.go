package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/ports"
)

// CronScheduler fires the job on a standard five-field cron expression
// evaluated in a fixed timezone.
type CronScheduler struct {
	spec     string
	location *time.Location
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	drained context.Context
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler validates spec up front so a bad expression fails at startup.
func NewCronScheduler(spec string, location *time.Location, logger *slog.Logger) (*CronScheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, apperr.Configuration("invalid_cron", "invalid cron expression %q: %v", spec, err)
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CronScheduler{spec: spec, location: location, logger: logger.With("component", "cron")}, nil
}

// Start registers job and begins ticking. A second Start is a no-op.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	runner := cron.New(
		cron.WithLocation(c.location),
		cron.WithChain(cron.Recover(cronLogger{c.logger}), cron.SkipIfStillRunning(cronLogger{c.logger})),
	)
	if _, err := runner.AddFunc(c.spec, func() { job(time.Now().In(c.location)) }); err != nil {
		return apperr.Configuration("invalid_cron", "register cron job: %v", err)
	}
	runner.Start()
	c.cron = runner

	entries := runner.Entries()
	if len(entries) > 0 {
		c.logger.Info("cron started", "spec", c.spec, "timezone", c.location.String(), "next", entries[0].Next)
	}

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			_ = c.Stop(context.Background())
		}()
	}
	return nil
}

// Stop halts new ticks and waits for a running job until ctx is done.
// Repeated calls wait on the same drain.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.cron != nil {
		c.drained = c.cron.Stop()
		c.cron = nil
	}
	drained := c.drained
	c.mu.Unlock()
	if drained == nil {
		return nil
	}

	select {
	case <-drained.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
