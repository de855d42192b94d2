package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"DailyBriefing/internal/api"
	"DailyBriefing/internal/config"
	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/infrastructure/console"
	"DailyBriefing/internal/infrastructure/google"
	"DailyBriefing/internal/infrastructure/llm"
	"DailyBriefing/internal/infrastructure/openmeteo"
	"DailyBriefing/internal/infrastructure/scheduler"
	"DailyBriefing/internal/infrastructure/storage"
	"DailyBriefing/internal/infrastructure/telegram"
	"DailyBriefing/internal/logging"
	"DailyBriefing/internal/notify"
	"DailyBriefing/internal/ports"
	"DailyBriefing/internal/schema"
	"DailyBriefing/internal/scoring"
	"DailyBriefing/internal/summary"
	"DailyBriefing/internal/usecase"
)

const stopTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	runner   *usecase.Runner
	reporter *scoring.Reporter
	history  *storage.RunRepository
}

// New builds the full object graph. Storage problems only disable history.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("load context schemas: %w", err)
	}

	history := openHistory(ctx, cfg.Storage, baseLogger)

	sender := notify.NewSender(baseLogger,
		telegram.NewNotifier(cfg.Notifications.Telegram, nil),
		console.NewNotifier(os.Stdout),
	)
	reporter := scoring.NewReporter(sender, 0, baseLogger)

	calendar := google.NewCalendar(google.CalendarOptions{
		Credentials: google.Credentials{
			ClientID:     cfg.Calendar.ClientID,
			ClientSecret: cfg.Calendar.ClientSecret,
			RefreshToken: cfg.Calendar.RefreshToken,
		},
		CalendarID: cfg.Calendar.CalendarID,
		TokenURL:   cfg.Calendar.TokenURL,
		APIBaseURL: cfg.Calendar.APIBaseURL,
		Logger:     baseLogger.With("component", "calendar"),
	})

	weather := openmeteo.NewClient(openmeteo.Options{
		GeocodingURL: cfg.Weather.GeocodingURL,
		ForecastURL:  cfg.Weather.ForecastURL,
		Language:     cfg.Weather.Language,
		Logger:       baseLogger.With("component", "weather"),
	})

	composer := summary.NewComposer(llm.NewChatGPTClient(cfg.ChatGPT, nil), cfg.ChatGPT.SystemPrompt, baseLogger)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Calendar:   calendar,
		Weather:    weather,
		Summarizer: composer,
		Scorer:     scoring.NewRubric(),
		Reporter:   reporter,
		Sender:     sender,
		Validator:  validator,
		Defaults: usecase.Defaults{
			Timezone:         cfg.Briefing.Timezone,
			SystemTimezone:   cfg.Briefing.SystemTimezone,
			City:             cfg.Briefing.City,
			PrimaryAvailable: cfg.Notifications.Telegram.Configured(),
		},
		Logger: baseLogger,
	})

	var repo ports.RunRepository
	if history != nil {
		repo = history
	}

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		runner:   usecase.NewRunner(pipeline, repo, baseLogger),
		reporter: reporter,
		history:  history,
	}, nil
}

func openHistory(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) *storage.RunRepository {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		logger.Info("run history disabled")
		return nil
	}
	repo, err := storage.Open(ctx, driver, cfg.DSN)
	if err != nil {
		logger.Warn("run history unavailable, continuing without it", "driver", driver, "error", err)
		return nil
	}
	return repo
}

// RunOnce executes a single briefing and waits for the score report to settle.
func (a *Application) RunOnce(ctx context.Context, trigger domain.Trigger, in domain.RunInput) (domain.RunRecord, error) {
	record, err := a.runner.Trigger(ctx, trigger, in)
	a.reporter.Wait()
	return record, err
}

// ScheduledInput is what every cron tick runs with.
func (a *Application) ScheduledInput() domain.RunInput {
	send := a.cfg.Scheduler.SendEnabled()
	return domain.RunInput{
		Timezone: a.cfg.Scheduler.Timezone,
		City:     a.cfg.Scheduler.City,
		Send:     &send,
		Channel:  a.cfg.Scheduler.Channel,
	}
}

// Schedule runs the briefing on the configured cron until ctx is cancelled.
func (a *Application) Schedule(ctx context.Context) error {
	sched, err := a.startScheduler(ctx)
	if err != nil {
		return err
	}
	<-ctx.Done()
	return a.stopScheduler(sched)
}

// Serve exposes the HTTP API until ctx is cancelled, optionally with the cron running too.
func (a *Application) Serve(ctx context.Context, addr string, withSchedule bool) error {
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	var sched *usecase.Scheduler
	if withSchedule {
		var err error
		if sched, err = a.startScheduler(ctx); err != nil {
			return err
		}
	}

	var repo ports.RunRepository
	if a.history != nil {
		repo = a.history
	}
	serveErr := api.NewServer(a.runner, repo, a.logger).Run(ctx, addr)

	if sched != nil {
		if err := a.stopScheduler(sched); err != nil {
			return errors.Join(serveErr, err)
		}
	}
	a.reporter.Wait()
	return serveErr
}

// History lists the most recent recorded runs.
func (a *Application) History(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if a.history == nil {
		return nil, errors.New("run history is disabled (set DATABASE_DRIVER and DATABASE_DSN)")
	}
	return a.history.ListRuns(ctx, limit)
}

// Close releases the history database.
func (a *Application) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}

func (a *Application) startScheduler(ctx context.Context) (*usecase.Scheduler, error) {
	driver, err := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), a.logger)
	if err != nil {
		return nil, err
	}
	sched := usecase.NewScheduler(driver, a.runner, a.ScheduledInput(), a.logger)
	if err := sched.Start(ctx); err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler running",
		"cron", a.cfg.Scheduler.CronExpression,
		"timezone", a.cfg.Scheduler.Location().String(),
		"city", a.cfg.Scheduler.City,
		"send", a.cfg.Scheduler.SendEnabled(),
	)
	return sched, nil
}

func (a *Application) stopScheduler(sched *usecase.Scheduler) error {
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	err := sched.Stop(stopCtx)
	a.reporter.Wait()
	if err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	a.logger.Info("scheduler stopped")
	return nil
}
