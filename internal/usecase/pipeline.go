package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

const (
	fallbackTimezone = "UTC"
	fallbackCity     = "São Paulo"
)

// Defaults are the environment-level values used when a run input omits a field.
type Defaults struct {
	Timezone         string
	SystemTimezone   string
	City             string
	PrimaryAvailable bool
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Calendar   ports.CalendarSource
	Weather    ports.WeatherSource
	Summarizer ports.Summarizer
	Scorer     ports.Scorer
	Reporter   ports.ScoreReporter
	Sender     ports.Sender
	Validator  ports.ContextValidator
	Defaults   Defaults
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Pipeline implements the daily briefing workflow:
// build-context, fetch-events, fetch-weather, summarize (+score), deliver.
type Pipeline struct {
	calendar   ports.CalendarSource
	weather    ports.WeatherSource
	summarizer ports.Summarizer
	scorer     ports.Scorer
	reporter   ports.ScoreReporter
	sender     ports.Sender
	validator  ports.ContextValidator
	defaults   Defaults
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		calendar:   deps.Calendar,
		weather:    deps.Weather,
		summarizer: deps.Summarizer,
		scorer:     deps.Scorer,
		reporter:   deps.Reporter,
		sender:     deps.Sender,
		validator:  deps.Validator,
		defaults:   deps.Defaults,
		logger:     logger.With("component", "pipeline"),
		now:        now,
	}
}

// Run executes every stage and returns the delivery result.
func (p *Pipeline) Run(ctx context.Context, in domain.RunInput) (domain.DeliveryResult, error) {
	run, err := p.Execute(ctx, in)
	if err != nil {
		return domain.DeliveryResult{}, err
	}
	return run.Result, nil
}

// Execute is Run plus the trace of what happened along the way. On failure the
// returned Run holds whatever was produced before the failing stage.
func (p *Pipeline) Execute(ctx context.Context, in domain.RunInput) (domain.Run, error) {
	var run domain.Run

	pc, err := p.buildContext(in)
	if err != nil {
		return run, p.fail(domain.StageBuildContext, err)
	}
	if err := p.checkBoundary(domain.StageBuildContext, nil, pc); err != nil {
		return run, p.fail(domain.StageBuildContext, err)
	}
	p.logger.Info("context built",
		"timezone", pc.Timezone,
		"city", pc.City,
		"window_min", pc.TimeWindow.Min,
		"window_max", pc.TimeWindow.Max,
		"send", pc.Send,
		"channel", pc.Channel,
	)

	next, err := p.fetchEvents(ctx, pc)
	if err != nil {
		return run, p.fail(domain.StageFetchEvents, err)
	}
	if err := p.checkBoundary(domain.StageFetchEvents, &pc, next); err != nil {
		return run, p.fail(domain.StageFetchEvents, err)
	}
	pc = next
	run.Events = len(pc.Events)

	next = p.fetchWeather(ctx, pc)
	if err := p.checkBoundary(domain.StageFetchWeather, &pc, next); err != nil {
		return run, p.fail(domain.StageFetchWeather, err)
	}
	pc = next
	run.WeatherOK = pc.Weather.Available()

	next, summary, err := p.summarize(ctx, pc)
	if err != nil {
		return run, p.fail(domain.StageSummarize, err)
	}
	if err := p.checkBoundary(domain.StageSummarize, &pc, next); err != nil {
		return run, p.fail(domain.StageSummarize, err)
	}
	pc = next
	run.PromptDigest = summary.PromptDigest

	if p.scorer != nil {
		score := p.scorer.Score(pc.Message, pc.Events, *pc.Weather)
		run.Score = &score
		p.logger.Info("summary scored", "score", score.Value, "percent", score.Percent())
	}

	result, err := p.deliver(ctx, pc)
	if err != nil {
		return run, p.fail(domain.StageDeliver, err)
	}
	run.Result = result

	if pc.Send && run.Score != nil && p.reporter != nil {
		p.reporter.Dispatch(*run.Score, pc.Channel)
	}
	return run, nil
}

// buildContext is a pure function of the input, the defaults and the clock.
func (p *Pipeline) buildContext(in domain.RunInput) (domain.PipelineContext, error) {
	timezone := firstNonEmpty(in.Timezone, p.defaults.Timezone, p.defaults.SystemTimezone, fallbackTimezone)
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return domain.PipelineContext{}, apperr.Validation("invalid_timezone", "unknown timezone %q", timezone)
	}

	channel, ok := domain.ParseChannel(in.Channel)
	if !ok {
		return domain.PipelineContext{}, apperr.Validation("invalid_channel", "unknown channel %q", in.Channel)
	}
	if channel == "" {
		channel = domain.ChannelConsole
		if p.defaults.PrimaryAvailable {
			channel = domain.ChannelTelegram
		}
	}

	send := false
	if in.Send != nil {
		send = *in.Send
	}

	return domain.PipelineContext{
		Timezone:   timezone,
		City:       firstNonEmpty(in.City, p.defaults.City, fallbackCity),
		TimeWindow: dayWindow(p.now().In(loc)),
		Send:       send,
		Channel:    channel,
	}, nil
}

// dayWindow spans the local calendar day of now, using now's UTC offset.
func dayWindow(now time.Time) domain.TimeWindow {
	day := now.Format("2006-01-02")
	offset := now.Format("-07:00")
	return domain.TimeWindow{
		Min: day + "T00:00:00" + offset,
		Max: day + "T23:59:59" + offset,
	}
}

func (p *Pipeline) fetchEvents(ctx context.Context, pc domain.PipelineContext) (domain.PipelineContext, error) {
	if p.calendar == nil {
		return pc, apperr.Configuration("calendar_missing", "no calendar source configured")
	}
	events, err := p.calendar.Fetch(ctx, pc.TimeWindow.Min, pc.TimeWindow.Max)
	if err != nil {
		return pc, fmt.Errorf("fetch events: %w", err)
	}
	p.logger.Info("events fetched", "count", len(events))
	return pc.WithEvents(events), nil
}

// fetchWeather cannot fail: the source degrades to an empty report instead.
func (p *Pipeline) fetchWeather(ctx context.Context, pc domain.PipelineContext) domain.PipelineContext {
	report := domain.WeatherReport{City: pc.City, Timezone: pc.Timezone, Units: "°C", Summary: "weather unavailable"}
	if p.weather != nil {
		report = p.weather.Fetch(ctx, pc.City, pc.Timezone)
	}
	p.logger.Info("weather fetched", "available", report.Available(), "summary", report.Summary)
	return pc.WithWeather(report)
}

func (p *Pipeline) summarize(ctx context.Context, pc domain.PipelineContext) (domain.PipelineContext, domain.Summary, error) {
	if p.summarizer == nil {
		return pc, domain.Summary{}, apperr.Configuration("llm_misconfigured", "no summarizer configured")
	}
	summary, err := p.summarizer.Summarize(ctx, ports.SummaryRequest{
		City:     pc.City,
		Timezone: pc.Timezone,
		Events:   pc.Events,
		Weather:  *pc.Weather,
	})
	if err != nil {
		return pc, domain.Summary{}, err
	}
	return pc.WithMessage(summary.Message), summary, nil
}

func (p *Pipeline) deliver(ctx context.Context, pc domain.PipelineContext) (domain.DeliveryResult, error) {
	if !pc.Send {
		p.logger.Info("delivery skipped", "message", pc.Message)
		return domain.DeliveryResult{Message: pc.Message, DeliveredTo: domain.DeliveredSkipped}, nil
	}
	if p.sender == nil {
		return domain.DeliveryResult{}, apperr.Configuration("sender_missing", "no notification sender configured")
	}
	delivery, err := p.sender.Send(ctx, pc.Message, pc.Channel)
	if err != nil {
		return domain.DeliveryResult{}, fmt.Errorf("send briefing: %w", err)
	}
	p.logger.Info("briefing delivered", "channel", delivery.Channel, "id", delivery.ID)
	return domain.DeliveryResult{Message: pc.Message, DeliveredTo: string(delivery.Channel)}, nil
}

// checkBoundary enforces the stage contract: next must satisfy the stage
// schema and must not change anything prev already carried.
func (p *Pipeline) checkBoundary(stage domain.Stage, prev *domain.PipelineContext, next domain.PipelineContext) error {
	if prev != nil && !next.Preserves(*prev) {
		return apperr.Validation("context_overwritten", "stage %s rewrote an earlier field", stage)
	}
	if p.validator == nil {
		return nil
	}
	return p.validator.Validate(stage, next)
}

func (p *Pipeline) fail(stage domain.Stage, err error) error {
	staged := apperr.AtStage(string(stage), err)
	p.logger.Error("run aborted", "stage", stage, "kind", apperr.KindOf(err), "error", err)
	return staged
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
