package ports

import (
	"context"
	"time"

	"DailyBriefing/internal/domain"
)

// CalendarSource returns today's events between two ISO timestamps, ordered by start.
type CalendarSource interface {
	Fetch(ctx context.Context, timeMin, timeMax string) ([]domain.CalendarEvent, error)
}

// WeatherSource resolves a city and returns today's forecast. It degrades instead of failing.
type WeatherSource interface {
	Fetch(ctx context.Context, city, timezone string) domain.WeatherReport
}

// TextGenerator turns a structured prompt into free text (e.g., ChatGPT).
type TextGenerator interface {
	Generate(ctx context.Context, prompt domain.Prompt) (string, error)
}

// SummaryRequest is everything the composer needs to draft a briefing.
type SummaryRequest struct {
	City     string
	Timezone string
	Events   []domain.CalendarEvent
	Weather  domain.WeatherReport
}

// Summarizer drafts the natural-language briefing.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (domain.Summary, error)
}

// Scorer grades a summary against the data it was built from.
type Scorer interface {
	Score(message string, events []domain.CalendarEvent, weather domain.WeatherReport) domain.QualityScore
}

// ScoreReporter publishes a computed score without blocking the caller.
type ScoreReporter interface {
	Dispatch(score domain.QualityScore, channel domain.Channel)
}

// Channel is one concrete delivery destination.
type Channel interface {
	Name() domain.Channel
	Available() bool
	Deliver(ctx context.Context, message string) (string, error)
}

// Sender delivers a message, falling back to the local channel when needed.
type Sender interface {
	Send(ctx context.Context, message string, channel domain.Channel) (domain.Delivery, error)
}

// RunRepository keeps the history of pipeline runs.
type RunRepository interface {
	SaveRun(ctx context.Context, record domain.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
	GetRun(ctx context.Context, id string) (domain.RunRecord, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// ContextValidator checks the pipeline context contract after a stage.
type ContextValidator interface {
	Validate(stage domain.Stage, ctx domain.PipelineContext) error
}
