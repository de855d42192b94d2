package schema

import (
	"testing"
	"time"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/domain"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func builtContext() domain.PipelineContext {
	return domain.PipelineContext{
		Timezone:   "America/Recife",
		City:       "Recife",
		TimeWindow: domain.TimeWindow{Min: "2025-01-10T00:00:00-03:00", Max: "2025-01-10T23:59:59-03:00"},
		Channel:    domain.ChannelConsole,
	}
}

func TestValidateAcceptsEachStage(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t)
	ctx := builtContext()
	if err := v.Validate(domain.StageBuildContext, ctx); err != nil {
		t.Fatalf("build-context: %v", err)
	}

	start := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	ctx = ctx.WithEvents([]domain.CalendarEvent{{ID: "1", Title: "Standup", Start: start, End: start}})
	if err := v.Validate(domain.StageFetchEvents, ctx); err != nil {
		t.Fatalf("fetch-events: %v", err)
	}

	ctx = ctx.WithWeather(domain.WeatherReport{City: "Recife", Timezone: "America/Recife", Units: "°C", Summary: "city not found"})
	if err := v.Validate(domain.StageFetchWeather, ctx); err != nil {
		t.Fatalf("fetch-weather: %v", err)
	}

	ctx = ctx.WithMessage("Hoje você tem 1 compromissos.")
	if err := v.Validate(domain.StageSummarize, ctx); err != nil {
		t.Fatalf("summarize: %v", err)
	}
}

func TestValidateRejectsMissingStageOutput(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t)
	err := v.Validate(domain.StageFetchEvents, builtContext())
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for missing events, got %v", err)
	}

	ctx := builtContext().WithEvents(nil).WithWeather(domain.WeatherReport{Units: "°C"})
	if err := v.Validate(domain.StageSummarize, ctx); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestValidateRejectsMalformedContext(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t)

	ctx := builtContext()
	ctx.Channel = "sms"
	if err := v.Validate(domain.StageBuildContext, ctx); err == nil {
		t.Fatal("expected error for unknown channel")
	}

	ctx = builtContext()
	ctx.TimeWindow.Min = "today"
	if err := v.Validate(domain.StageBuildContext, ctx); err == nil {
		t.Fatal("expected error for non ISO window")
	}

	ctx = builtContext()
	ctx.City = ""
	if err := v.Validate(domain.StageBuildContext, ctx); err == nil {
		t.Fatal("expected error for empty city")
	}
}
