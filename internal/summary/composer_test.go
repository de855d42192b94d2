package summary

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/logging"
	"DailyBriefing/internal/ports"
)

type stubGenerator struct {
	text   string
	err    error
	prompt domain.Prompt
}

func (s *stubGenerator) Generate(_ context.Context, prompt domain.Prompt) (string, error) {
	s.prompt = prompt
	return s.text, s.err
}

func sampleRequest() ports.SummaryRequest {
	lo, hi := 24.0, 31.0
	start := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	return ports.SummaryRequest{
		City:     "Recife",
		Timezone: "America/Recife",
		Events: []domain.CalendarEvent{
			{ID: "a", Title: "Standup", Start: start, End: start.Add(15 * time.Minute)},
			{ID: "b", Title: "Dentista", Start: start.Add(4 * time.Hour), End: start.Add(5 * time.Hour)},
		},
		Weather: domain.WeatherReport{City: "Recife", Timezone: "America/Recife", Min: &lo, Max: &hi, Units: "°C"},
	}
}

func TestSummarizeTrimsAndDigests(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{text: "  Hoje você tem 2 compromissos. Máx 31°C, mín 24°C. Sugestão: Standup.\n"}
	composer := NewComposer(gen, "sistema", logging.Discard())

	got, err := composer.Summarize(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if got.Message != "Hoje você tem 2 compromissos. Máx 31°C, mín 24°C. Sugestão: Standup." {
		t.Fatalf("unexpected message: %q", got.Message)
	}
	if len(got.PromptDigest) != 64 {
		t.Fatalf("unexpected digest: %q", got.PromptDigest)
	}
	if gen.prompt.System != "sistema" {
		t.Fatalf("unexpected system prompt: %q", gen.prompt.System)
	}

	var payload struct {
		Instructions string `json:"instructions"`
		Data         struct {
			City   string            `json:"city"`
			Events []json.RawMessage `json:"events"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(gen.prompt.User), &payload); err != nil {
		t.Fatalf("user prompt is not JSON: %v", err)
	}
	if payload.Instructions != Instructions || payload.Data.City != "Recife" || len(payload.Data.Events) != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	t.Parallel()

	composer := NewComposer(&stubGenerator{}, "", logging.Discard())
	_, first, err := composer.BuildPrompt(sampleRequest())
	if err != nil {
		t.Fatalf("BuildPrompt error: %v", err)
	}
	_, second, err := composer.BuildPrompt(sampleRequest())
	if err != nil {
		t.Fatalf("BuildPrompt error: %v", err)
	}
	if first != second {
		t.Fatal("equal requests must produce equal digests")
	}

	req := sampleRequest()
	req.City = "Olinda"
	_, third, _ := composer.BuildPrompt(req)
	if third == first {
		t.Fatal("different requests must produce different digests")
	}
}

func TestSummarizeEmptyOutputFails(t *testing.T) {
	t.Parallel()

	composer := NewComposer(&stubGenerator{text: " \n "}, "", logging.Discard())
	_, err := composer.Summarize(context.Background(), sampleRequest())
	if apperr.CodeOf(err) != "empty_generation" {
		t.Fatalf("expected empty_generation, got %v", err)
	}
}

func TestSummarizePropagatesGeneratorError(t *testing.T) {
	t.Parallel()

	cause := apperr.Upstream("llm_status", errors.New("chatgpt returned 500"))
	composer := NewComposer(&stubGenerator{err: cause}, "", logging.Discard())
	_, err := composer.Summarize(context.Background(), sampleRequest())
	if !errors.Is(err, cause) || apperr.KindOf(err) != apperr.KindUpstream {
		t.Fatalf("expected wrapped upstream error, got %v", err)
	}
}
