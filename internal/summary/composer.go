package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/canonical"
	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

// Instructions is the per-request formatting hint sent alongside the data.
const Instructions = `Monte um texto curto em PT-BR no formato: "Hoje você tem X compromissos. Máx Y°C, mín Z°C. Sugestão: ..."`

// Composer drafts the briefing with a text generator.
type Composer struct {
	generator    ports.TextGenerator
	systemPrompt string
	logger       *slog.Logger
}

var _ ports.Summarizer = (*Composer)(nil)

func NewComposer(generator ports.TextGenerator, systemPrompt string, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		generator:    generator,
		systemPrompt: strings.TrimSpace(systemPrompt),
		logger:       logger.With("component", "summary"),
	}
}

type promptData struct {
	City     string                 `json:"city"`
	Timezone string                 `json:"timezone"`
	Events   []domain.CalendarEvent `json:"events"`
	Weather  domain.WeatherReport   `json:"weather"`
}

type promptPayload struct {
	Instructions string     `json:"instructions"`
	Data         promptData `json:"data"`
}

// BuildPrompt renders the request as canonical JSON so equal inputs give equal prompts.
func (c *Composer) BuildPrompt(req ports.SummaryRequest) (domain.Prompt, string, error) {
	events := req.Events
	if events == nil {
		events = []domain.CalendarEvent{}
	}
	user, err := canonical.Marshal(promptPayload{
		Instructions: Instructions,
		Data: promptData{
			City:     req.City,
			Timezone: req.Timezone,
			Events:   events,
			Weather:  req.Weather,
		},
	})
	if err != nil {
		return domain.Prompt{}, "", fmt.Errorf("build prompt: %w", err)
	}
	digest, err := canonical.Digest(user)
	if err != nil {
		return domain.Prompt{}, "", fmt.Errorf("digest prompt: %w", err)
	}
	return domain.Prompt{System: c.systemPrompt, User: string(user)}, digest, nil
}

// Summarize returns the trimmed generated text. Empty output is an upstream failure.
func (c *Composer) Summarize(ctx context.Context, req ports.SummaryRequest) (domain.Summary, error) {
	if c.generator == nil {
		return domain.Summary{}, apperr.Configuration("llm_misconfigured", "no text generator configured")
	}
	prompt, digest, err := c.BuildPrompt(req)
	if err != nil {
		return domain.Summary{}, err
	}

	c.logger.Debug("requesting summary", "events", len(req.Events), "prompt_digest", digest)
	text, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("generate summary: %w", err)
	}

	message := strings.TrimSpace(text)
	if message == "" {
		return domain.Summary{}, apperr.Upstream("empty_generation", fmt.Errorf("language model returned an empty summary"))
	}
	return domain.Summary{Message: message, PromptDigest: digest}, nil
}
