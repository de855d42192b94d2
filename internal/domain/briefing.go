package domain

import (
	"math"
	"reflect"
	"strings"
	"time"
)

// CalendarEvent is one appointment inside today's window.
type CalendarEvent struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Location string    `json:"location,omitempty"`
	AllDay   bool      `json:"allDay,omitempty"`
}

// WeatherReport carries today's min/max. Min and Max are nil when the source has no data.
type WeatherReport struct {
	City     string   `json:"city"`
	Timezone string   `json:"timezone"`
	Min      *float64 `json:"min"`
	Max      *float64 `json:"max"`
	Units    string   `json:"units"`
	Summary  string   `json:"summary,omitempty"`
}

// Available reports whether both temperatures are known.
func (w WeatherReport) Available() bool {
	return w.Min != nil && w.Max != nil
}

// Channel names a delivery destination.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelConsole  Channel = "console"
)

// ParseChannel accepts concrete channel names plus the primary/fallback aliases.
func ParseChannel(value string) (Channel, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return "", true
	case "telegram", "primary":
		return ChannelTelegram, true
	case "console", "fallback":
		return ChannelConsole, true
	default:
		return "", false
	}
}

// Stage names one step of the briefing workflow.
type Stage string

const (
	StageBuildContext Stage = "build-context"
	StageFetchEvents  Stage = "fetch-events"
	StageFetchWeather Stage = "fetch-weather"
	StageSummarize    Stage = "summarize"
	StageDeliver      Stage = "deliver"
)

// RunInput is what a caller passes to the orchestrator. Every field is optional.
type RunInput struct {
	Timezone string `json:"timezone,omitempty"`
	City     string `json:"city,omitempty"`
	Send     *bool  `json:"send,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

// TimeWindow is today's [Min, Max] interval as ISO-8601 strings with the zone offset.
type TimeWindow struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// PipelineContext accumulates stage outputs. Stages return extended copies and never rewrite earlier fields.
type PipelineContext struct {
	Timezone   string          `json:"timezone"`
	City       string          `json:"city"`
	TimeWindow TimeWindow      `json:"timeWindow"`
	Send       bool            `json:"send"`
	Channel    Channel         `json:"channel"`
	Events     []CalendarEvent `json:"events"`
	Weather    *WeatherReport  `json:"weather"`
	Message    string          `json:"message,omitempty"`
}

func (c PipelineContext) WithEvents(events []CalendarEvent) PipelineContext {
	next := c
	next.Events = make([]CalendarEvent, len(events))
	copy(next.Events, events)
	return next
}

func (c PipelineContext) WithWeather(report WeatherReport) PipelineContext {
	next := c
	next.Weather = &report
	return next
}

func (c PipelineContext) WithMessage(message string) PipelineContext {
	next := c
	next.Message = message
	return next
}

// Preserves reports whether every field already set on prev is unchanged on c.
func (c PipelineContext) Preserves(prev PipelineContext) bool {
	if c.Timezone != prev.Timezone || c.City != prev.City || c.TimeWindow != prev.TimeWindow {
		return false
	}
	if c.Send != prev.Send || c.Channel != prev.Channel {
		return false
	}
	if prev.Events != nil && !reflect.DeepEqual(c.Events, prev.Events) {
		return false
	}
	if prev.Weather != nil && (c.Weather == nil || !reflect.DeepEqual(*c.Weather, *prev.Weather)) {
		return false
	}
	if prev.Message != "" && c.Message != prev.Message {
		return false
	}
	return true
}

// DeliveryResult is the terminal artifact of one run.
type DeliveryResult struct {
	Message     string `json:"message"`
	DeliveredTo string `json:"deliveredTo"`
}

// DeliveredSkipped is reported when a run was not asked to send.
const DeliveredSkipped = "skipped"

// Delivery is what the notification sender reports for a single message.
type Delivery struct {
	Delivered bool    `json:"delivered"`
	Channel   Channel `json:"channel"`
	ID        string  `json:"id,omitempty"`
}

// QualityScore is the rubric result for one summary.
type QualityScore struct {
	Value     float64 `json:"value"`
	Rationale string  `json:"rationale"`
}

// Percent rounds the score to a whole percentage.
func (q QualityScore) Percent() int {
	return int(math.Round(q.Value * 100))
}

// Prompt is the structured request handed to the text generator.
type Prompt struct {
	System string
	User   string
}

// Summary is the composer's output.
type Summary struct {
	Message      string
	PromptDigest string
}
