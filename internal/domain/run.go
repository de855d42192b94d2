package domain

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned by run history lookups for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Trigger says what started a run.
type Trigger string

const (
	TriggerCLI      Trigger = "cli"
	TriggerSchedule Trigger = "schedule"
	TriggerAPI      Trigger = "api"
)

// RunStatus enumerates terminal run states.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is the full trace of one orchestrator execution.
type Run struct {
	Result       DeliveryResult
	Score        *QualityScore
	PromptDigest string
	Events       int
	WeatherOK    bool
}

// RunRecord is what the run history keeps about one execution.
type RunRecord struct {
	ID           string    `json:"id"`
	Trigger      Trigger   `json:"trigger"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	Status       RunStatus `json:"status"`
	FailedStage  string    `json:"failedStage,omitempty"`
	ErrorKind    string    `json:"errorKind,omitempty"`
	ErrorReason  string    `json:"errorReason,omitempty"`
	Message      string    `json:"message,omitempty"`
	DeliveredTo  string    `json:"deliveredTo,omitempty"`
	Score        *float64  `json:"score,omitempty"`
	PromptDigest string    `json:"promptDigest,omitempty"`
}
