package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the pipeline reacts to it.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindValidation    Kind = "validation"
	KindUpstream      Kind = "upstream"
	KindDelivery      Kind = "delivery"
)

type classifiedError struct {
	kind  Kind
	code  string
	cause error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return "unknown error"
	}
	return e.cause.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

// Wrap attaches a kind and code to cause. A nil cause stays nil.
func Wrap(cause error, kind Kind, code string) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{kind: kind, code: code, cause: cause}
}

// Configuration reports a missing credential or setting.
func Configuration(code, format string, args ...any) error {
	return Wrap(fmt.Errorf(format, args...), KindConfiguration, code)
}

// Validation reports malformed input.
func Validation(code, format string, args ...any) error {
	return Wrap(fmt.Errorf(format, args...), KindValidation, code)
}

// Upstream reports a remote dependency that failed or answered with a non-success status.
func Upstream(code string, cause error) error {
	return Wrap(cause, KindUpstream, code)
}

func KindOf(err error) Kind {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.kind
	}
	return ""
}

func CodeOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.code
	}
	return ""
}

// StageError marks the pipeline stage a failure aborted.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// AtStage wraps err with the stage it happened in, keeping the innermost stage if already set.
func AtStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StageError
	if errors.As(err, &existing) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

func StageOf(err error) string {
	var staged *StageError
	if errors.As(err, &staged) {
		return staged.Stage
	}
	return ""
}

// Failure is the structured description handed to callers when a run aborts.
type Failure struct {
	Stage  string `json:"stage,omitempty"`
	Kind   Kind   `json:"kind,omitempty"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason"`
}

func Describe(err error) Failure {
	if err == nil {
		return Failure{}
	}
	reason := err.Error()
	var staged *StageError
	if errors.As(err, &staged) && staged.Err != nil {
		reason = staged.Err.Error()
	}
	return Failure{
		Stage:  StageOf(err),
		Kind:   KindOf(err),
		Code:   CodeOf(err),
		Reason: reason,
	}
}
