package domain

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when a lint request was superseded by a newer
// request carrying the same request key. It is not a failure.
var ErrCancelled = errors.New("request cancelled by a newer request with the same key")

// ErrRuleNotFound is returned by catalog lookups for unknown rule names.
var ErrRuleNotFound = errors.New("rule not found")

// TransportKind classifies failures to talk to the engine service.
type TransportKind string

const (
	TransportRefused TransportKind = "refused"
	TransportTimeout TransportKind = "timeout"
	TransportReset   TransportKind = "reset"
	TransportOther   TransportKind = "other"
)

// Retryable reports whether starting the service may cure the failure.
func (k TransportKind) Retryable() bool {
	return k == TransportRefused || k == TransportTimeout
}

// TransportError means the engine could not be reached or did not answer.
type TransportError struct {
	Kind TransportKind
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("engine %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// EngineError is a business error reported by the engine itself, or a
// response the client could not decode.
type EngineError struct {
	ExceptionType string `json:"exceptionType"`
	Message       string `json:"message"`
	Detail        string `json:"detail,omitempty"`
}

func (e *EngineError) Error() string {
	if e.ExceptionType == "" {
		return "engine error: " + e.Message
	}
	return fmt.Sprintf("engine error: %s: %s", e.ExceptionType, e.Message)
}

// ConfigurationError reports an inconsistent rule catalogue. It is a
// programming error and is raised when the registry loads.
type ConfigurationError struct {
	Rule   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Rule == "" {
		return "rule configuration: " + e.Reason
	}
	return fmt.Sprintf("rule configuration: %s: %s", e.Rule, e.Reason)
}

// ExitCode maps an error returned by a lint run to a process status.
func ExitCode(err error) int {
	if err == nil {
		return StatusOK
	}
	if errors.Is(err, ErrCancelled) {
		return StatusCancelled
	}
	var failOn *FailOnError
	if errors.As(err, &failOn) {
		return StatusFailOn
	}
	return StatusFatal
}

// FailOnError signals that violations at or above the configured threshold
// remain after the run.
type FailOnError struct {
	Threshold Severity
	Count     int
}

func (e *FailOnError) Error() string {
	return fmt.Sprintf("%d violation(s) at or above %s remain", e.Count, e.Threshold)
}

// Describe renders err for users, separating an engine that could not run
// from an engine that ran and reported an error.
func Describe(err error) string {
	var te *TransportError
	var ee *EngineError
	switch {
	case errors.As(err, &ee):
		return "the analysis engine ran and reported an error: " + err.Error()
	case errors.As(err, &te):
		return "the analysis engine could not be run: " + err.Error()
	default:
		return err.Error()
	}
}
