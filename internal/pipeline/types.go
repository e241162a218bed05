// Package pipeline turns a natural-language question into a validated SQL
// query, executes it against the warehouse, and renders the result rows back
// into a natural-language answer. The orchestrator drives the generate,
// validate, execute cycle with bounded retries and error feedback.
package pipeline

import (
	"fmt"

	"github.com/lakesage/lakesage/internal/warehouse"
)

// CandidateQuery is one generated query, not yet known to be valid.
type CandidateQuery struct {
	SQL     string `json:"sql"`
	Intent  string `json:"intent,omitempty"`
	Attempt int    `json:"attempt"`
}

// ValidationResult reports whether a candidate passed the static checks.
// Tables lists the catalog tables the query references and is only set when
// OK is true; the executor uses it to resolve warehouse inputs.
type ValidationResult struct {
	OK     bool     `json:"ok"`
	Reason string   `json:"reason,omitempty"`
	Tables []string `json:"tables,omitempty"`
}

// AttemptRecord is one generate-validate-execute cycle. The orchestrator
// appends one per attempt; failed records feed the next generation call.
type AttemptRecord struct {
	Attempt    int              `json:"attempt"`
	Query      CandidateQuery   `json:"query"`
	Validation ValidationResult `json:"validation"`
	ExecError  string           `json:"exec_error,omitempty"`
}

// FailureReason returns the retry-driving reason for a failed attempt.
func (r AttemptRecord) FailureReason() string {
	if !r.Validation.OK {
		return r.Validation.Reason
	}
	return r.ExecError
}

type Answer struct {
	Text     string
	Result   warehouse.Result
	Attempts []AttemptRecord
}

// GenerationError means the model call itself failed or produced output that
// could not be parsed. It is fatal for the question; looping will not fix a
// model outage.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return "query generation failed: " + e.Cause.Error()
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// CompositionError means the model call that renders the final answer failed.
type CompositionError struct {
	Cause error
}

func (e *CompositionError) Error() string {
	return "answer composition failed: " + e.Cause.Error()
}

func (e *CompositionError) Unwrap() error { return e.Cause }

// ExecutionError carries the warehouse engine's error text verbatim so it can
// drive the next generation attempt.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string { return e.Message }

// RetryExhaustedError is the terminal failure: no attempt within the budget
// produced result rows. Attempts holds the full history for diagnosability.
type RetryExhaustedError struct {
	Attempts []AttemptRecord
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("no valid query produced after %d attempts", len(e.Attempts))
}
