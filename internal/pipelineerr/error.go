// Package pipelineerr defines the closed set of error kinds produced by the
// toolscout search pipeline, and a single tagged error type that every
// component (intent extraction, planning, validation, execution) returns
// through. Keeping the kind set closed lets callers branch on Kind without
// string matching, the same way the Trace agent keeps its escalation and
// router error codes enumerated.
package pipelineerr

import (
	"fmt"
	"time"
)

// Kind is a closed set of failure categories a pipeline stage can report.
type Kind string

const (
	KindSchemaInvalid      Kind = "schema-invalid"
	KindExtractionFailed   Kind = "extraction-failed"
	KindVocabularyMismatch Kind = "vocabulary-mismatch"
	KindLowConfidence      Kind = "low-confidence"
	KindPlanInvalid        Kind = "plan-invalid"
	KindSourceUnavailable  Kind = "source-unavailable"
	KindSourceTimeout      Kind = "source-timeout"
	KindDeadlineExceeded   Kind = "deadline-exceeded"
	KindEmptyResult        Kind = "empty-result"
)

// Error is the structured failure every pipeline component returns.
//
// Thread Safety: Error is an immutable value once constructed. Safe to share.
type Error struct {
	Node      string
	Kind      Kind
	Message   string
	Timestamp time.Time
	Recovered bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s[%s]: %s", e.Node, e.Kind, e.Message)
}

// New constructs a pipeline error. Recovered marks whether the caller
// continued execution after recording this failure (e.g. an Executor source
// that timed out but whose siblings still returned candidates).
func New(node string, kind Kind, message string, recovered bool) *Error {
	return &Error{
		Node:      node,
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
		Recovered: recovered,
	}
}

// Is allows errors.Is(err, pipelineerr.KindPlanInvalid) style comparisons by
// wrapping a Kind as a sentinel-compatible error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel returns a zero-valued *Error carrying only a Kind, for use with
// errors.Is(err, pipelineerr.Sentinel(pipelineerr.KindPlanInvalid)).
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}

// AggregateError collects multiple recoverable errors from a single stage,
// e.g. schema validation or multi-source execution, into one error value.
type AggregateError struct {
	Errors []*Error
}

func (a *AggregateError) Error() string {
	if len(a.Errors) == 0 {
		return "no errors"
	}
	if len(a.Errors) == 1 {
		return a.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", a.Errors[0].Error(), len(a.Errors)-1)
}

func (a *AggregateError) Unwrap() []error {
	out := make([]error, len(a.Errors))
	for i, e := range a.Errors {
		out[i] = e
	}
	return out
}
