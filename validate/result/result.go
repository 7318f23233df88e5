// Package result defines the immutable outcome records of a validation run.
package result

import (
	"fmt"
	"time"

	"github.com/datavet/datavet/config"
)

// Status is the terminal state of one validation. ERROR takes precedence
// over FAILED and PASSED: a validation that could not complete must never be
// mistaken for "validated and clean".
type Status string

const (
	Passed  Status = "PASSED"
	Failed  Status = "FAILED"
	Warning Status = "WARNING"
	Skipped Status = "SKIPPED"
	Error   Status = "ERROR"
)

// Successful reports whether the status counts toward the run's success rate.
func (s Status) Successful() bool {
	return s == Passed || s == Warning
}

// Failure reports whether the status fails the run.
func (s Status) Failure() bool {
	return s == Failed || s == Error
}

// CheckOutcome is one named check with its pass/fail verdict and a
// human-readable explanation. Outcomes are append-only within an evaluation.
type CheckOutcome struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// ColumnResult is the sub-result of one new-column evaluation.
type ColumnResult struct {
	Column string         `json:"column"`
	Passed bool           `json:"passed"`
	Checks []CheckOutcome `json:"checks"`
}

// FailedChecks returns the failing outcomes.
func (c ColumnResult) FailedChecks() []CheckOutcome {
	var ret []CheckOutcome
	for _, chk := range c.Checks {
		if !chk.Passed {
			ret = append(ret, chk)
		}
	}
	return ret
}

// Result is the terminal record of one executed validation. It is created
// once per execution and never mutated afterwards.
type Result struct {
	Name   string      `json:"name"`
	Kind   config.Kind `json:"kind"`
	Status Status      `json:"status"`
	Source string      `json:"source"`
	Target string      `json:"target"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Checks []CheckOutcome `json:"checks,omitempty"`

	SourceCount       *int64   `json:"source_count,omitempty"`
	TargetCount       *int64   `json:"target_count,omitempty"`
	Difference        *int64   `json:"difference,omitempty"`
	DifferencePercent *float64 `json:"difference_percent,omitempty"`

	NullCount      *int64 `json:"null_count,omitempty"`
	DuplicateCount *int64 `json:"duplicate_count,omitempty"`
	InvalidCount   *int64 `json:"invalid_count,omitempty"`

	SchemaDifferences []string       `json:"schema_differences,omitempty"`
	RuleResults       map[string]any `json:"rule_results,omitempty"`
	Columns           []ColumnResult `json:"columns,omitempty"`

	// ErrorKind and ErrorMessage are set on ERROR results so operators can
	// distinguish "data is wrong" from "validation could not run".
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// Duration returns the wall-clock execution time.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// WithTiming returns a copy of the result carrying the execution window,
// leaving the receiver untouched. The orchestrator owns the clock, so
// validators build results without timestamps and timing is stamped here.
func (r *Result) WithTiming(start, end time.Time) *Result {
	cp := *r
	cp.StartedAt = start
	cp.FinishedAt = end
	return &cp
}

// Summary returns a one-line human-readable description.
func (r *Result) Summary() string {
	switch {
	case r.Status == Error:
		return fmt.Sprintf("%s: %s - %s: %s", r.Name, r.Status, r.ErrorKind, r.ErrorMessage)
	case r.Kind == config.KindRowCount && r.SourceCount != nil && r.TargetCount != nil:
		return fmt.Sprintf("%s: %s - source=%d target=%d diff=%.2f%%",
			r.Name, r.Status, *r.SourceCount, *r.TargetCount, zeroIfNil(r.DifferencePercent))
	case r.Kind == config.KindSchema:
		return fmt.Sprintf("%s: %s - %d schema differences", r.Name, r.Status, len(r.SchemaDifferences))
	case r.Kind == config.KindNewColumn:
		passed := 0
		for _, c := range r.Columns {
			if c.Passed {
				passed++
			}
		}
		return fmt.Sprintf("%s: %s - %d/%d columns passed", r.Name, r.Status, passed, len(r.Columns))
	}
	return fmt.Sprintf("%s: %s", r.Name, r.Status)
}

func zeroIfNil(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// NewError builds an ERROR result for a validation that could not execute.
func NewError(spec *config.ValidationSpec, errorKind string, err error, start, end time.Time) *Result {
	return &Result{
		Name:         spec.Name,
		Kind:         spec.Kind,
		Status:       Error,
		Source:       spec.Source,
		Target:       spec.Target,
		StartedAt:    start,
		FinishedAt:   end,
		ErrorKind:    errorKind,
		ErrorMessage: err.Error(),
	}
}

// NewSkipped builds a SKIPPED result for a disabled validation.
func NewSkipped(spec *config.ValidationSpec, now time.Time) *Result {
	return &Result{
		Name:       spec.Name,
		Kind:       spec.Kind,
		Status:     Skipped,
		Source:     spec.Source,
		Target:     spec.Target,
		StartedAt:  now,
		FinishedAt: now,
	}
}
