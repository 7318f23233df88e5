package result

import (
	"fmt"
	"time"
)

// RunSummary aggregates a run's results in declaration order, plus run-level
// counters. It is built by the orchestrator's aggregation phase and consumed
// by reporters.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
	Skipped  int `json:"skipped"`

	SuccessRate float64 `json:"success_rate"`

	Results []*Result `json:"results"`
}

// Summarize builds a RunSummary. Results must already be in declaration
// order; completion order in parallel runs plays no part here.
func Summarize(runID string, results []*Result, start, end time.Time) *RunSummary {
	s := &RunSummary{
		RunID:      runID,
		StartedAt:  start,
		FinishedAt: end,
		Results:    results,
		Total:      len(results),
	}
	for _, r := range results {
		switch r.Status {
		case Passed:
			s.Passed++
		case Failed:
			s.Failed++
		case Warning:
			s.Warnings++
		case Error:
			s.Errors++
		case Skipped:
			s.Skipped++
		}
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Passed+s.Warnings) / float64(s.Total) * 100
	}
	return s
}

// HasFailures reports whether any validation failed or errored.
func (s *RunSummary) HasFailures() bool {
	return s.Failed > 0 || s.Errors > 0
}

// ExitCode maps the run outcome onto the CLI contract: 0 all passed,
// 1 any failure or error, 2 passed with warnings.
func (s *RunSummary) ExitCode() int {
	if s.HasFailures() {
		return 1
	}
	if s.Warnings > 0 {
		return 2
	}
	return 0
}

// Duration returns the total wall-clock time of the run.
func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Text returns the one-line run summary used by log output.
func (s *RunSummary) Text() string {
	return fmt.Sprintf("%d/%d passed, %d failed, %d warnings, %d errors, %d skipped - success rate %.1f%%",
		s.Passed, s.Total, s.Failed, s.Warnings, s.Errors, s.Skipped, s.SuccessRate)
}
