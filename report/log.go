package report

import (
	"github.com/rs/zerolog"

	"github.com/datavet/datavet/validate/result"
)

// LogReporter emits one structured log line per result plus the run totals.
type LogReporter struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (l *LogReporter) Report(summary *result.RunSummary) error {
	for _, res := range summary.Results {
		ev := l.logger.Info()
		if res.Status.Failure() {
			ev = l.logger.Error()
		}
		ev.Str("run_id", summary.RunID).
			Str("validation", res.Name).
			Str("kind", string(res.Kind)).
			Str("status", string(res.Status)).
			Dur("duration", res.Duration()).
			Msg(res.Summary())
	}
	l.logger.Info().
		Str("run_id", summary.RunID).
		Int("total", summary.Total).
		Int("passed", summary.Passed).
		Int("failed", summary.Failed).
		Int("warnings", summary.Warnings).
		Int("errors", summary.Errors).
		Int("skipped", summary.Skipped).
		Float64("success_rate", summary.SuccessRate).
		Msg("run complete")
	return nil
}
