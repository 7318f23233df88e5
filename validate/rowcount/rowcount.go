// Package rowcount validates that source and target row counts agree within
// the configured thresholds.
package rowcount

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/datavet/datavet/check"
	"github.com/datavet/datavet/config"
	"github.com/datavet/datavet/connector"
	"github.com/datavet/datavet/validate/result"
)

type Validator struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Validator {
	return &Validator{logger: logger}
}

func (v *Validator) Kind() config.Kind {
	return config.KindRowCount
}

func (v *Validator) Validate(
	ctx context.Context,
	spec *config.ValidationSpec,
	source, target *connector.Handle,
) (*result.Result, error) {
	sourceCount, err := source.GetRowCount(ctx, spec.SourceRef())
	if err != nil {
		return nil, err
	}
	v.logger.Info().Str("validation", spec.Name).Int64("count", sourceCount).Msg("source count")

	targetCount, err := target.GetRowCount(ctx, spec.TargetRef())
	if err != nil {
		return nil, err
	}
	v.logger.Info().Str("validation", spec.Name).Int64("count", targetCount).Msg("target count")

	diff := targetCount - sourceCount
	diffPercent := check.PercentDifference(float64(sourceCount), float64(targetCount))

	checks, status := evaluate(spec.Thresholds, sourceCount, targetCount, diff, diffPercent)

	return &result.Result{
		Name:              spec.Name,
		Kind:              spec.Kind,
		Status:            status,
		Source:            spec.Source,
		Target:            spec.Target,
		Checks:            checks,
		SourceCount:       result.Int64(sourceCount),
		TargetCount:       result.Int64(targetCount),
		Difference:        result.Int64(diff),
		DifferencePercent: result.Float64(diffPercent),
	}, nil
}

// evaluate applies the threshold set. When both the percentage and absolute
// bounds are configured, both must hold; exceeding either fails.
func evaluate(
	t config.ThresholdSet, sourceCount, targetCount, diff int64, diffPercent float64,
) ([]result.CheckOutcome, result.Status) {
	var checks []result.CheckOutcome
	failed := false

	appendCheck := func(name string, passed bool, detail string) {
		checks = append(checks, result.CheckOutcome{Name: name, Passed: passed, Detail: detail})
		if !passed {
			failed = true
		}
	}

	// A zero aggregate usually means the query itself is broken, not that the
	// other side matches perfectly, so the zero flags trump everything else.
	if t.FailOnZeroSource {
		appendCheck("zero_source", sourceCount != 0,
			fmt.Sprintf("source count is %d with fail_on_zero_source set", sourceCount))
	}
	if t.FailOnZeroTarget {
		appendCheck("zero_target", targetCount != 0,
			fmt.Sprintf("target count is %d with fail_on_zero_target set", targetCount))
	}

	if t.MaxDifferencePercent != nil {
		appendCheck("difference_percent",
			check.WithinPercentThreshold(diffPercent, *t.MaxDifferencePercent),
			fmt.Sprintf("difference %.4f%% vs threshold %.4f%%", diffPercent, *t.MaxDifferencePercent))
	}
	if t.MaxDifferenceAbsolute != nil {
		abs := check.AbsDifference(sourceCount, targetCount)
		appendCheck("difference_absolute",
			abs <= *t.MaxDifferenceAbsolute,
			fmt.Sprintf("absolute difference %d vs threshold %d", abs, *t.MaxDifferenceAbsolute))
	}

	switch {
	case failed:
		return checks, result.Failed
	case diff != 0 && t.WarnOnDifference:
		return checks, result.Warning
	}
	return checks, result.Passed
}
