// Package businessrule compares the results of paired source/target queries:
// single-value aggregates under an epsilon-tolerant percentage threshold, or
// full row-by-row result comparison.
package businessrule

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
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
	return config.KindBusinessRule
}

func (v *Validator) Validate(
	ctx context.Context,
	spec *config.ValidationSpec,
	source, target *connector.Handle,
) (*result.Result, error) {
	opts := spec.BusinessRule
	if opts == nil {
		opts = &config.BusinessRuleOptions{RuleType: config.RuleAggregation, Epsilon: config.DefaultEpsilon}
	}

	sourceRows, err := source.ReadData(ctx, spec.SourceQuery, 0)
	if err != nil {
		return nil, err
	}
	targetRows, err := target.ReadData(ctx, spec.TargetQuery, 0)
	if err != nil {
		return nil, err
	}

	switch opts.RuleType {
	case config.RuleAggregation:
		return v.aggregation(spec, opts, sourceRows, targetRows)
	case config.RuleRowByRow:
		return v.rowByRow(spec, opts, sourceRows, targetRows), nil
	default:
		return v.generic(spec, sourceRows, targetRows), nil
	}
}

// aggregation compares the first cell of each result as floats.
func (v *Validator) aggregation(
	spec *config.ValidationSpec,
	opts *config.BusinessRuleOptions,
	sourceRows, targetRows *connector.Rows,
) (*result.Result, error) {
	if sourceRows.NumRows() == 0 || targetRows.NumRows() == 0 {
		return nil, errors.New("one or both queries returned no rows")
	}
	sourceCell := sourceRows.Data[0][0]
	targetCell := targetRows.Data[0][0]
	if check.IsNull(sourceCell) || check.IsNull(targetCell) {
		return nil, errors.New("aggregate query returned NULL")
	}
	sourceVal, sok := check.AsFloat(sourceCell)
	targetVal, tok := check.AsFloat(targetCell)
	if !sok || !tok {
		return nil, errors.Newf("cannot compare non-numeric aggregates: %v vs %v", sourceCell, targetCell)
	}

	diff := targetVal - sourceVal
	diffPercent := check.PercentDifference(sourceVal, targetVal)
	exact := check.EqualWithin(sourceVal, targetVal, opts.Epsilon)

	v.logger.Info().
		Str("validation", spec.Name).
		Float64("source", sourceVal).
		Float64("target", targetVal).
		Float64("difference_percent", diffPercent).
		Msg("aggregate comparison")

	var checks []result.CheckOutcome
	status := result.Passed
	if t := spec.Thresholds.MaxDifferencePercent; t != nil {
		passed := check.WithinPercentThreshold(diffPercent, *t)
		checks = append(checks, result.CheckOutcome{
			Name:   "aggregate_difference",
			Passed: passed,
			Detail: fmt.Sprintf("difference %.4f%% vs threshold %.4f%%", diffPercent, *t),
		})
		if !passed {
			status = result.Failed
		}
	}
	if status == result.Passed && !exact && spec.Thresholds.WarnOnDifference {
		status = result.Warning
	}

	return &result.Result{
		Name:              spec.Name,
		Kind:              spec.Kind,
		Status:            status,
		Source:            spec.Source,
		Target:            spec.Target,
		Checks:            checks,
		DifferencePercent: result.Float64(diffPercent),
		RuleResults: map[string]any{
			"source_value": sourceVal,
			"target_value": targetVal,
			"difference":   diff,
		},
	}, nil
}

// rowByRow compares both result sets row-wise after a stable sort, counting
// mismatching cells with epsilon tolerance on numerics.
func (v *Validator) rowByRow(
	spec *config.ValidationSpec,
	opts *config.BusinessRuleOptions,
	sourceRows, targetRows *connector.Rows,
) *result.Result {
	res := &result.Result{
		Name:        spec.Name,
		Kind:        spec.Kind,
		Source:      spec.Source,
		Target:      spec.Target,
		SourceCount: result.Int64(int64(sourceRows.NumRows())),
		TargetCount: result.Int64(int64(targetRows.NumRows())),
	}

	if sourceRows.NumRows() != targetRows.NumRows() {
		res.Status = result.Failed
		res.Checks = append(res.Checks, result.CheckOutcome{
			Name:   "row_count",
			Passed: false,
			Detail: fmt.Sprintf("row count mismatch: source=%d target=%d", sourceRows.NumRows(), targetRows.NumRows()),
		})
		return res
	}

	sorted := func(rows *connector.Rows) [][]any {
		data := make([][]any, len(rows.Data))
		copy(data, rows.Data)
		sort.SliceStable(data, func(i, j int) bool {
			return rowKey(data[i]) < rowKey(data[j])
		})
		return data
	}
	sourceData := sorted(sourceRows)
	targetData := sorted(targetRows)

	var mismatches int64
	for i := range sourceData {
		for j := range sourceData[i] {
			if !cellEqual(sourceData[i][j], targetData[i][j], opts.Epsilon) {
				mismatches++
			}
		}
	}

	totalCells := int64(sourceRows.NumRows() * len(sourceRows.Columns))
	matchPercent := 100.0
	if totalCells > 0 {
		matchPercent = float64(totalCells-mismatches) / float64(totalCells) * 100
	}

	passed := mismatches == 0
	res.Status = result.Passed
	if !passed {
		res.Status = result.Failed
	}
	res.Checks = append(res.Checks, result.CheckOutcome{
		Name:   "row_by_row",
		Passed: passed,
		Detail: fmt.Sprintf("%d mismatching cells (%.2f%% match)", mismatches, matchPercent),
	})
	res.RuleResults = map[string]any{
		"mismatches":    mismatches,
		"match_percent": matchPercent,
	}
	return res
}

// generic passes iff both result sets are identical in order and content.
func (v *Validator) generic(
	spec *config.ValidationSpec, sourceRows, targetRows *connector.Rows,
) *result.Result {
	equal := sourceRows.NumRows() == targetRows.NumRows() && len(sourceRows.Columns) == len(targetRows.Columns)
	if equal {
	outer:
		for i := range sourceRows.Data {
			for j := range sourceRows.Data[i] {
				if check.ValueKey(sourceRows.Data[i][j]) != check.ValueKey(targetRows.Data[i][j]) {
					equal = false
					break outer
				}
			}
		}
	}

	status := result.Passed
	detail := "results match"
	if !equal {
		status = result.Failed
		detail = "results differ"
	}
	return &result.Result{
		Name:        spec.Name,
		Kind:        spec.Kind,
		Status:      status,
		Source:      spec.Source,
		Target:      spec.Target,
		SourceCount: result.Int64(int64(sourceRows.NumRows())),
		TargetCount: result.Int64(int64(targetRows.NumRows())),
		Checks: []result.CheckOutcome{
			{Name: "generic_compare", Passed: equal, Detail: detail},
		},
	}
}

func rowKey(row []any) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = check.ValueKey(v)
	}
	return strings.Join(parts, "\x1f")
}

func cellEqual(a, b any, eps float64) bool {
	af, aok := check.AsFloat(a)
	bf, bok := check.AsFloat(b)
	if aok && bok {
		return check.EqualWithin(af, bf, eps)
	}
	return check.ValueKey(a) == check.ValueKey(b)
}
