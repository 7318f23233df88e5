// Package dataquality computes null, duplicate and invalid-record ratios on
// the target dataset and compares each against its threshold independently.
package dataquality

import (
	"context"
	"fmt"
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
	return config.KindDataQuality
}

func (v *Validator) Validate(
	ctx context.Context,
	spec *config.ValidationSpec,
	source, target *connector.Handle,
) (*result.Result, error) {
	opts := spec.DataQuality
	if opts == nil {
		opts = &config.DataQualityOptions{}
	}

	sourceCount, err := source.GetRowCount(ctx, spec.SourceRef())
	if err != nil {
		return nil, err
	}
	rows, err := target.ReadData(ctx, spec.TargetRef(), 0)
	if err != nil {
		return nil, err
	}

	if err := requireColumns(rows, opts.PrimaryKey); err != nil {
		return nil, err
	}
	if err := requireColumns(rows, opts.CheckColumns); err != nil {
		return nil, err
	}

	totalRows := int64(rows.NumRows())
	nullCount := countNulls(rows, opts.CheckColumns)
	duplicateCount := countDuplicates(rows, opts.PrimaryKey)
	invalidCount := countInvalid(rows, opts.CheckColumns)

	pct := func(n int64) float64 {
		if totalRows == 0 {
			return 0
		}
		return float64(n) / float64(totalRows) * 100
	}
	nullPercent := pct(nullCount)
	duplicatePercent := pct(duplicateCount)
	invalidPercent := pct(invalidCount)

	v.logger.Info().
		Str("validation", spec.Name).
		Int64("nulls", nullCount).
		Int64("duplicates", duplicateCount).
		Int64("invalid", invalidCount).
		Msg("quality metrics computed")

	var checks []result.CheckOutcome
	failed := false
	metric := func(name string, percent float64, bound *float64) {
		if bound == nil {
			return
		}
		passed := percent <= *bound
		if !passed {
			failed = true
		}
		checks = append(checks, result.CheckOutcome{
			Name:   name,
			Passed: passed,
			Detail: fmt.Sprintf("%.2f%% vs threshold %.2f%%", percent, *bound),
		})
	}
	metric("null_percent", nullPercent, spec.Thresholds.MaxNullPercent)
	metric("duplicate_percent", duplicatePercent, spec.Thresholds.MaxDuplicatePercent)
	metric("invalid_percent", invalidPercent, spec.Thresholds.MaxInvalidPercent)

	status := result.Passed
	switch {
	case failed:
		status = result.Failed
	case (nullCount > 0 || duplicateCount > 0 || invalidCount > 0) && spec.Thresholds.WarnOnQualityIssues:
		status = result.Warning
	}

	return &result.Result{
		Name:           spec.Name,
		Kind:           spec.Kind,
		Status:         status,
		Source:         spec.Source,
		Target:         spec.Target,
		Checks:         checks,
		SourceCount:    result.Int64(sourceCount),
		TargetCount:    result.Int64(totalRows),
		NullCount:      result.Int64(nullCount),
		DuplicateCount: result.Int64(duplicateCount),
		InvalidCount:   result.Int64(invalidCount),
		Metadata: map[string]any{
			"null_percent":      nullPercent,
			"duplicate_percent": duplicatePercent,
			"invalid_percent":   invalidPercent,
		},
	}, nil
}

// countNulls counts NULL cells across the check columns, or all columns when
// none are configured.
func countNulls(rows *connector.Rows, checkColumns []string) int64 {
	idxs := columnIndexes(rows, checkColumns)
	var n int64
	for _, row := range rows.Data {
		for _, i := range idxs {
			if check.IsNull(row[i]) {
				n++
			}
		}
	}
	return n
}

// countDuplicates counts rows whose key (declared primary key, or the full
// row) has already been seen.
func countDuplicates(rows *connector.Rows, primaryKey []string) int64 {
	idxs := columnIndexes(rows, primaryKey)
	seen := make(map[string]struct{}, len(rows.Data))
	var n int64
	for _, row := range rows.Data {
		parts := make([]string, len(idxs))
		for j, i := range idxs {
			parts[j] = check.ValueKey(row[i])
		}
		key := strings.Join(parts, "\x1f")
		if _, dup := seen[key]; dup {
			n++
		} else {
			seen[key] = struct{}{}
		}
	}
	return n
}

// countInvalid applies the built-in invalid-record predicate: negative values
// in numeric columns whose name suggests an amount, and blank strings in the
// configured check columns.
func countInvalid(rows *connector.Rows, checkColumns []string) int64 {
	var n int64
	for i, col := range rows.Columns {
		lower := strings.ToLower(col)
		if !strings.Contains(lower, "amount") && !strings.Contains(lower, "price") && !strings.Contains(lower, "quantity") {
			continue
		}
		for _, row := range rows.Data {
			if f, ok := check.AsFloat(row[i]); ok && f < 0 {
				n++
			}
		}
	}
	for _, col := range checkColumns {
		i := rows.ColumnIndex(col)
		for _, row := range rows.Data {
			if s, ok := row[i].(string); ok && strings.TrimSpace(s) == "" {
				n++
			}
		}
	}
	return n
}

// requireColumns rejects configured column names absent from the result set.
// A typo'd primary key or check column must surface as "validation could not
// run", never as a verdict about the data.
func requireColumns(rows *connector.Rows, names []string) error {
	for _, name := range names {
		if rows.ColumnIndex(name) < 0 {
			return errors.Mark(
				errors.Newf("configured column %q not in target result set (columns: %s)",
					name, strings.Join(rows.Columns, ", ")),
				config.ErrConfiguration)
		}
	}
	return nil
}

// columnIndexes maps configured names to column positions, or every position
// when no names are configured. Names must already be resolved against the
// result set (requireColumns).
func columnIndexes(rows *connector.Rows, names []string) []int {
	if len(names) == 0 {
		idxs := make([]int, len(rows.Columns))
		for i := range rows.Columns {
			idxs[i] = i
		}
		return idxs
	}
	idxs := make([]int, len(names))
	for j, name := range names {
		idxs[j] = rows.ColumnIndex(name)
	}
	return idxs
}
