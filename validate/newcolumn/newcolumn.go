// Package newcolumn validates columns that a transformation is supposed to
// have introduced. Every column spec is evaluated independently through a
// fixed sequence of checks; checks whose governing configuration is absent
// are skipped rather than counted as passed.
package newcolumn

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/datavet/datavet/check"
	"github.com/datavet/datavet/config"
	"github.com/datavet/datavet/connector"
	"github.com/datavet/datavet/validate/result"
	"github.com/datavet/datavet/validate/schemaverify"
)

// DefaultSampleRows bounds the target read used for value-level checks.
const DefaultSampleRows = 1000

type Validator struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Validator {
	return &Validator{logger: logger}
}

func (v *Validator) Kind() config.Kind {
	return config.KindNewColumn
}

func (v *Validator) Validate(
	ctx context.Context,
	spec *config.ValidationSpec,
	source, target *connector.Handle,
) (*result.Result, error) {
	opts := spec.NewColumn

	sourceSchema, err := schemaverify.FetchSchema(ctx, source, spec.SourceRef(), spec.SourceIsQuery())
	if err != nil {
		return nil, err
	}
	targetSchema, err := schemaverify.FetchSchema(ctx, target, spec.TargetRef(), spec.TargetIsQuery())
	if err != nil {
		return nil, err
	}

	sampleRows := opts.SampleRows
	if sampleRows <= 0 {
		sampleRows = DefaultSampleRows
	}
	data, err := target.ReadData(ctx, spec.TargetRef(), sampleRows)
	if err != nil {
		return nil, err
	}

	columns := make([]result.ColumnResult, 0, len(opts.Columns))
	passedCount := 0
	for _, col := range opts.Columns {
		cr := evaluateColumn(col, schemaByName(sourceSchema), schemaByName(targetSchema), data)
		if cr.Passed {
			passedCount++
		}
		columns = append(columns, cr)
	}

	status := result.Passed
	if passedCount < len(columns) {
		status = result.Failed
	}
	v.logger.Info().
		Str("validation", spec.Name).
		Int("passed", passedCount).
		Int("total", len(columns)).
		Msg("new column validation complete")

	return &result.Result{
		Name:    spec.Name,
		Kind:    spec.Kind,
		Status:  status,
		Source:  spec.Source,
		Target:  spec.Target,
		Columns: columns,
		Metadata: map[string]any{
			"columns_total":  len(columns),
			"columns_passed": passedCount,
			"columns_failed": len(columns) - passedCount,
		},
	}, nil
}

func schemaByName(cols []connector.SchemaColumn) map[string]connector.SchemaColumn {
	ret := make(map[string]connector.SchemaColumn, len(cols))
	for _, c := range cols {
		ret[strings.ToLower(c.Name)] = c
	}
	return ret
}

// evaluateColumn runs the check sequence for one column. A column present in
// source still runs the remaining checks against best-effort data so the
// report stays informative, but its final verdict is failure; a column absent
// from target has nothing to validate, so later checks are skipped entirely.
func evaluateColumn(
	col config.ColumnSpec,
	sourceSchema, targetSchema map[string]connector.SchemaColumn,
	data *connector.Rows,
) result.ColumnResult {
	cr := result.ColumnResult{Column: col.Name, Passed: true}
	appendCheck := func(name string, passed bool, detail string) {
		cr.Checks = append(cr.Checks, result.CheckOutcome{Name: name, Passed: passed, Detail: detail})
		if !passed {
			cr.Passed = false
		}
	}
	key := strings.ToLower(col.Name)

	// Check 1: existence. The column must be new: absent from source,
	// present in target.
	if _, inSource := sourceSchema[key]; inSource {
		appendCheck("existence", false,
			fmt.Sprintf("column %q exists in source (expected only in target)", col.Name))
	} else {
		appendCheck("existence", true,
			fmt.Sprintf("column %q correctly absent from source", col.Name))
	}
	targetCol, inTarget := targetSchema[key]
	if !inTarget {
		appendCheck("existence", false, fmt.Sprintf("column %q missing from target", col.Name))
		return cr
	}

	// Check 2: type match, after normalization on both sides.
	if col.ExpectedType != "" {
		expected := check.Normalize(col.ExpectedType)
		actual := check.Normalize(targetCol.DeclaredType)
		appendCheck("type_match", actual.Matches(expected),
			fmt.Sprintf("expected %s (%s), got %s (%s)", col.ExpectedType, expected, targetCol.DeclaredType, actual))
	}

	values, haveData := data.ColumnValues(col.Name)
	if !haveData {
		// Schema has the column but the sample does not; value-level checks
		// cannot run.
		appendCheck("sample_data", false,
			fmt.Sprintf("column %q absent from target sample data", col.Name))
		return cr
	}

	nullCount := 0
	var nonNull []any
	for _, v := range values {
		if check.IsNull(v) {
			nullCount++
		} else {
			nonNull = append(nonNull, v)
		}
	}
	nullPercent := 0.0
	if len(values) > 0 {
		nullPercent = float64(nullCount) / float64(len(values)) * 100
	}

	// Check 3: nullability.
	if !col.IsNullable() {
		appendCheck("nullability", nullCount == 0,
			fmt.Sprintf("column is NOT NULL: %d nulls (%.1f%%)", nullCount, nullPercent))
	} else if col.MaxNullPercent != nil {
		appendCheck("nullability", nullPercent <= *col.MaxNullPercent,
			fmt.Sprintf("null percentage %.1f%% vs threshold %.1f%%", nullPercent, *col.MaxNullPercent))
	}

	colType := check.Normalize(col.ExpectedType)
	if col.ExpectedType == "" {
		colType = check.Normalize(targetCol.DeclaredType)
	}

	// Check 4: default-value frequency over non-null rows.
	if col.DefaultValue != nil && col.MinDefaultPercent != nil && len(nonNull) > 0 {
		defaults := 0
		for _, v := range nonNull {
			if check.ValueEquals(v, col.DefaultValue, colType, config.DefaultEpsilon) {
				defaults++
			}
		}
		defaultPercent := float64(defaults) / float64(len(nonNull)) * 100
		appendCheck("default_value", defaultPercent >= *col.MinDefaultPercent,
			fmt.Sprintf("default %v present in %.1f%% of non-null rows (expected >= %.1f%%)",
				col.DefaultValue, defaultPercent, *col.MinDefaultPercent))
	}

	// Check 5: numeric range.
	if (col.MinValue != nil || col.MaxValue != nil) && colType.Numeric() {
		outOfRange := 0
		example := ""
		for _, v := range nonNull {
			f, ok := check.AsFloat(v)
			if !ok {
				continue
			}
			if (col.MinValue != nil && f < *col.MinValue) || (col.MaxValue != nil && f > *col.MaxValue) {
				outOfRange++
				if example == "" {
					example = check.ValueKey(v)
				}
			}
		}
		detail := "all values in range"
		if outOfRange > 0 {
			detail = fmt.Sprintf("%d values out of range (e.g. %s)", outOfRange, example)
		}
		appendCheck("range", outOfRange == 0, detail)
	}

	// Check 6: allowed values.
	if len(col.AllowedValues) > 0 {
		violations := check.AllowedValueViolations(nonNull, col.AllowedValues)
		if len(violations) == 0 {
			appendCheck("allowed_values", true, "all values are from the allowed set")
		} else {
			parts := make([]string, 0, len(violations))
			for _, viol := range violations {
				parts = append(parts, fmt.Sprintf("%s(x%d)", viol.Value, viol.Count))
			}
			appendCheck("allowed_values", false,
				fmt.Sprintf("%d values outside allowed set: %s", len(violations), strings.Join(parts, ", ")))
		}
	}

	// Check 7: pattern match ratio, string columns only.
	if col.CompiledPattern != nil && colType == check.TypeString {
		minMatch := 100.0
		if col.MinPatternMatchPercent != nil {
			minMatch = *col.MinPatternMatchPercent
		}
		percent, matched, total := check.PatternMatchRatio(values, col.CompiledPattern)
		appendCheck("pattern", percent >= minMatch,
			fmt.Sprintf("%.1f%% of %d non-null values match (%d matched, expected >= %.1f%%)",
				percent, total, matched, minMatch))
	}

	// Check 8: custom predicates from the metadata extension point.
	for _, name := range col.CustomChecks {
		passed, detail := runCustomCheck(name, nonNull)
		appendCheck("custom_"+name, passed, detail)
	}

	return cr
}

func runCustomCheck(name string, nonNull []any) (bool, string) {
	switch name {
	case "unique":
		seen := make(map[string]struct{}, len(nonNull))
		dups := 0
		for _, v := range nonNull {
			key := check.ValueKey(v)
			if _, ok := seen[key]; ok {
				dups++
			}
			seen[key] = struct{}{}
		}
		if dups > 0 {
			return false, fmt.Sprintf("%d duplicate values", dups)
		}
		return true, "all non-null values unique"
	case "not_blank":
		blanks := 0
		for _, v := range nonNull {
			if strings.TrimSpace(check.ValueKey(v)) == "" {
				blanks++
			}
		}
		if blanks > 0 {
			return false, fmt.Sprintf("%d blank values", blanks)
		}
		return true, "no blank values"
	}
	// Unknown names are rejected at configuration load; reaching here means
	// the check set drifted.
	return false, fmt.Sprintf("unknown custom check %q", name)
}
