// Package schemaverify compares column sets and normalized types between the
// source and target tables. Differences touching a critical column fail the
// validation; all other differences are reported without failing it.
package schemaverify

import (
	"context"
	"fmt"
	"sort"
	"strings"

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
	return config.KindSchema
}

// difference is one schema divergence, tagged with the column it concerns so
// critical-column matching is structural rather than string matching.
type difference struct {
	column string
	detail string
}

func (v *Validator) Validate(
	ctx context.Context,
	spec *config.ValidationSpec,
	source, target *connector.Handle,
) (*result.Result, error) {
	sourceSchema, err := FetchSchema(ctx, source, spec.SourceRef(), spec.SourceIsQuery())
	if err != nil {
		return nil, err
	}
	targetSchema, err := FetchSchema(ctx, target, spec.TargetRef(), spec.TargetIsQuery())
	if err != nil {
		return nil, err
	}

	diffs := compare(sourceSchema, targetSchema)

	critical := map[string]struct{}{}
	if spec.Schema != nil {
		for _, c := range spec.Schema.CriticalColumns {
			critical[strings.ToLower(c)] = struct{}{}
		}
	}

	var details []string
	var checks []result.CheckOutcome
	criticalHit := false
	for _, d := range diffs {
		details = append(details, d.detail)
		_, isCritical := critical[strings.ToLower(d.column)]
		if isCritical {
			criticalHit = true
		}
		checks = append(checks, result.CheckOutcome{
			Name:   "schema_diff",
			Passed: !isCritical,
			Detail: d.detail,
		})
	}

	status := result.Passed
	switch {
	case criticalHit:
		status = result.Failed
	case len(diffs) > 0:
		status = result.Warning
		v.logger.Warn().Str("validation", spec.Name).Int("differences", len(diffs)).Msg("schema differences found")
	}

	return &result.Result{
		Name:              spec.Name,
		Kind:              spec.Kind,
		Status:            status,
		Source:            spec.Source,
		Target:            spec.Target,
		Checks:            checks,
		SchemaDifferences: details,
		Metadata: map[string]any{
			"source_columns": len(sourceSchema),
			"target_columns": len(targetSchema),
		},
	}, nil
}

// FetchSchema resolves a schema for a table reference, or infers one from a
// single-row read when the reference is a raw query. The caller supplies the
// query/table distinction from the configuration rather than having it
// re-guessed from the string.
func FetchSchema(ctx context.Context, h *connector.Handle, ref string, isQuery bool) ([]connector.SchemaColumn, error) {
	if !isQuery {
		return h.GetSchema(ctx, ref)
	}
	rows, err := h.ReadData(ctx, ref, 1)
	if err != nil {
		return nil, err
	}
	ret := make([]connector.SchemaColumn, len(rows.Columns))
	for i, name := range rows.Columns {
		ret[i] = connector.SchemaColumn{Name: name, DeclaredType: rows.Types[i], Nullable: true}
	}
	return ret, nil
}

func compare(source, target []connector.SchemaColumn) []difference {
	sourceByName := byName(source)
	targetByName := byName(target)

	var diffs []difference
	for _, name := range sortedNames(sourceByName) {
		if _, ok := targetByName[name]; !ok {
			diffs = append(diffs, difference{
				column: name,
				detail: fmt.Sprintf("column %q exists in source but is missing in target", name),
			})
		}
	}
	for _, name := range sortedNames(targetByName) {
		if _, ok := sourceByName[name]; !ok {
			diffs = append(diffs, difference{
				column: name,
				detail: fmt.Sprintf("column %q exists in target but is missing in source", name),
			})
		}
	}
	for _, name := range sortedNames(sourceByName) {
		tcol, ok := targetByName[name]
		if !ok {
			continue
		}
		scol := sourceByName[name]
		if !check.Normalize(scol.DeclaredType).Matches(check.Normalize(tcol.DeclaredType)) {
			diffs = append(diffs, difference{
				column: name,
				detail: fmt.Sprintf("column %q type mismatch: source=%s target=%s",
					name, scol.DeclaredType, tcol.DeclaredType),
			})
		}
	}
	return diffs
}

func byName(cols []connector.SchemaColumn) map[string]connector.SchemaColumn {
	ret := make(map[string]connector.SchemaColumn, len(cols))
	for _, c := range cols {
		ret[strings.ToLower(c.Name)] = c
	}
	return ret
}

func sortedNames(m map[string]connector.SchemaColumn) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
