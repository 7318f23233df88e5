package businessrule

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/datavet/datavet/config"
	"github.com/datavet/datavet/connector"
	"github.com/datavet/datavet/validate/result"
)

func f64(v float64) *float64 { return &v }

const (
	sourceQuery = "SELECT sum(total) FROM orders"
	targetQuery = "SELECT sum(total) FROM fact_orders"
)

func aggRows(v any) *connector.Rows {
	return &connector.Rows{
		Columns: []string{"sum"},
		Types:   []string{"numeric"},
		Data:    [][]any{{v}},
	}
}

func newSpec(opts *config.BusinessRuleOptions, thresholds config.ThresholdSet) *config.ValidationSpec {
	return &config.ValidationSpec{
		Name:         "revenue parity",
		Kind:         config.KindBusinessRule,
		Source:       "legacy",
		Target:       "warehouse",
		SourceQuery:  sourceQuery,
		TargetQuery:  targetQuery,
		Thresholds:   thresholds,
		BusinessRule: opts,
	}
}

func handlesFor(source, target *connector.Rows) (*connector.Handle, *connector.Handle) {
	sourceFake := connector.MakeFake("legacy")
	sourceFake.Datasets[sourceQuery] = source
	targetFake := connector.MakeFake("warehouse")
	targetFake.Datasets[targetQuery] = target
	return connector.FakeHandle(sourceFake), connector.FakeHandle(targetFake)
}

func TestAggregation(t *testing.T) {
	v := New(zerolog.Nop())
	opts := &config.BusinessRuleOptions{RuleType: config.RuleAggregation, Epsilon: config.DefaultEpsilon}

	t.Run("within threshold", func(t *testing.T) {
		source, target := handlesFor(aggRows(10000.0), aggRows(9995.0))
		res, err := v.Validate(context.Background(), newSpec(opts, config.ThresholdSet{
			MaxDifferencePercent: f64(0.1),
		}), source, target)
		require.NoError(t, err)
		require.Equal(t, result.Passed, res.Status)
		require.InDelta(t, 0.05, *res.DifferencePercent, 1e-9)
		require.Equal(t, 10000.0, res.RuleResults["source_value"])
		require.Equal(t, 9995.0, res.RuleResults["target_value"])
	})

	t.Run("over threshold", func(t *testing.T) {
		source, target := handlesFor(aggRows(10000.0), aggRows(9995.0))
		res, err := v.Validate(context.Background(), newSpec(opts, config.ThresholdSet{
			MaxDifferencePercent: f64(0.01),
		}), source, target)
		require.NoError(t, err)
		require.Equal(t, result.Failed, res.Status)
	})

	t.Run("string aggregates are coerced", func(t *testing.T) {
		source, target := handlesFor(aggRows("42.5"), aggRows("42.5"))
		res, err := v.Validate(context.Background(), newSpec(opts, config.ThresholdSet{
			MaxDifferencePercent: f64(0),
		}), source, target)
		require.NoError(t, err)
		require.Equal(t, result.Passed, res.Status)
	})

	t.Run("null aggregate errors", func(t *testing.T) {
		source, target := handlesFor(aggRows(nil), aggRows(100.0))
		_, err := v.Validate(context.Background(), newSpec(opts, config.ThresholdSet{}), source, target)
		require.ErrorContains(t, err, "NULL")
	})

	t.Run("non numeric aggregate errors", func(t *testing.T) {
		source, target := handlesFor(aggRows("n/a"), aggRows(100.0))
		_, err := v.Validate(context.Background(), newSpec(opts, config.ThresholdSet{}), source, target)
		require.ErrorContains(t, err, "non-numeric")
	})

	t.Run("warn on inexact match", func(t *testing.T) {
		source, target := handlesFor(aggRows(1000.0), aggRows(999.5))
		res, err := v.Validate(context.Background(), newSpec(opts, config.ThresholdSet{
			MaxDifferencePercent: f64(1),
			WarnOnDifference:     true,
		}), source, target)
		require.NoError(t, err)
		require.Equal(t, result.Warning, res.Status)
	})
}

func TestRowByRow(t *testing.T) {
	v := New(zerolog.Nop())
	opts := &config.BusinessRuleOptions{RuleType: config.RuleRowByRow, Epsilon: 1e-9}

	rows := func(data ...[]any) *connector.Rows {
		return &connector.Rows{
			Columns: []string{"region", "total"},
			Types:   []string{"text", "numeric"},
			Data:    data,
		}
	}

	t.Run("identical modulo order", func(t *testing.T) {
		source, target := handlesFor(
			rows([]any{"east", 10.0}, []any{"west", 20.0}),
			rows([]any{"west", 20.0}, []any{"east", 10.0}),
		)
		res, err := v.Validate(context.Background(), newSpec(opts, config.ThresholdSet{}), source, target)
		require.NoError(t, err)
		require.Equal(t, result.Passed, res.Status)
		require.Equal(t, int64(0), res.RuleResults["mismatches"])
	})

	t.Run("cell mismatch fails", func(t *testing.T) {
		source, target := handlesFor(
			rows([]any{"east", 10.0}, []any{"west", 20.0}),
			rows([]any{"east", 10.0}, []any{"west", 21.0}),
		)
		res, err := v.Validate(context.Background(), newSpec(opts, config.ThresholdSet{}), source, target)
		require.NoError(t, err)
		require.Equal(t, result.Failed, res.Status)
		require.Equal(t, int64(1), res.RuleResults["mismatches"])
	})

	t.Run("row count mismatch fails", func(t *testing.T) {
		source, target := handlesFor(
			rows([]any{"east", 10.0}),
			rows([]any{"east", 10.0}, []any{"west", 20.0}),
		)
		res, err := v.Validate(context.Background(), newSpec(opts, config.ThresholdSet{}), source, target)
		require.NoError(t, err)
		require.Equal(t, result.Failed, res.Status)
		require.Len(t, res.Checks, 1)
		require.Equal(t, "row_count", res.Checks[0].Name)
	})

	t.Run("epsilon tolerates float drift", func(t *testing.T) {
		source, target := handlesFor(
			rows([]any{"east", 0.3}),
			rows([]any{"east", 0.1 + 0.2}),
		)
		res, err := v.Validate(context.Background(), newSpec(opts, config.ThresholdSet{}), source, target)
		require.NoError(t, err)
		require.Equal(t, result.Passed, res.Status)
	})
}

func TestGeneric(t *testing.T) {
	v := New(zerolog.Nop())
	opts := &config.BusinessRuleOptions{RuleType: config.RuleGeneric}

	same := &connector.Rows{
		Columns: []string{"a"},
		Types:   []string{"integer"},
		Data:    [][]any{{1}, {2}},
	}
	different := &connector.Rows{
		Columns: []string{"a"},
		Types:   []string{"integer"},
		Data:    [][]any{{1}, {3}},
	}

	source, target := handlesFor(same, same)
	res, err := v.Validate(context.Background(), newSpec(opts, config.ThresholdSet{}), source, target)
	require.NoError(t, err)
	require.Equal(t, result.Passed, res.Status)

	source, target = handlesFor(same, different)
	res, err = v.Validate(context.Background(), newSpec(opts, config.ThresholdSet{}), source, target)
	require.NoError(t, err)
	require.Equal(t, result.Failed, res.Status)
}
