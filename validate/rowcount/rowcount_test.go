package rowcount

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
func i64(v int64) *int64     { return &v }

func TestEvaluate(t *testing.T) {
	for _, tc := range []struct {
		name           string
		thresholds     config.ThresholdSet
		source, target int64
		expected       result.Status
	}{
		{
			name:       "exact match",
			thresholds: config.ThresholdSet{MaxDifferencePercent: f64(0)},
			source:     1000, target: 1000,
			expected: result.Passed,
		},
		{
			name:       "within percent threshold",
			thresholds: config.ThresholdSet{MaxDifferencePercent: f64(0.1)},
			source:     10000, target: 9995,
			expected: result.Passed,
		},
		{
			name:       "over percent threshold",
			thresholds: config.ThresholdSet{MaxDifferencePercent: f64(0.01)},
			source:     10000, target: 9995,
			expected: result.Failed,
		},
		{
			name: "both thresholds must hold",
			thresholds: config.ThresholdSet{
				MaxDifferencePercent:  f64(1),
				MaxDifferenceAbsolute: i64(3),
			},
			source: 10000, target: 9995,
			expected: result.Failed,
		},
		{
			name: "both thresholds satisfied",
			thresholds: config.ThresholdSet{
				MaxDifferencePercent:  f64(1),
				MaxDifferenceAbsolute: i64(10),
			},
			source: 10000, target: 9995,
			expected: result.Passed,
		},
		{
			name:       "no thresholds configured",
			thresholds: config.ThresholdSet{},
			source:     100, target: 50,
			expected: result.Passed,
		},
		{
			name:       "zero source fails",
			thresholds: config.ThresholdSet{FailOnZeroSource: true},
			source:     0, target: 100,
			expected: result.Failed,
		},
		{
			name:       "zero target fails",
			thresholds: config.ThresholdSet{FailOnZeroTarget: true},
			source:     100, target: 0,
			expected: result.Failed,
		},
		{
			// Matching zeroes still fail the zero guards; a 0 == 0 match is
			// usually a broken query, not a validated pipeline.
			name: "both zero still fails",
			thresholds: config.ThresholdSet{
				MaxDifferencePercent: f64(0),
				FailOnZeroSource:     true,
				FailOnZeroTarget:     true,
			},
			source: 0, target: 0,
			expected: result.Failed,
		},
		{
			name: "warn on difference",
			thresholds: config.ThresholdSet{
				MaxDifferencePercent: f64(1),
				WarnOnDifference:     true,
			},
			source: 1000, target: 999,
			expected: result.Warning,
		},
		{
			name: "warn flag with no difference",
			thresholds: config.ThresholdSet{
				MaxDifferencePercent: f64(1),
				WarnOnDifference:     true,
			},
			source: 1000, target: 1000,
			expected: result.Passed,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			diff := tc.target - tc.source
			diffPercent := 0.0
			if tc.source != 0 || tc.target != 0 {
				diffPercent = percentFor(tc.source, tc.target)
			}
			_, status := evaluate(tc.thresholds, tc.source, tc.target, diff, diffPercent)
			require.Equal(t, tc.expected, status)
		})
	}
}

func percentFor(a, b int64) float64 {
	max := a
	if b > max {
		max = b
	}
	if max < 1 {
		max = 1
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) / float64(max) * 100
}

func TestValidate(t *testing.T) {
	sourceFake := connector.MakeFake("legacy")
	sourceFake.Counts["orders"] = 10000
	targetFake := connector.MakeFake("warehouse")
	targetFake.Counts["orders"] = 9995

	v := New(zerolog.Nop())
	spec := &config.ValidationSpec{
		Name:        "orders count",
		Kind:        config.KindRowCount,
		Source:      "legacy",
		Target:      "warehouse",
		SourceTable: "orders",
		TargetTable: "orders",
		Thresholds:  config.ThresholdSet{MaxDifferencePercent: f64(0.1)},
	}

	res, err := v.Validate(context.Background(), spec, connector.FakeHandle(sourceFake), connector.FakeHandle(targetFake))
	require.NoError(t, err)
	require.Equal(t, result.Passed, res.Status)
	require.Equal(t, int64(10000), *res.SourceCount)
	require.Equal(t, int64(9995), *res.TargetCount)
	require.Equal(t, int64(-5), *res.Difference)
	require.InDelta(t, 0.05, *res.DifferencePercent, 1e-9)
	require.Len(t, res.Checks, 1)
	require.True(t, res.Checks[0].Passed)
}
