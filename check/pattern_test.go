package check

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatternMatchRatio(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z]{2}$`)

	percent, matched, total := PatternMatchRatio([]any{"US", "GB", "usa", nil, "DE"}, re)
	require.Equal(t, 3, matched)
	require.Equal(t, 4, total)
	require.InDelta(t, 75.0, percent, 1e-9)

	// NULLs alone leave nothing to fail the pattern.
	percent, matched, total = PatternMatchRatio([]any{nil, nil}, re)
	require.Equal(t, 0, matched)
	require.Equal(t, 0, total)
	require.Equal(t, 100.0, percent)

	percent, _, _ = PatternMatchRatio(nil, re)
	require.Equal(t, 100.0, percent)
}

func TestAllowedValueViolations(t *testing.T) {
	allowed := []any{"active", "inactive"}

	violations := AllowedValueViolations(
		[]any{"active", "deleted", nil, "pending", "deleted", "inactive"},
		allowed,
	)
	require.Equal(t, []Violation{
		{Value: "deleted", Count: 2},
		{Value: "pending", Count: 1},
	}, violations)

	require.Empty(t, AllowedValueViolations([]any{"active", nil}, allowed))

	// Numeric values compare through their stable string form, so 5 and 5.0
	// are the same member.
	require.Empty(t, AllowedValueViolations([]any{5.0, 5}, []any{5}))
}
