// Package check contains the pure comparison primitives shared by every
// validator kind. Nothing in here performs I/O.
package check

import (
	"math"
)

// PercentDifference returns the relative difference between a and b as a
// percentage, using max(|a|, |b|, 1) as the denominator so that two zero
// operands compare as 0% rather than dividing by zero.
func PercentDifference(a, b float64) float64 {
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom < 1 {
		denom = 1
	}
	return math.Abs(a-b) / denom * 100
}

// AbsDifference returns |a-b| as an int64 magnitude.
func AbsDifference(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

// EqualWithin reports whether a and b differ by at most eps.
func EqualWithin(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// WithinPercentThreshold reports whether the observed difference satisfies the
// bound. The boundary value itself passes (d <= t).
func WithinPercentThreshold(diffPercent, threshold float64) bool {
	return diffPercent <= threshold
}
