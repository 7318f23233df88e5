package check

import (
	"regexp"
)

// PatternMatchRatio returns the percentage of non-null values matching the
// compiled pattern, plus the matched and non-null counts. NULLs are excluded
// from the denominator; they are governed by the nullability check instead.
// A column with no non-null values reports 100%.
func PatternMatchRatio(values []any, re *regexp.Regexp) (percent float64, matched, total int) {
	for _, v := range values {
		if IsNull(v) {
			continue
		}
		total++
		if re.MatchString(ValueKey(v)) {
			matched++
		}
	}
	if total == 0 {
		return 100, 0, 0
	}
	return float64(matched) / float64(total) * 100, matched, total
}

// Violation is a distinct value found outside an allow-list, with its
// occurrence count.
type Violation struct {
	Value string
	Count int
}

// AllowedValueViolations returns the distinct non-null values present in
// values but absent from the allow-list, in first-seen order.
func AllowedValueViolations(values []any, allowed []any) []Violation {
	allowedKeys := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		allowedKeys[ValueKey(a)] = struct{}{}
	}

	counts := make(map[string]int)
	var order []string
	for _, v := range values {
		if IsNull(v) {
			continue
		}
		key := ValueKey(v)
		if _, ok := allowedKeys[key]; ok {
			continue
		}
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	ret := make([]Violation, 0, len(order))
	for _, key := range order {
		ret = append(ret, Violation{Value: key, Count: counts[key]})
	}
	return ret
}
