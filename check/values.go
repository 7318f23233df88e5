package check

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IsNull reports whether a cell value counts as NULL.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	if b, ok := v.([]byte); ok {
		return b == nil
	}
	return false
}

// AsFloat coerces a cell value to float64. Strings and byte slices are parsed;
// the second return is false for NULLs and non-numeric values.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		return f, err == nil
	}
	return 0, false
}

// ValueKey renders a cell value in a stable string form used for set
// membership, duplicate detection and reporting. Integral floats render
// without a trailing ".0" so 5 and 5.0 compare equal across platforms.
func ValueKey(v any) string {
	switch x := v.(type) {
	case nil:
		return "<null>"
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case bool:
		if x {
			return "true"
		}
		return "false"
	}
	return fmt.Sprint(v)
}

// ValueEquals compares a cell value against an expected value under the given
// canonical type: numeric tolerance for floating types, exact string form
// otherwise.
func ValueEquals(v, expected any, t Type, eps float64) bool {
	if IsNull(v) || expected == nil {
		return IsNull(v) && expected == nil
	}
	if t == TypeDouble || t == TypeDecimal {
		a, aok := AsFloat(v)
		b, bok := AsFloat(expected)
		if aok && bok {
			return EqualWithin(a, b, eps)
		}
	}
	if t == TypeInteger {
		a, aok := AsFloat(v)
		b, bok := AsFloat(expected)
		if aok && bok {
			return a == b
		}
	}
	return ValueKey(v) == ValueKey(expected)
}
