package check

import (
	"strings"
)

// Type is the canonical type universe used for cross-platform comparison.
// Platform-specific spellings (bigint, long, int64, ...) are folded into this
// set before any type comparison happens.
type Type string

const (
	TypeString    Type = "string"
	TypeInteger   Type = "integer"
	TypeDouble    Type = "double"
	TypeDecimal   Type = "decimal"
	TypeBoolean   Type = "boolean"
	TypeDate      Type = "date"
	TypeTimestamp Type = "timestamp"
	// TypeUnknown is returned for spellings we cannot map. It never matches
	// anything, including itself, so unmappable types fail type checks rather
	// than being silently accepted.
	TypeUnknown Type = "unknown"
)

// Numeric reports whether values of this type can be compared as numbers.
func (t Type) Numeric() bool {
	switch t {
	case TypeInteger, TypeDouble, TypeDecimal:
		return true
	}
	return false
}

// Matches reports whether two canonical types are considered equal.
func (t Type) Matches(o Type) bool {
	if t == TypeUnknown || o == TypeUnknown {
		return false
	}
	return t == o
}

// Normalize maps a platform-reported type spelling into the canonical set.
// Parameterized spellings such as varchar(255) or decimal(10,2) are handled.
func Normalize(raw string) Type {
	s := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(s, "(<"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)

	switch s {
	case "int", "integer", "smallint", "tinyint", "mediumint", "bigint",
		"int2", "int4", "int8", "long", "int64", "int32", "serial", "bigserial":
		return TypeInteger
	case "float", "float4", "float8", "double", "double precision", "real":
		return TypeDouble
	case "decimal", "numeric", "number":
		return TypeDecimal
	case "string", "varchar", "char", "character", "character varying", "text",
		"nvarchar", "bpchar", "object":
		return TypeString
	case "bool", "boolean":
		return TypeBoolean
	case "date":
		return TypeDate
	case "timestamp", "timestamptz", "timestamp with time zone",
		"timestamp without time zone", "datetime", "datetime2":
		return TypeTimestamp
	}

	// Fallbacks for vendor spellings like "BIGINT UNSIGNED" or "UInt64".
	switch {
	case strings.Contains(s, "timestamp") || strings.Contains(s, "datetime"):
		return TypeTimestamp
	case strings.Contains(s, "date"):
		return TypeDate
	case strings.Contains(s, "bool"):
		return TypeBoolean
	case strings.Contains(s, "decimal") || strings.Contains(s, "numeric"):
		return TypeDecimal
	case strings.Contains(s, "float") || strings.Contains(s, "double"):
		return TypeDouble
	case strings.Contains(s, "int") || strings.Contains(s, "long"):
		return TypeInteger
	case strings.Contains(s, "char") || strings.Contains(s, "string") || strings.Contains(s, "text"):
		return TypeString
	}
	return TypeUnknown
}
