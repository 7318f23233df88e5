package config

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSubstituteEnv(t *testing.T) {
	t.Setenv("DATAVET_TEST_HOST", "db.example.com")
	t.Setenv("DATAVET_TEST_EMPTY", "")

	for _, tc := range []struct {
		name     string
		in       string
		expected string
	}{
		{name: "set", in: "host: ${DATAVET_TEST_HOST}", expected: "host: db.example.com"},
		{name: "set wins over default", in: "${DATAVET_TEST_HOST:fallback}", expected: "db.example.com"},
		{name: "unset with default", in: "${DATAVET_TEST_UNSET:fallback}", expected: "fallback"},
		{name: "unset without default", in: "a${DATAVET_TEST_UNSET}b", expected: "ab"},
		{name: "empty but set", in: "a${DATAVET_TEST_EMPTY:fallback}b", expected: "ab"},
		{name: "no references", in: "plain text $HOME", expected: "plain text $HOME"},
		{name: "multiple", in: "${DATAVET_TEST_HOST}:${DATAVET_TEST_UNSET:5432}", expected: "db.example.com:5432"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, string(SubstituteEnv([]byte(tc.in))))
		})
	}
}

const validConfig = `
connections:
  - name: legacy
    type: postgres
    config:
      host: localhost
  - name: warehouse
    type: mysql
    config:
      host: localhost
validations:
  - name: orders row count
    type: row_count
    source: legacy
    target: warehouse
    source_table: orders
    target_table: orders
    thresholds:
      max_difference_percent: 0.1
`

func TestParseValid(t *testing.T) {
	cfg, err := Parse([]byte(validConfig))
	require.NoError(t, err)
	require.Len(t, cfg.Connections, 2)
	require.Len(t, cfg.Validations, 1)

	v := cfg.Validations[0]
	require.Equal(t, KindRowCount, v.Kind)
	require.True(t, v.IsEnabled())
	require.Equal(t, "orders", v.SourceRef())
	require.NotNil(t, v.Thresholds.MaxDifferencePercent)
	require.Equal(t, 0.1, *v.Thresholds.MaxDifferencePercent)

	// Settings defaults.
	require.Equal(t, 4, cfg.Settings.Workers())
	require.True(t, cfg.Settings.ContinueOnErr())
	require.Equal(t, 3, cfg.Settings.RetryAttempts())
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		yaml   string
		errStr string
	}{
		{
			name:   "no connections",
			yaml:   `validations: []`,
			errStr: "at least one connection",
		},
		{
			name: "duplicate connection name",
			yaml: `
connections:
  - name: a
    type: postgres
  - name: a
    type: mysql
`,
			errStr: `duplicate connection name "a"`,
		},
		{
			name: "unknown validation kind",
			yaml: `
connections:
  - name: a
    type: postgres
validations:
  - name: v
    type: rowcount
    source: a
    target: a
    source_table: t
    target_table: t
`,
			errStr: `unknown type "rowcount"`,
		},
		{
			name: "unknown connection reference",
			yaml: `
connections:
  - name: a
    type: postgres
validations:
  - name: v
    type: row_count
    source: a
    target: missing
    source_table: t
    target_table: t
`,
			errStr: `unknown target connection "missing"`,
		},
		{
			name: "missing table reference",
			yaml: `
connections:
  - name: a
    type: postgres
validations:
  - name: v
    type: row_count
    source: a
    target: a
`,
			errStr: "query or table reference is required",
		},
		{
			name: "business rule without queries",
			yaml: `
connections:
  - name: a
    type: postgres
validations:
  - name: v
    type: business_rule
    source: a
    target: a
    source_table: t
    target_table: t
`,
			errStr: "business_rule requires source_query and target_query",
		},
		{
			name: "new column without columns",
			yaml: `
connections:
  - name: a
    type: postgres
validations:
  - name: v
    type: new_column
    source: a
    target: a
    source_table: t
    target_table: t
`,
			errStr: "new_column requires metadata.new_columns",
		},
		{
			name: "invalid pattern",
			yaml: `
connections:
  - name: a
    type: postgres
validations:
  - name: v
    type: new_column
    source: a
    target: a
    source_table: t
    target_table: t
    metadata:
      new_columns:
        - name: code
          pattern: "["
`,
			errStr: "invalid pattern",
		},
		{
			name: "min above max",
			yaml: `
connections:
  - name: a
    type: postgres
validations:
  - name: v
    type: new_column
    source: a
    target: a
    source_table: t
    target_table: t
    metadata:
      new_columns:
        - name: score
          min_value: 10
          max_value: 5
`,
			errStr: "min_value exceeds max_value",
		},
		{
			name: "min_default_percent without default",
			yaml: `
connections:
  - name: a
    type: postgres
validations:
  - name: v
    type: new_column
    source: a
    target: a
    source_table: t
    target_table: t
    metadata:
      new_columns:
        - name: score
          min_default_percent: 80
`,
			errStr: "min_default_percent requires default_value",
		},
		{
			name: "unknown custom check",
			yaml: `
connections:
  - name: a
    type: postgres
validations:
  - name: v
    type: new_column
    source: a
    target: a
    source_table: t
    target_table: t
    metadata:
      new_columns:
        - name: score
          custom_checks: [monotonic]
`,
			errStr: `unknown custom check "monotonic"`,
		},
		{
			name: "unknown rule type",
			yaml: `
connections:
  - name: a
    type: postgres
validations:
  - name: v
    type: business_rule
    source: a
    target: a
    source_query: SELECT 1
    target_query: SELECT 1
    metadata:
      rule_type: fuzzy
`,
			errStr: `unknown rule_type "fuzzy"`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			require.ErrorContains(t, err, tc.errStr)
			require.True(t, errors.Is(err, ErrConfiguration))
		})
	}
}

func TestDecodeMetadata(t *testing.T) {
	cfg, err := Parse([]byte(`
connections:
  - name: a
    type: postgres
validations:
  - name: quality
    type: data_quality
    source: a
    target: a
    source_table: t
    target_table: t
    metadata:
      check_columns: [email, status]
      primary_key: id
  - name: rule
    type: business_rule
    source: a
    target: a
    source_query: SELECT sum(total) FROM orders
    target_query: SELECT sum(total) FROM orders
    metadata:
      rule_type: row_by_row
  - name: columns
    type: new_column
    source: a
    target: a
    source_table: t
    target_table: t
    metadata:
      sample_rows: 500
      new_columns:
        - name: country_code
          expected_type: varchar(2)
          nullable: false
          pattern: "^[A-Z]{2}$"
          allowed_values: [US, GB, DE]
`))
	require.NoError(t, err)

	dq := cfg.Validations[0].DataQuality
	require.NotNil(t, dq)
	require.Equal(t, []string{"email", "status"}, dq.CheckColumns)
	// Scalar primary_key decodes as a one-element list.
	require.Equal(t, StringList{"id"}, dq.PrimaryKey)

	br := cfg.Validations[1].BusinessRule
	require.NotNil(t, br)
	require.Equal(t, RuleRowByRow, br.RuleType)
	require.Equal(t, DefaultEpsilon, br.Epsilon)

	nc := cfg.Validations[2].NewColumn
	require.NotNil(t, nc)
	require.Equal(t, 500, nc.SampleRows)
	require.Len(t, nc.Columns, 1)
	col := nc.Columns[0]
	require.False(t, col.IsNullable())
	require.NotNil(t, col.CompiledPattern)
	require.True(t, col.CompiledPattern.MatchString("US"))
	require.Len(t, col.AllowedValues, 3)
}

func TestStringList(t *testing.T) {
	var doc struct {
		Key StringList `yaml:"key"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(`key: solo`), &doc))
	require.Equal(t, StringList{"solo"}, doc.Key)

	doc.Key = nil
	require.NoError(t, yaml.Unmarshal([]byte(`key: [a, b]`), &doc))
	require.Equal(t, StringList{"a", "b"}, doc.Key)
}
