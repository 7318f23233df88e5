// Package config defines the declarative validation configuration: logical
// connections, the ordered validation list, reporters, and run settings.
// Specs are immutable once loaded; all cross-references and kind-specific
// metadata are validated eagerly so that a malformed configuration surfaces
// before any execution starts.
package config

import (
	"regexp"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks every error raised at configuration load time.
// It is fatal to the whole run.
var ErrConfiguration = errors.New("configuration error")

func configErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfiguration)
}

// Kind identifies one of the five built-in validation kinds. The set is
// closed: validators are dispatched through a fixed registry, not open
// subclassing.
type Kind string

const (
	KindRowCount     Kind = "row_count"
	KindDataQuality  Kind = "data_quality"
	KindSchema       Kind = "schema"
	KindBusinessRule Kind = "business_rule"
	KindNewColumn    Kind = "new_column"
)

// Kinds lists every built-in validation kind.
func Kinds() []Kind {
	return []Kind{KindRowCount, KindDataQuality, KindSchema, KindBusinessRule, KindNewColumn}
}

func validKind(k Kind) bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Config is the root configuration document.
type Config struct {
	Connections []ConnectionSpec `yaml:"connections"`
	Validations []ValidationSpec `yaml:"validations"`
	Reporters   []ReporterSpec   `yaml:"reporters"`
	Settings    Settings         `yaml:"settings"`
}

// ConnectionSpec names a logical connection and carries its resolved
// parameters. Secrets are expected to arrive via ${VAR} substitution.
type ConnectionSpec struct {
	Name    string            `yaml:"name"`
	Kind    string            `yaml:"type"`
	Enabled *bool             `yaml:"enabled"`
	Params  map[string]string `yaml:"config"`
}

// IsEnabled defaults to true when the field is omitted.
func (c ConnectionSpec) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ThresholdSet holds the numeric bounds governing pass/fail. A nil bound
// means "unchecked", not "pass automatically". When both the percentage and
// the absolute bound are set, both must hold (exceeding either fails).
type ThresholdSet struct {
	MaxDifferencePercent  *float64 `yaml:"max_difference_percent"`
	MaxDifferenceAbsolute *int64   `yaml:"max_difference_absolute"`
	FailOnZeroSource      bool     `yaml:"fail_on_zero_source"`
	FailOnZeroTarget      bool     `yaml:"fail_on_zero_target"`
	MaxNullPercent        *float64 `yaml:"max_null_percent"`
	MaxDuplicatePercent   *float64 `yaml:"max_duplicate_percent"`
	MaxInvalidPercent     *float64 `yaml:"max_invalid_percent"`

	// WarnOnDifference marks an in-threshold, nonzero difference as WARNING
	// instead of PASSED. WarnOnQualityIssues is the equivalent for the data
	// quality metrics. Without these flags a within-threshold result passes.
	WarnOnDifference    bool `yaml:"warn_on_difference"`
	WarnOnQualityIssues bool `yaml:"warn_on_quality_issues"`
}

// ValidationSpec describes one validation to run. Kind-specific options live
// in the metadata mapping and are decoded into the typed option structs at
// load time.
type ValidationSpec struct {
	Name        string       `yaml:"name"`
	Kind        Kind         `yaml:"type"`
	Enabled     *bool        `yaml:"enabled"`
	Source      string       `yaml:"source"`
	Target      string       `yaml:"target"`
	SourceQuery string       `yaml:"source_query"`
	TargetQuery string       `yaml:"target_query"`
	SourceTable string       `yaml:"source_table"`
	TargetTable string       `yaml:"target_table"`
	Thresholds  ThresholdSet `yaml:"thresholds"`
	Metadata    yaml.Node    `yaml:"metadata"`

	// Typed views of Metadata, populated during Load for the matching kind.
	DataQuality  *DataQualityOptions  `yaml:"-"`
	Schema       *SchemaOptions       `yaml:"-"`
	BusinessRule *BusinessRuleOptions `yaml:"-"`
	NewColumn    *NewColumnOptions    `yaml:"-"`
}

// IsEnabled defaults to true when the field is omitted.
func (v ValidationSpec) IsEnabled() bool {
	return v.Enabled == nil || *v.Enabled
}

// SourceRef returns the source query if set, else the source table.
func (v ValidationSpec) SourceRef() string {
	if v.SourceQuery != "" {
		return v.SourceQuery
	}
	return v.SourceTable
}

// TargetRef returns the target query if set, else the target table.
func (v ValidationSpec) TargetRef() string {
	if v.TargetQuery != "" {
		return v.TargetQuery
	}
	return v.TargetTable
}

// SourceIsQuery reports whether the source reference is a raw query. The
// configuration keeps queries and table identifiers in separate fields, so
// consumers never have to guess from the string.
func (v ValidationSpec) SourceIsQuery() bool {
	return v.SourceQuery != ""
}

// TargetIsQuery reports whether the target reference is a raw query.
func (v ValidationSpec) TargetIsQuery() bool {
	return v.TargetQuery != ""
}

// StringList decodes from either a YAML scalar or a sequence, so configs can
// write `primary_key: id` as well as `primary_key: [id, region]`.
type StringList []string

func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		*s = StringList{single}
		return nil
	}
	var many []string
	if err := node.Decode(&many); err != nil {
		return err
	}
	*s = many
	return nil
}

// DataQualityOptions configures the data_quality kind.
type DataQualityOptions struct {
	CheckColumns []string   `yaml:"check_columns"`
	PrimaryKey   StringList `yaml:"primary_key"`
}

// SchemaOptions configures the schema kind. Differences touching a critical
// column fail the validation; all other differences are reported as warnings.
type SchemaOptions struct {
	CriticalColumns []string `yaml:"critical_columns"`
}

// BusinessRuleOptions configures the business_rule kind.
type BusinessRuleOptions struct {
	RuleType string  `yaml:"rule_type"`
	Epsilon  float64 `yaml:"epsilon"`
}

const (
	RuleAggregation = "aggregation"
	RuleRowByRow    = "row_by_row"
	RuleGeneric     = "generic"

	// DefaultEpsilon bounds floating point aggregate comparison so that
	// representation drift does not produce false failures.
	DefaultEpsilon = 1e-9
)

// NewColumnOptions configures the new_column kind.
type NewColumnOptions struct {
	Columns    []ColumnSpec `yaml:"new_columns"`
	SampleRows int          `yaml:"sample_rows"`
}

// ColumnSpec describes one newly introduced column and the checks that apply
// to it. Checks whose governing field is absent are skipped, not passed.
type ColumnSpec struct {
	Name                   string   `yaml:"name"`
	ExpectedType           string   `yaml:"expected_type"`
	Nullable               *bool    `yaml:"nullable"`
	MaxNullPercent         *float64 `yaml:"max_null_percent"`
	DefaultValue           any      `yaml:"default_value"`
	MinDefaultPercent      *float64 `yaml:"min_default_percent"`
	MinValue               *float64 `yaml:"min_value"`
	MaxValue               *float64 `yaml:"max_value"`
	AllowedValues          []any    `yaml:"allowed_values"`
	Pattern                string   `yaml:"pattern"`
	MinPatternMatchPercent *float64 `yaml:"min_pattern_match_percent"`
	CustomChecks           []string `yaml:"custom_checks"`
	Description            string   `yaml:"description"`

	// Compiled form of Pattern, populated at load time.
	CompiledPattern *regexp.Regexp `yaml:"-"`
}

// IsNullable defaults to true when the field is omitted.
func (c ColumnSpec) IsNullable() bool {
	return c.Nullable == nil || *c.Nullable
}

// ReporterSpec configures one report output.
type ReporterSpec struct {
	Kind       string            `yaml:"type"`
	Enabled    *bool             `yaml:"enabled"`
	OutputPath string            `yaml:"output_path"`
	Params     map[string]string `yaml:"config"`
}

// IsEnabled defaults to true when the field is omitted.
func (r ReporterSpec) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Settings holds run-level execution policy.
type Settings struct {
	ParallelExecution           bool  `yaml:"parallel_execution"`
	MaxWorkers                  int   `yaml:"max_workers"`
	ContinueOnError             *bool `yaml:"continue_on_error"`
	FailFast                    bool  `yaml:"fail_fast"`
	QueryTimeoutSeconds         int   `yaml:"query_timeout_seconds"`
	ConnectionRetryAttempts     int   `yaml:"connection_retry_attempts"`
	ConnectionRetryDelaySeconds int   `yaml:"connection_retry_delay_seconds"`
	RowsPerSecond               int   `yaml:"rows_per_second"`
}

// ContinueOnErr defaults to true when the field is omitted.
func (s Settings) ContinueOnErr() bool {
	return s.ContinueOnError == nil || *s.ContinueOnError
}

// Workers returns the bounded-parallel pool size, defaulting to 4.
func (s Settings) Workers() int {
	if s.MaxWorkers <= 0 {
		return 4
	}
	return s.MaxWorkers
}

// QueryTimeout returns the per-validation timeout, defaulting to 5 minutes.
func (s Settings) QueryTimeout() time.Duration {
	if s.QueryTimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.QueryTimeoutSeconds) * time.Second
}

// RetryAttempts returns the connect retry budget, defaulting to 3.
func (s Settings) RetryAttempts() int {
	if s.ConnectionRetryAttempts <= 0 {
		return 3
	}
	return s.ConnectionRetryAttempts
}

// RetryDelay returns the initial connect retry backoff, defaulting to 5s.
func (s Settings) RetryDelay() time.Duration {
	if s.ConnectionRetryDelaySeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ConnectionRetryDelaySeconds) * time.Second
}
