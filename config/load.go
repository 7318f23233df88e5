package config

import (
	"os"
	"regexp"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/datavet/datavet/check"
)

// envVarPattern matches ${VAR_NAME} and ${VAR_NAME:default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\}`)

// SubstituteEnv resolves ${VAR} and ${VAR:default} references against the
// process environment. An unset variable without a default resolves to the
// empty string.
func SubstituteEnv(in []byte) []byte {
	return envVarPattern.ReplaceAllFunc(in, func(m []byte) []byte {
		groups := envVarPattern.FindSubmatch(m)
		if v, ok := os.LookupEnv(string(groups[1])); ok {
			return []byte(v)
		}
		return groups[2]
	})
}

// Load reads, substitutes and validates a configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "reading configuration file %s", path), ErrConfiguration)
	}
	return Parse(raw)
}

// Parse decodes and validates raw YAML configuration bytes. Environment
// variables are substituted before decoding, so the rest of the engine only
// ever sees resolved values.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(SubstituteEnv(raw), &cfg); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parsing YAML configuration"), ErrConfiguration)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Connections) == 0 {
		return configErrorf("at least one connection is required")
	}
	connNames := make(map[string]struct{}, len(c.Connections))
	for _, conn := range c.Connections {
		if conn.Name == "" {
			return configErrorf("connection name is required")
		}
		if _, dup := connNames[conn.Name]; dup {
			return configErrorf("duplicate connection name %q", conn.Name)
		}
		connNames[conn.Name] = struct{}{}
		if conn.Kind == "" {
			return configErrorf("connection %q: type is required", conn.Name)
		}
	}

	valNames := make(map[string]struct{}, len(c.Validations))
	for i := range c.Validations {
		v := &c.Validations[i]
		if v.Name == "" {
			return configErrorf("validation #%d: name is required", i+1)
		}
		if _, dup := valNames[v.Name]; dup {
			return configErrorf("duplicate validation name %q", v.Name)
		}
		valNames[v.Name] = struct{}{}
		if !validKind(v.Kind) {
			return configErrorf("validation %q: unknown type %q", v.Name, v.Kind)
		}
		for _, ref := range []struct{ side, name string }{
			{"source", v.Source}, {"target", v.Target},
		} {
			if ref.name == "" {
				return configErrorf("validation %q: %s connection is required", v.Name, ref.side)
			}
			if _, ok := connNames[ref.name]; !ok {
				return configErrorf("validation %q: references unknown %s connection %q", v.Name, ref.side, ref.name)
			}
		}
		if err := v.validateRefs(); err != nil {
			return err
		}
		if err := v.decodeMetadata(); err != nil {
			return err
		}
	}
	return nil
}

func (v *ValidationSpec) validateRefs() error {
	if v.Kind == KindBusinessRule {
		if v.SourceQuery == "" || v.TargetQuery == "" {
			return configErrorf("validation %q: business_rule requires source_query and target_query", v.Name)
		}
		return nil
	}
	if v.SourceRef() == "" || v.TargetRef() == "" {
		return configErrorf("validation %q: a query or table reference is required on both sides", v.Name)
	}
	return nil
}

// decodeMetadata converts the free-form metadata mapping into the typed
// option struct for the validation's kind. Unknown or contradictory options
// are configuration errors, surfaced here rather than at check time.
func (v *ValidationSpec) decodeMetadata() error {
	decode := func(into any) error {
		if v.Metadata.IsZero() {
			return nil
		}
		if err := v.Metadata.Decode(into); err != nil {
			return configErrorf("validation %q: invalid metadata: %v", v.Name, err)
		}
		return nil
	}

	switch v.Kind {
	case KindRowCount:
		// Row count has no kind-specific options.
		return nil
	case KindDataQuality:
		v.DataQuality = &DataQualityOptions{}
		return decode(v.DataQuality)
	case KindSchema:
		v.Schema = &SchemaOptions{}
		return decode(v.Schema)
	case KindBusinessRule:
		v.BusinessRule = &BusinessRuleOptions{RuleType: RuleAggregation, Epsilon: DefaultEpsilon}
		if err := decode(v.BusinessRule); err != nil {
			return err
		}
		switch v.BusinessRule.RuleType {
		case RuleAggregation, RuleRowByRow, RuleGeneric:
		default:
			return configErrorf("validation %q: unknown rule_type %q", v.Name, v.BusinessRule.RuleType)
		}
		if v.BusinessRule.Epsilon < 0 {
			return configErrorf("validation %q: epsilon must be >= 0", v.Name)
		}
		return nil
	case KindNewColumn:
		v.NewColumn = &NewColumnOptions{}
		if err := decode(v.NewColumn); err != nil {
			return err
		}
		if len(v.NewColumn.Columns) == 0 {
			return configErrorf("validation %q: new_column requires metadata.new_columns", v.Name)
		}
		for i := range v.NewColumn.Columns {
			if err := v.NewColumn.Columns[i].validate(v.Name); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// knownCustomChecks are the predicates the new-column validator understands
// for check 8. Unknown names are rejected at load time.
var knownCustomChecks = map[string]struct{}{
	"unique":    {},
	"not_blank": {},
}

func (c *ColumnSpec) validate(validation string) error {
	if c.Name == "" {
		return configErrorf("validation %q: new column name is required", validation)
	}
	if c.ExpectedType != "" && check.Normalize(c.ExpectedType) == check.TypeUnknown {
		return configErrorf("validation %q: column %q: unmappable expected_type %q", validation, c.Name, c.ExpectedType)
	}
	if c.MinValue != nil && c.MaxValue != nil && *c.MinValue > *c.MaxValue {
		return configErrorf("validation %q: column %q: min_value exceeds max_value", validation, c.Name)
	}
	if c.MinDefaultPercent != nil && c.DefaultValue == nil {
		return configErrorf("validation %q: column %q: min_default_percent requires default_value", validation, c.Name)
	}
	if c.Pattern != "" {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return configErrorf("validation %q: column %q: invalid pattern: %v", validation, c.Name, err)
		}
		c.CompiledPattern = re
	}
	if c.MinPatternMatchPercent != nil && c.Pattern == "" {
		return configErrorf("validation %q: column %q: min_pattern_match_percent requires pattern", validation, c.Name)
	}
	for _, name := range c.CustomChecks {
		if _, ok := knownCustomChecks[name]; !ok {
			return configErrorf("validation %q: column %q: unknown custom check %q", validation, c.Name, name)
		}
	}
	return nil
}
