// Package config loads pipeline definitions from YAML: schemas, rules,
// mapping directives, and run options. Compute functions and lookups
// are code, not configuration; the file references them by name and the
// caller supplies the implementations.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fedeglan/fast-data-integrity/pkg/mapping"
	"github.com/fedeglan/fast-data-integrity/pkg/pipeline"
	"github.com/fedeglan/fast-data-integrity/pkg/quality"
	"github.com/fedeglan/fast-data-integrity/pkg/schema"
)

// FieldDef is a schema field as written in the file.
type FieldDef struct {
	Name       string   `mapstructure:"name"`
	Type       string   `mapstructure:"type"`
	Nullable   bool     `mapstructure:"nullable"`
	EnumValues []string `mapstructure:"enum_values"`
}

// RuleDef is a quality rule as written in the file.
type RuleDef struct {
	ID        string   `mapstructure:"id"`
	Kind      string   `mapstructure:"kind"`
	Field     string   `mapstructure:"field"`
	Severity  string   `mapstructure:"severity"`
	Min       float64  `mapstructure:"min"`
	Max       float64  `mapstructure:"max"`
	Pattern   string   `mapstructure:"pattern"`
	Values    []string `mapstructure:"values"`
	Lookup    string   `mapstructure:"lookup"`
	Threshold float64  `mapstructure:"threshold"`
}

// DirectiveDef is a mapping directive as written in the file.
type DirectiveDef struct {
	Target  string   `mapstructure:"target"`
	Kind    string   `mapstructure:"kind"`
	Source  string   `mapstructure:"source"`
	Sources []string `mapstructure:"sources"`
	As      string   `mapstructure:"as"`
	Literal any      `mapstructure:"literal"`
	Compute string   `mapstructure:"compute"`
}

// OptionsDef mirrors pipeline.Options in file form.
type OptionsDef struct {
	Order                string `mapstructure:"order"`
	FatalOnError         bool   `mapstructure:"fatal_on_error"`
	MaxViolationsPerRule int    `mapstructure:"max_violations_per_rule"`
	ChunkSize            int    `mapstructure:"chunk_size"`
}

// File is a parsed pipeline definition.
type File struct {
	SourceSchema []FieldDef     `mapstructure:"source_schema"`
	TargetSchema []FieldDef     `mapstructure:"target_schema"`
	Rules        []RuleDef      `mapstructure:"rules"`
	TargetRules  []RuleDef      `mapstructure:"target_rules"`
	Mapping      []DirectiveDef `mapstructure:"mapping"`
	Options      OptionsDef     `mapstructure:"options"`
}

// Load reads a pipeline definition. Environment variables prefixed
// FDI_ override file values, with dots replaced by underscores, so
// FDI_OPTIONS_CHUNK_SIZE overrides options.chunk_size in deployment
// without editing the file.
func Load(path string) (*File, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FDI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &f, nil
}

// Pipeline assembles a pipeline.Config. computes and lookups resolve
// the names the file references; a referenced name with no
// implementation is a configuration error.
func (f *File) Pipeline(computes map[string]mapping.ComputeFunc, lookups map[string]quality.Lookup) (pipeline.Config, error) {
	var cfg pipeline.Config

	sourceSchema, err := buildSchema(f.SourceSchema)
	if err != nil {
		return cfg, fmt.Errorf("source schema: %w", err)
	}
	cfg.SourceSchema = sourceSchema

	if len(f.TargetSchema) > 0 {
		targetSchema, err := buildSchema(f.TargetSchema)
		if err != nil {
			return cfg, fmt.Errorf("target schema: %w", err)
		}
		cfg.TargetSchema = targetSchema
	}

	if cfg.SourceRules, err = buildRules(f.Rules, lookups); err != nil {
		return cfg, fmt.Errorf("rules: %w", err)
	}
	if cfg.TargetRules, err = buildRules(f.TargetRules, lookups); err != nil {
		return cfg, fmt.Errorf("target rules: %w", err)
	}

	if len(f.Mapping) > 0 {
		directives, err := buildDirectives(f.Mapping, computes)
		if err != nil {
			return cfg, fmt.Errorf("mapping: %w", err)
		}
		spec, err := mapping.NewSpec(cfg.SourceSchema, cfg.TargetSchema, directives)
		if err != nil {
			return cfg, err
		}
		cfg.Mapping = spec
	}

	cfg.Options = pipeline.Options{
		Order:                pipeline.Order(f.Options.Order),
		FatalOnError:         f.Options.FatalOnError,
		MaxViolationsPerRule: f.Options.MaxViolationsPerRule,
		ChunkSize:            f.Options.ChunkSize,
	}
	return cfg, nil
}

func buildSchema(defs []FieldDef) (schema.Schema, error) {
	fields := make([]schema.Field, 0, len(defs))
	for _, def := range defs {
		fields = append(fields, schema.Field{
			Name:       def.Name,
			Type:       schema.FieldType(def.Type),
			Nullable:   def.Nullable,
			EnumValues: def.EnumValues,
		})
	}
	return schema.New(fields)
}

func buildRules(defs []RuleDef, lookups map[string]quality.Lookup) (*quality.RuleSet, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	rs, err := quality.NewRuleSet()
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		rule, err := buildRule(def, lookups)
		if err != nil {
			return nil, err
		}
		if err := rs.Add(rule); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

func buildRule(def RuleDef, lookups map[string]quality.Lookup) (quality.Rule, error) {
	severity := quality.Severity(def.Severity)
	if severity == "" {
		severity = quality.SeverityError
	}
	switch severity {
	case quality.SeverityError, quality.SeverityWarning:
	default:
		return quality.Rule{}, fmt.Errorf("rule %s: unknown severity %q", def.ID, def.Severity)
	}

	switch def.Kind {
	case "not_null":
		return quality.NotNull(def.ID, def.Field, severity), nil
	case "unique":
		return quality.Unique(def.ID, def.Field, severity), nil
	case "range":
		return quality.Range(def.ID, def.Field, def.Min, def.Max, severity), nil
	case "regex_match":
		return quality.RegexMatch(def.ID, def.Field, def.Pattern, severity)
	case "enum_allowed":
		return quality.EnumAllowed(def.ID, def.Field, def.Values, severity), nil
	case "type_conformance":
		return quality.TypeConformance(def.ID, def.Field, severity), nil
	case "no_future_dates":
		return quality.NoFutureDates(def.ID, def.Field, time.Time{}, severity), nil
	case "numeric_anomaly":
		return quality.NumericAnomaly(def.ID, def.Field, def.Threshold, severity), nil
	case "volume_anomaly":
		return quality.VolumeAnomaly(def.ID, def.Field, def.Threshold, severity), nil
	case "benford_deviation":
		return quality.BenfordDeviation(def.ID, def.Field, def.Threshold, severity), nil
	case "referential_exists":
		lookup, ok := lookups[def.Lookup]
		if !ok {
			return quality.Rule{}, fmt.Errorf("rule %s: no lookup registered under %q", def.ID, def.Lookup)
		}
		return quality.ReferentialExists(def.ID, def.Field, lookup, severity), nil
	default:
		return quality.Rule{}, fmt.Errorf("rule %s: unknown kind %q", def.ID, def.Kind)
	}
}

func buildDirectives(defs []DirectiveDef, computes map[string]mapping.ComputeFunc) ([]mapping.Directive, error) {
	directives := make([]mapping.Directive, 0, len(defs))
	for _, def := range defs {
		switch mapping.DirectiveKind(def.Kind) {
		case mapping.KindRename:
			directives = append(directives, mapping.Rename(def.Target, def.Source))
		case mapping.KindCoerce:
			if def.As != "" {
				directives = append(directives, mapping.CoerceAs(def.Target, def.Source, schema.FieldType(def.As)))
			} else {
				directives = append(directives, mapping.Coerce(def.Target, def.Source))
			}
		case mapping.KindCompute:
			fn, ok := computes[def.Compute]
			if !ok {
				return nil, fmt.Errorf("directive %s: no compute function registered under %q", def.Target, def.Compute)
			}
			directives = append(directives, mapping.Compute(def.Target, fn, def.Sources...))
		case mapping.KindDefault:
			directives = append(directives, mapping.Default(def.Target, def.Source, def.Literal))
		case mapping.KindPassThrough:
			directives = append(directives, mapping.PassThrough(def.Target))
		default:
			return nil, fmt.Errorf("directive %s: unknown kind %q", def.Target, def.Kind)
		}
	}
	return directives, nil
}
