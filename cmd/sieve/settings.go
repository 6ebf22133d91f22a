package main

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"

	"github.com/kbukum/sieve/codec"
	"github.com/kbukum/sieve/config"
	apperrors "github.com/kbukum/sieve/errors"
	"github.com/kbukum/sieve/pipeline"
	"github.com/kbukum/sieve/validation"
)

const serviceName = "sieve"

// Settings is everything a run needs. Precedence, highest first: flags,
// SIEVE_* environment variables, the config file, defaults.
type Settings struct {
	config.BaseConfig `yaml:",inline" mapstructure:",squash"`

	Pipeline  pipeline.Config   `yaml:"pipeline" mapstructure:"pipeline"`
	Input     InputSettings     `yaml:"input" mapstructure:"input"`
	Output    OutputSettings    `yaml:"output" mapstructure:"output"`
	Rules     RuleSettings      `yaml:"rules" mapstructure:"rules"`
	Telemetry TelemetrySettings `yaml:"telemetry" mapstructure:"telemetry"`
}

// stdinInput as the only input pattern reads records from stdin.
const stdinInput = "-"

type InputSettings struct {
	Patterns    []string `yaml:"patterns" mapstructure:"patterns" validate:"required,min=1"`
	Format      string   `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=jsonl json ndjson csv msgpack mpk"`
	Compression string   `yaml:"compression" mapstructure:"compression" validate:"omitempty,oneof=none gzip gz zstd zst"`
}

type OutputSettings struct {
	Pass        string `yaml:"pass" mapstructure:"pass" validate:"required"`
	Fail        string `yaml:"fail" mapstructure:"fail"`
	Format      string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=jsonl json ndjson csv msgpack mpk"`
	Compression string `yaml:"compression" mapstructure:"compression" validate:"omitempty,oneof=none gzip gz zstd zst"`
	Summary     string `yaml:"summary" mapstructure:"summary" validate:"oneof=json yaml"`
}

// Stdin reports whether records come from stdin instead of files.
func (i InputSettings) Stdin() bool {
	return len(i.Patterns) == 1 && i.Patterns[0] == stdinInput
}

// RuleSettings select the grouping and the group assertions. Without
// GroupBy every record is its own group.
type RuleSettings struct {
	GroupBy      string   `yaml:"group_by" mapstructure:"group_by"`
	Require      []string `yaml:"require" mapstructure:"require"`
	MaxGroupSize int      `yaml:"max_group_size" mapstructure:"max_group_size" validate:"gte=0"`
}

// TelemetrySettings enable OTLP export when Endpoint is set.
type TelemetrySettings struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure bool   `yaml:"insecure" mapstructure:"insecure"`
}

func defaultSettings() Settings {
	return Settings{
		BaseConfig: config.BaseConfig{Name: serviceName},
		Pipeline:   pipeline.Config{WriteFailOutput: true},
		Output:     OutputSettings{Summary: "json"},
		Telemetry:  TelemetrySettings{Insecure: true},
	}
}

// ApplyDefaults fills whatever the layers left empty.
func (s *Settings) ApplyDefaults() {
	s.BaseConfig.ApplyDefaults()
	s.Pipeline.ApplyDefaults()
	if s.Name == "" {
		s.Name = serviceName
	}
	if s.Output.Summary == "" {
		s.Output.Summary = "json"
	}
}

func (s *Settings) Validate() error {
	if err := validation.Struct(s); err != nil {
		return err
	}
	if err := s.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := s.Input.validate(); err != nil {
		return err
	}
	return s.Output.validate()
}

func (i InputSettings) validate() error {
	if slices.Contains(i.Patterns, stdinInput) {
		if len(i.Patterns) > 1 {
			return apperrors.InvalidConfig("input", "stdin cannot be combined with other inputs")
		}
		if i.Format == "" {
			return apperrors.InvalidConfig("format", "an input format is required when reading stdin")
		}
	}
	return nil
}

// validate checks up front that the output format can be inferred, so a
// bad extension fails before any input is read.
func (o OutputSettings) validate() error {
	if o.Format != "" {
		return nil
	}
	for _, out := range []struct{ field, path string }{{"pass", o.Pass}, {"fail", o.Fail}} {
		if out.path == "" {
			continue
		}
		if _, err := codec.FormatFromPath(out.path); err != nil {
			return apperrors.InvalidConfig(out.field, err.Error()+"; set output-format")
		}
	}
	return nil
}

// loadSettings layers defaults, the config file, the environment and
// finally the flags the user actually set.
func loadSettings(flags *pflag.FlagSet) (Settings, error) {
	s := defaultSettings()

	var opts []config.LoaderOption
	opts = append(opts, config.WithEnvPrefix("SIEVE"))
	if path, _ := flags.GetString("config"); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	if path, _ := flags.GetString("env-file"); path != "" {
		opts = append(opts, config.WithEnvFile(path))
	}
	if err := config.Load(serviceName, &s, opts...); err != nil {
		return s, err
	}

	if err := applyFlags(flags, &s); err != nil {
		return s, err
	}
	s.ApplyDefaults()
	return s, s.Validate()
}

// applyFlags copies changed flags over the loaded settings.
func applyFlags(flags *pflag.FlagSet, s *Settings) error {
	var err error
	set := func(name string, apply func() error) {
		if err == nil && flags.Changed(name) {
			err = apply()
		}
	}
	str := func(name string, dst *string) {
		set(name, func() (e error) { *dst, e = flags.GetString(name); return })
	}
	strs := func(name string, dst *[]string) {
		set(name, func() (e error) { *dst, e = flags.GetStringArray(name); return })
	}
	integer := func(name string, dst *int) {
		set(name, func() (e error) { *dst, e = flags.GetInt(name); return })
	}

	strs("input", &s.Input.Patterns)
	str("format", &s.Input.Format)
	str("compression", &s.Input.Compression)
	str("pass", &s.Output.Pass)
	str("fail", &s.Output.Fail)
	str("output-format", &s.Output.Format)
	str("output-compression", &s.Output.Compression)
	str("summary", &s.Output.Summary)
	str("group-by", &s.Rules.GroupBy)
	strs("require", &s.Rules.Require)
	integer("max-group-size", &s.Rules.MaxGroupSize)
	integer("workers", &s.Pipeline.WorkerCount)
	integer("queue", &s.Pipeline.QueueCapacity)
	integer("expected-total", &s.Pipeline.ExpectedTotal)
	integer("max-retries", &s.Pipeline.MaxRetries)
	set("no-fail-output", func() error {
		off, e := flags.GetBool("no-fail-output")
		s.Pipeline.WriteFailOutput = !off
		return e
	})
	set("progress", func() (e error) { s.Pipeline.ProgressGranularity, e = flags.GetFloat64("progress"); return })
	set("rate-limit", func() (e error) { s.Pipeline.RateLimit, e = flags.GetFloat64("rate-limit"); return })
	set("retry-backoff", func() (e error) { s.Pipeline.RetryBackoff, e = flags.GetDuration("retry-backoff"); return })
	set("reject-policy", func() error {
		v, e := flags.GetString("reject-policy")
		s.Pipeline.RejectPolicy = pipeline.RejectPolicy(v)
		return e
	})
	str("otlp-endpoint", &s.Telemetry.Endpoint)
	set("otlp-insecure", func() (e error) { s.Telemetry.Insecure, e = flags.GetBool("otlp-insecure"); return })
	str("log-level", &s.Logging.Level)
	str("log-format", &s.Logging.Format)
	set("debug", func() (e error) { s.Debug, e = flags.GetBool("debug"); return })
	return err
}
