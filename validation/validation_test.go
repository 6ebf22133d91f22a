package validation

import (
	"strings"
	"testing"

	"github.com/kbukum/sieve/errors"
)

type sampleConfig struct {
	WorkerCount int     `mapstructure:"worker_count" validate:"gt=0"`
	Granularity float64 `mapstructure:"progress_granularity" validate:"gt=0,lte=1"`
	Policy      string  `mapstructure:"reject_policy" validate:"oneof=ignore warn fail"`
	Name        string  `yaml:"name" validate:"required"`
	NoTag       string  `validate:"required"`
}

func validSample() sampleConfig {
	return sampleConfig{WorkerCount: 2, Granularity: 0.5, Policy: "warn", Name: "x", NoTag: "y"}
}

func TestStructValid(t *testing.T) {
	if err := Struct(validSample()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestStructInvalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *sampleConfig)
		wantMsg string
	}{
		{"worker count zero", func(c *sampleConfig) { c.WorkerCount = 0 }, "worker_count: must be greater than 0"},
		{"granularity above one", func(c *sampleConfig) { c.Granularity = 1.5 }, "progress_granularity: must be at most 1"},
		{"unknown policy", func(c *sampleConfig) { c.Policy = "panic" }, "reject_policy: must be one of: ignore warn fail"},
		{"yaml tag name", func(c *sampleConfig) { c.Name = "" }, "name: is required"},
		{"snake case fallback", func(c *sampleConfig) { c.NoTag = "" }, "no_tag: is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validSample()
			tc.mutate(&cfg)
			err := Struct(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("expected error containing %q, got %q", tc.wantMsg, err.Error())
			}
			if errors.Code(err) != errors.ErrCodeInvalidConfig {
				t.Errorf("expected INVALID_CONFIG, got %s", errors.Code(err))
			}
		})
	}
}

func TestStructCollectsAllFields(t *testing.T) {
	err := Struct(sampleConfig{})
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok {
		t.Fatalf("expected []FieldError details, got %T", appErr.Details["fields"])
	}
	if len(fields) != 5 {
		t.Errorf("expected 5 field errors, got %d: %v", len(fields), fields)
	}
}

func TestToSnakeCase(t *testing.T) {
	if got := toSnakeCase("QueueCapacity"); got != "queue_capacity" {
		t.Errorf("got %q", got)
	}
}
