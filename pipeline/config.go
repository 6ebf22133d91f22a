package pipeline

import (
	"runtime"
	"time"

	"github.com/kbukum/sieve/validation"
)

// RejectPolicy decides what a run reports when every record was rejected
// and the rejects were not written anywhere.
type RejectPolicy string

const (
	// RejectIgnore accepts the run silently.
	RejectIgnore RejectPolicy = "ignore"
	// RejectWarn logs a warning and adds it to Summary.Warnings.
	RejectWarn RejectPolicy = "warn"
	// RejectFail returns an ALL_REJECTED error with the complete summary.
	RejectFail RejectPolicy = "fail"
)

// Config is the pipeline configuration surface.
type Config struct {
	// WorkerCount is the number of parallel workers.
	WorkerCount int `mapstructure:"worker_count" yaml:"worker_count" json:"worker_count" validate:"gt=0"`
	// QueueCapacity bounds both the work and the result queue.
	QueueCapacity int `mapstructure:"queue_capacity" yaml:"queue_capacity" json:"queue_capacity" validate:"gt=0"`
	// WriteFailOutput routes rejected input to the fail sink.
	WriteFailOutput bool `mapstructure:"write_fail_output" yaml:"write_fail_output" json:"write_fail_output"`
	// ProgressGranularity is the fraction of ExpectedTotal between progress
	// updates.
	ProgressGranularity float64 `mapstructure:"progress_granularity" yaml:"progress_granularity" json:"progress_granularity" validate:"gt=0,lte=1"`
	// ExpectedTotal is the approximate record count, 0 when unknown.
	ExpectedTotal int `mapstructure:"expected_total" yaml:"expected_total" json:"expected_total" validate:"gte=0"`
	RejectPolicy  RejectPolicy `mapstructure:"reject_policy" yaml:"reject_policy" json:"reject_policy" validate:"oneof=ignore warn fail"`
	// MaxRetries is the number of extra attempts for retryable transform
	// errors.
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries" validate:"gte=0"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff" json:"retry_backoff" validate:"gte=0"`
	// RateLimit caps items per second across all workers, 0 for no limit.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit" validate:"gte=0"`
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() Config {
	cfg := Config{WriteFailOutput: true}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values. WriteFailOutput is left alone since
// false is meaningful; start from DefaultConfig to get it enabled.
func (c *Config) ApplyDefaults() {
	if c.WorkerCount == 0 {
		c.WorkerCount = runtime.NumCPU()
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = 2 * c.WorkerCount
	}
	if c.ProgressGranularity == 0 {
		c.ProgressGranularity = 0.1
	}
	if c.RejectPolicy == "" {
		c.RejectPolicy = RejectWarn
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
}

// Validate checks the config.
func (c *Config) Validate() error {
	return validation.Struct(c)
}
