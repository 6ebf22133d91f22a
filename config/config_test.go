package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBaseConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := BaseConfig{Name: "sieve"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected log level info, got %q", cfg.Logging.Level)
		}
	})

	t.Run("debug lowers the log level", func(t *testing.T) {
		cfg := BaseConfig{Name: "sieve", Debug: true}
		cfg.ApplyDefaults()
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected log level debug, got %q", cfg.Logging.Level)
		}
	})

	t.Run("explicit level wins over debug", func(t *testing.T) {
		cfg := BaseConfig{Name: "sieve", Debug: true}
		cfg.Logging.Level = "warn"
		cfg.ApplyDefaults()
		if cfg.Logging.Level != "warn" {
			t.Errorf("expected log level warn, got %q", cfg.Logging.Level)
		}
	})
}

func TestBaseConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     BaseConfig
		wantErr bool
		errMsg  string
	}{
		{"valid development", BaseConfig{Name: "svc", Environment: "development"}, false, ""},
		{"valid staging", BaseConfig{Name: "svc", Environment: "staging"}, false, ""},
		{"valid production", BaseConfig{Name: "svc", Environment: "production"}, false, ""},
		{"missing name", BaseConfig{Environment: "production"}, true, "name: is required"},
		{"invalid environment", BaseConfig{Name: "svc", Environment: "invalid"}, true, "environment: must be one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBaseConfigValidateLogging(t *testing.T) {
	cfg := BaseConfig{Name: "svc"}
	cfg.ApplyDefaults()
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "logging:") {
		t.Errorf("expected logging error, got %v", err)
	}
}

type pipelineSection struct {
	WorkerCount  int           `mapstructure:"worker_count"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	Progress     float64       `mapstructure:"progress_granularity"`
}

type testConfig struct {
	BaseConfig `mapstructure:",squash"`
	Pipeline   pipelineSection `mapstructure:"pipeline"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadWithYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yml", `
name: sieve
environment: staging
pipeline:
  worker_count: 4
  retry_backoff: 250ms
`)

	cfg := testConfig{Pipeline: pipelineSection{Progress: 0.1}}
	if err := Load("sieve", &cfg, WithConfigFile(path), WithEnvPrefix("SIEVE_TEST_NONE")); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Name != "sieve" || cfg.Environment != "staging" {
		t.Errorf("unexpected base config: %+v", cfg.BaseConfig)
	}
	if cfg.Pipeline.WorkerCount != 4 {
		t.Errorf("expected worker_count 4, got %d", cfg.Pipeline.WorkerCount)
	}
	if cfg.Pipeline.RetryBackoff != 250*time.Millisecond {
		t.Errorf("expected retry_backoff 250ms, got %v", cfg.Pipeline.RetryBackoff)
	}
	if cfg.Pipeline.Progress != 0.1 {
		t.Errorf("expected untouched default 0.1, got %v", cfg.Pipeline.Progress)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yml", `
name: sieve
pipeline:
  worker_count: 4
`)
	t.Setenv("SIEVECFG_PIPELINE_WORKER_COUNT", "9")
	t.Setenv("SIEVECFG_ENVIRONMENT", "production")

	var cfg testConfig
	if err := Load("sieve", &cfg, WithConfigFile(path), WithEnvPrefix("SIEVECFG")); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pipeline.WorkerCount != 9 {
		t.Errorf("expected env to override worker_count, got %d", cfg.Pipeline.WorkerCount)
	}
	if cfg.Environment != "production" {
		t.Errorf("expected environment from env, got %q", cfg.Environment)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "SIEVEDOT_PIPELINE_WORKER_COUNT=3\n")
	t.Cleanup(func() { os.Unsetenv("SIEVEDOT_PIPELINE_WORKER_COUNT") })

	var cfg testConfig
	if err := Load("sieve", &cfg,
		WithConfigFile(filepath.Join(dir, "absent.yml")),
		WithEnvFile(envPath),
		WithEnvPrefix("SIEVEDOT"),
	); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pipeline.WorkerCount != 3 {
		t.Errorf("expected worker_count from .env, got %d", cfg.Pipeline.WorkerCount)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg testConfig
	err := Load("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml"), WithEnvPrefix("SIEVE_TEST_NONE"))
	if err != nil {
		t.Fatalf("expected Load to succeed with missing file, got %v", err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yml", "pipeline: [unclosed\n")
	var cfg testConfig
	if err := Load("sieve", &cfg, WithConfigFile(path)); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/sieve/config.yml": true,
		"./config/.env":          true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("sieve", LoaderConfig{})
	if files.ConfigFile != "./cmd/sieve/config.yml" {
		t.Errorf("expected config file at ./cmd/sieve/config.yml, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./config/.env" {
		t.Errorf("expected env file at ./config/.env, got %q", files.EnvFile)
	}
}

func TestResolverExplicitPaths(t *testing.T) {
	resolver := &Resolver{FileSystem: &mockFS{}}
	files := resolver.ResolveFiles("sieve", LoaderConfig{ConfigFile: "a.yml", EnvFile: "b.env"})
	if files.ConfigFile != "a.yml" || files.EnvFile != "b.env" {
		t.Errorf("expected explicit paths, got %+v", files)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool  { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }

func TestGenerateEnvKeyVariants(t *testing.T) {
	variants := generateEnvKeyVariants("PIPELINE_WORKER_COUNT")
	want := map[string]bool{
		"pipeline_worker_count": false,
		"pipeline.worker.count": false,
		"pipeline.worker_count": false,
	}
	for _, v := range variants {
		if _, ok := want[v]; ok {
			want[v] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("expected variant %q in %v", k, variants)
		}
	}
}

func TestOptions(t *testing.T) {
	var lc LoaderConfig
	WithFileSystem(&mockFS{})(&lc)
	WithConfigFile("/path/to/config.yml")(&lc)
	WithEnvFile("/path/to/.env")(&lc)
	WithEnvPrefix("sieve_")(&lc)

	if lc.FileSystem == nil {
		t.Error("expected FileSystem to be set")
	}
	if lc.ConfigFile != "/path/to/config.yml" || lc.EnvFile != "/path/to/.env" {
		t.Errorf("unexpected paths: %+v", lc)
	}
	if lc.EnvPrefix != "SIEVE" {
		t.Errorf("expected prefix SIEVE, got %q", lc.EnvPrefix)
	}
}
