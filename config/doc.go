// Package config loads layered configuration with Viper.
//
// Values are read from a config.yml, then from a .env file, then from the
// process environment, each layer overriding the previous one. Fields that
// none of the layers mention keep whatever the target struct held, so
// callers fill defaults first:
//
//	cfg := AppConfig{Pipeline: pipeline.DefaultConfig()}
//	err := config.Load("sieve", &cfg, config.WithEnvPrefix("SIEVE"))
//
// With the SIEVE prefix, SIEVE_PIPELINE_WORKER_COUNT sets
// pipeline.worker_count.
package config
