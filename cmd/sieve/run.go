package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kbukum/sieve/codec"
	apperrors "github.com/kbukum/sieve/errors"
	"github.com/kbukum/sieve/logger"
	"github.com/kbukum/sieve/observability"
	"github.com/kbukum/sieve/pipeline"
	"github.com/kbukum/sieve/rules"
	"github.com/kbukum/sieve/sink"
	"github.com/kbukum/sieve/source"
	"github.com/kbukum/sieve/version"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline over input files",
		Example: `  sieve run -i 'data/**/*.jsonl.gz' --group-by '$.order_id' \
      --require '$.sku' --require '$.qty[?@ > 0]' \
      --pass out/valid.jsonl --fail out/invalid.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPipeline(ctx, s, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringArrayP("input", "i", nil, "input file glob, repeatable (** matches any depth); - reads stdin and needs --format")
	f.String("format", "", "input format: jsonl, csv, msgpack (default: from extension)")
	f.String("compression", "", "input compression: none, gzip, zstd (default: from extension)")
	f.String("group-by", "", "JSONPath selecting the group key (default: one group per record)")
	f.StringArray("require", nil, "JSONPath every record of a group must match, repeatable")
	f.Int("max-group-size", 0, "reject groups with more records than this (0: no limit)")
	f.StringP("pass", "p", "", "pass output file")
	f.StringP("fail", "f", "", "fail output file (default: rejected records are only counted)")
	f.String("output-format", "", "output format (default: from pass file extension)")
	f.String("output-compression", "", "output compression (default: from extension)")
	f.Int("workers", 0, "number of workers (default: number of CPUs)")
	f.Int("queue", 0, "queue capacity (default: twice the workers)")
	f.Bool("no-fail-output", false, "do not write rejected records")
	f.Float64("progress", 0, "progress granularity as a fraction of --expected-total (default 0.1)")
	f.Int("expected-total", 0, "approximate number of input records, for progress")
	f.String("reject-policy", "", "when every record is rejected and not written: ignore, warn, fail")
	f.Int("max-retries", 0, "retries for transient processing errors")
	f.Duration("retry-backoff", 0, "initial retry backoff")
	f.Float64("rate-limit", 0, "maximum groups per second across workers (0: unlimited)")
	f.StringP("config", "c", "", "config file (default: config.yml in standard locations)")
	f.String("env-file", "", ".env file")
	f.String("summary", "", "summary output format: json, yaml")
	f.String("otlp-endpoint", "", "OTLP HTTP endpoint (host:port) for traces and metrics")
	f.Bool("otlp-insecure", true, "use plain HTTP for OTLP")
	f.String("log-level", "", "log level")
	f.String("log-format", "", "log format: console, json")
	f.Bool("debug", false, "debug logging")
	return cmd
}

func runPipeline(ctx context.Context, s Settings, stdin io.Reader, stdout, stderr io.Writer) error {
	log := logger.NewWithWriter(&s.Logging, s.Name, logOutput(s.Logging.Output, stdout, stderr))
	logger.SetGlobalLogger(log)

	opts := []pipeline.Option{pipeline.WithLogger(log)}
	if s.Telemetry.Endpoint != "" {
		recorder, shutdown, err := initTelemetry(ctx, s)
		if err != nil {
			return err
		}
		defer shutdown()
		opts = append(opts, pipeline.WithRecorder(recorder))
	}

	inFormat, err := parseFormat(s.Input.Format)
	if err != nil {
		return err
	}
	inCompression, err := parseCompression(s.Input.Compression)
	if err != nil {
		return err
	}
	var src pipeline.Iterator[codec.Record]
	if s.Input.Stdin() {
		src, err = source.Reader(stdin, inFormat, inCompression)
		if err != nil {
			return apperrors.SourceError(err)
		}
		log.Info("reading stdin", logger.Fields("format", string(inFormat)))
	} else {
		files, ferr := source.Files(s.Input.Patterns, source.Options{Format: inFormat, Compression: inCompression, Logger: log})
		if ferr != nil {
			return ferr
		}
		log.Info("inputs resolved", logger.Fields("files", len(files.Paths())))
		src = files
	}

	outFormat, err := parseFormat(s.Output.Format)
	if err != nil {
		return err
	}
	outCompression, err := parseCompression(s.Output.Compression)
	if err != nil {
		return err
	}
	sinkOpts := sink.FileOptions{Format: outFormat, Compression: outCompression}

	rs, err := rules.Compile(s.Rules.Require...)
	if err != nil {
		return err
	}

	var summary *pipeline.Summary
	if s.Rules.GroupBy != "" {
		group, gerr := rules.GroupBy(s.Rules.GroupBy)
		if gerr != nil {
			return gerr
		}
		summary, err = runStages(ctx, s, pipeline.Stages[string, codec.Record, codec.Record]{
			Source:  src,
			Group:   group,
			Filter:  rules.MaxGroupSize[string, codec.Record](s.Rules.MaxGroupSize),
			Process: rules.Process[string](rs),
		}, sinkOpts, opts)
	} else {
		summary, err = runStages(ctx, s, pipeline.Stages[int, codec.Record, codec.Record]{
			Source:  src,
			Key:     pipeline.IndexKey[codec.Record](),
			Process: rules.Process[int](rs),
		}, sinkOpts, opts)
	}

	if summary != nil {
		if werr := writeSummary(stdout, s.Output.Summary, summary); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func runStages[K comparable](ctx context.Context, s Settings, stages pipeline.Stages[K, codec.Record, codec.Record], sinkOpts sink.FileOptions, opts []pipeline.Option) (*pipeline.Summary, error) {
	stages.PassSink = sink.FileOpener(s.Output.Pass, sinkOpts)
	if s.Output.Fail != "" {
		stages.FailSink = sink.FileOpener(s.Output.Fail, sinkOpts)
	}
	return pipeline.Run(ctx, stages, s.Pipeline, opts...)
}

func parseFormat(name string) (codec.Format, error) {
	if name == "" {
		return "", nil
	}
	return codec.ParseFormat(name)
}

// parseCompression leaves an empty name empty so it is inferred per file.
func parseCompression(name string) (codec.Compression, error) {
	if name == "" {
		return "", nil
	}
	return codec.ParseCompression(name)
}

func initTelemetry(ctx context.Context, s Settings) (pipeline.Recorder, func(), error) {
	exp := observability.DefaultExport(s.Name)
	exp.Version = version.Short()
	exp.Environment = s.Environment
	exp.Endpoint = s.Telemetry.Endpoint
	exp.Insecure = s.Telemetry.Insecure

	providers, err := observability.Init(ctx, exp)
	if err != nil {
		return nil, nil, err
	}
	metrics, err := observability.NewPipelineMetrics(providers.Meter.Meter(serviceName))
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func() {
		// The run context may already be cancelled; flushing gets its own.
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(flushCtx); err != nil {
			logger.Warn("flushing telemetry", logger.ErrorFields("shutdown", err))
		}
	}
	return metrics, shutdown, nil
}

func writeSummary(w io.Writer, format string, summary *pipeline.Summary) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(summary); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	default:
		return fmt.Errorf("unknown summary format %q", format)
	}
}

func logOutput(output string, stdout, stderr io.Writer) io.Writer {
	if output == "stdout" {
		return stdout
	}
	return stderr
}
