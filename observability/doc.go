// Package observability provides OpenTelemetry tracing and metrics for
// pipeline runs.
//
//	exp := observability.DefaultExport("sieve")
//	exp.Endpoint = "otel-collector:4318"
//	providers, err := observability.Init(ctx, exp)
//	defer providers.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun)
//	defer span.End()
//
//	metrics, err := observability.NewPipelineMetrics(observability.Meter("sieve"))
//	p, err := pipeline.New(stages, cfg, pipeline.WithRecorder(metrics))
package observability
