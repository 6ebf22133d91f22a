package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/sieve/logger"
)

const defaultTracerName = "github.com/kbukum/sieve/observability"

// TracerConfig configures trace export.
type TracerConfig struct {
	Export
	// SampleRate is the fraction of runs traced, 0 to 1.
	SampleRate float64
}

// DefaultTracerConfig traces every run.
func DefaultTracerConfig(exp Export) TracerConfig {
	return TracerConfig{Export: exp, SampleRate: 1.0}
}

// sampler maps a rate onto the SDK samplers; out-of-range rates clamp.
func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// InitTracer installs a batching OTLP/HTTP tracer provider as the global
// one. The caller shuts it down to flush the run's spans.
func InitTracer(ctx context.Context, config *TracerConfig) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.Endpoint)}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	res, err := config.resource()
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(config.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Debug("tracer initialized", logger.Fields(
		"endpoint", config.Endpoint,
		"environment", config.Environment,
		"sample_rate", config.SampleRate,
	))
	return tp, nil
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a span on the package tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer(defaultTracerName).Start(ctx, name, opts...)
}

// SpanFromContext returns the span carried by ctx, a no-op span if none.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// recording returns the span in ctx if it records, nil otherwise.
func recording(ctx context.Context) trace.Span {
	if span := SpanFromContext(ctx); span.IsRecording() {
		return span
	}
	return nil
}

// SetSpanAttribute sets key on the span in ctx. Values of unsupported types
// are dropped.
func SetSpanAttribute(ctx context.Context, key string, value any) {
	span := recording(ctx)
	if span == nil {
		return
	}
	var kv attribute.KeyValue
	switch v := value.(type) {
	case string:
		kv = attribute.String(key, v)
	case int:
		kv = attribute.Int(key, v)
	case int64:
		kv = attribute.Int64(key, v)
	case float64:
		kv = attribute.Float64(key, v)
	case bool:
		kv = attribute.Bool(key, v)
	case []string:
		kv = attribute.StringSlice(key, v)
	default:
		return
	}
	span.SetAttributes(kv)
}

// SetSpanError records err on the span in ctx.
func SetSpanError(ctx context.Context, err error) {
	if span := recording(ctx); span != nil && err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
}

// Span names.
const (
	SpanPipelineRun = "pipeline.run"
)

// Attribute keys.
const (
	AttrRunID        = "sieve.run_id"
	AttrWorkers      = "sieve.workers"
	AttrQueue        = "sieve.queue_capacity"
	AttrTotal        = "sieve.records.total"
	AttrPassed       = "sieve.records.passed"
	AttrFailed       = "sieve.records.failed"
	AttrComplete     = "sieve.complete"
	AttrErrorMessage = "error.message"
)
