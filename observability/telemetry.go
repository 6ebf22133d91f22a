package observability

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// Export names the OTLP collector a run reports to and the service it
// reports as. Traces and metrics share it.
type Export struct {
	Service string
	Version string
	// Environment is one of development, staging or production.
	Environment string
	// Endpoint is the OTLP HTTP host:port, e.g. "localhost:4318".
	Endpoint string
	// Insecure sends plain HTTP.
	Insecure bool
}

// DefaultExport targets a local collector.
func DefaultExport(service string) Export {
	return Export{
		Service:     service,
		Version:     "dev",
		Environment: "development",
		Endpoint:    "localhost:4318",
		Insecure:    true,
	}
}

func (e Export) resource() (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(e.Service),
			semconv.ServiceVersion(e.Version),
			attribute.String("environment", e.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}
	return res, nil
}

// Providers are the tracer and meter providers installed by Init.
type Providers struct {
	Tracer *sdktrace.TracerProvider
	Meter  *sdkmetric.MeterProvider
}

// Init installs a tracer and a meter provider exporting to exp with the
// default sampling and export interval.
func Init(ctx context.Context, exp Export) (*Providers, error) {
	tc := DefaultTracerConfig(exp)
	tp, err := InitTracer(ctx, &tc)
	if err != nil {
		return nil, err
	}
	mc := DefaultMeterConfig(exp)
	mp, err := InitMeter(ctx, &mc)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	return &Providers{Tracer: tp, Meter: mp}, nil
}

// Shutdown flushes and stops both providers, metrics first.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.Meter != nil {
		if err := p.Meter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing metrics: %w", err))
		}
	}
	if p.Tracer != nil {
		if err := p.Tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing traces: %w", err))
		}
	}
	return errors.Join(errs...)
}
