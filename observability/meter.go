package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/sieve/logger"
)

// MeterConfig configures metric export.
type MeterConfig struct {
	Export
	// Interval is the periodic export interval. Shutdown flushes whatever a
	// short run recorded since the last export.
	Interval time.Duration
}

// DefaultMeterConfig exports every 15 seconds.
func DefaultMeterConfig(exp Export) MeterConfig {
	return MeterConfig{Export: exp, Interval: 15 * time.Second}
}

// InitMeter installs a periodic OTLP/HTTP meter provider as the global one.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(config.Endpoint)}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	res, err := config.resource()
	if err != nil {
		return nil, err
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Debug("meter initialized", logger.Fields(
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metric names.
const (
	MetricRecords      = "sieve.records"
	MetricItems        = "sieve.items"
	MetricAborts       = "sieve.aborts"
	MetricItemDuration = "sieve.item.duration"
)

// Outcome attribute values on MetricRecords and MetricItems.
const (
	OutcomePassed = "passed"
	OutcomeFailed = "failed"
)

// PipelineMetrics holds the instruments recorded during pipeline runs.
// It satisfies pipeline.Recorder.
type PipelineMetrics struct {
	records      metric.Int64Counter
	items        metric.Int64Counter
	aborts       metric.Int64Counter
	itemDuration metric.Float64Histogram
}

// NewPipelineMetrics creates the pipeline instruments on the given meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	records, err := meter.Int64Counter(MetricRecords,
		metric.WithDescription("Records processed, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRecords, err)
	}

	items, err := meter.Int64Counter(MetricItems,
		metric.WithDescription("Work items processed, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricItems, err)
	}

	aborts, err := meter.Int64Counter(MetricAborts,
		metric.WithDescription("Aborted runs by originating stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricAborts, err)
	}

	itemDuration, err := meter.Float64Histogram(MetricItemDuration,
		metric.WithDescription("Time spent filtering and processing one work item"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricItemDuration, err)
	}

	return &PipelineMetrics{
		records:      records,
		items:        items,
		aborts:       aborts,
		itemDuration: itemDuration,
	}, nil
}

// RecordItem records one processed work item holding records records.
func (m *PipelineMetrics) RecordItem(ctx context.Context, valid bool, records int, elapsed time.Duration) {
	outcome := OutcomeFailed
	if valid {
		outcome = OutcomePassed
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.items.Add(ctx, 1, attrs)
	m.records.Add(ctx, int64(records), attrs)
	m.itemDuration.Record(ctx, elapsed.Seconds())
}

// RecordAbort records a run aborted by the given stage.
func (m *PipelineMetrics) RecordAbort(ctx context.Context, stage string) {
	if stage == "" {
		stage = "unknown"
	}
	m.aborts.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}
