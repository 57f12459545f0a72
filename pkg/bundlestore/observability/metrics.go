package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records bundle store metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordSave records a Save call with its payload size and outcome.
	RecordSave(ctx context.Context, formatTag string, sizeBytes int64, duration time.Duration, err error)

	// RecordLoad records a Load call.
	RecordLoad(ctx context.Context, duration time.Duration, err error)

	// RecordRemove records a Remove call. noop is true when nothing existed.
	RecordRemove(ctx context.Context, archiveOnly, noop bool)

	// RecordCatalogError records a failed catalog update.
	RecordCatalogError(ctx context.Context, op string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	saves         metric.Int64Counter
	saveErrors    metric.Int64Counter
	saveLatency   metric.Float64Histogram
	artifactSize  metric.Int64Histogram
	loads         metric.Int64Counter
	loadErrors    metric.Int64Counter
	loadLatency   metric.Float64Histogram
	removals      metric.Int64Counter
	catalogErrors metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("bundlestore")
	m := &otelMetrics{}
	var err error

	if m.saves, err = meter.Int64Counter("bundlestore.save.count",
		metric.WithDescription("Number of bundle versions saved"),
	); err != nil {
		return nil, err
	}
	if m.saveErrors, err = meter.Int64Counter("bundlestore.save.errors",
		metric.WithDescription("Number of failed saves"),
	); err != nil {
		return nil, err
	}
	if m.saveLatency, err = meter.Float64Histogram("bundlestore.save.latency_ms",
		metric.WithDescription("Save latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.artifactSize, err = meter.Int64Histogram("bundlestore.artifact.size_bytes",
		metric.WithDescription("Serialized artifact size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.loads, err = meter.Int64Counter("bundlestore.load.count",
		metric.WithDescription("Number of bundle loads"),
	); err != nil {
		return nil, err
	}
	if m.loadErrors, err = meter.Int64Counter("bundlestore.load.errors",
		metric.WithDescription("Number of failed loads"),
	); err != nil {
		return nil, err
	}
	if m.loadLatency, err = meter.Float64Histogram("bundlestore.load.latency_ms",
		metric.WithDescription("Load latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.removals, err = meter.Int64Counter("bundlestore.remove.count",
		metric.WithDescription("Number of removals"),
	); err != nil {
		return nil, err
	}
	if m.catalogErrors, err = meter.Int64Counter("bundlestore.catalog.errors",
		metric.WithDescription("Number of failed catalog updates"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordSave records a save.
func (m *otelMetrics) RecordSave(ctx context.Context, formatTag string, sizeBytes int64, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("format_tag", formatTag))
	m.saves.Add(ctx, 1, attrs)
	m.saveLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.saveErrors.Add(ctx, 1, attrs)
		return
	}
	m.artifactSize.Record(ctx, sizeBytes, attrs)
}

// RecordLoad records a load.
func (m *otelMetrics) RecordLoad(ctx context.Context, duration time.Duration, err error) {
	m.loads.Add(ctx, 1)
	m.loadLatency.Record(ctx, float64(duration.Microseconds())/1000)
	if err != nil {
		m.loadErrors.Add(ctx, 1)
	}
}

// RecordRemove records a removal.
func (m *otelMetrics) RecordRemove(ctx context.Context, archiveOnly, noop bool) {
	m.removals.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("archive_only", archiveOnly),
		attribute.Bool("noop", noop),
	))
}

// RecordCatalogError records a catalog failure.
func (m *otelMetrics) RecordCatalogError(ctx context.Context, op string) {
	m.catalogErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}
