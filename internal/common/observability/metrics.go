package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"

	"pcbuild-service/internal/common/logger"
)

// Observability owns the OpenTelemetry meter and tracer providers.
type Observability struct {
	meterProvider      *metric.MeterProvider
	tracing            *Tracing
	tracer             trace.Tracer
	jobCounter         otelmetric.Int64Counter
	jobDuration        otelmetric.Float64Histogram
	negotiationCounter otelmetric.Int64Counter
	negotiationTime    otelmetric.Float64Histogram
}

// New registers the Prometheus-backed meter provider globally. A failure to
// build the exporter leaves a no-op Observability.
func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err.Error()})
		return &Observability{tracer: otel.Tracer(serviceName)}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	negotiationCounter, _ := meter.Int64Counter(
		"negotiations.finished",
		otelmetric.WithDescription("Number of finished negotiations"),
	)
	negotiationTime, _ := meter.Float64Histogram(
		"negotiations.duration",
		otelmetric.WithDescription("Negotiation wall time"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:      provider,
		tracer:             otel.Tracer(serviceName),
		jobCounter:         jobCounter,
		jobDuration:        jobDuration,
		negotiationCounter: negotiationCounter,
		negotiationTime:    negotiationTime,
	}
}

// AttachTracing hands tracer provider shutdown to Shutdown.
func (o *Observability) AttachTracing(t *Tracing) {
	o.tracing = t
}

// StartSpan starts a span on the service tracer.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer("pcbuild-service")
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
			attribute.String("status", status),
		))
	}
}

// RecordNegotiation records one finished negotiation with its final outcome.
func (o *Observability) RecordNegotiation(ctx context.Context, outcome string, attempts int, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("attempts", attempts),
	)
	if o.negotiationCounter != nil {
		o.negotiationCounter.Add(ctx, 1, attrs)
	}
	if o.negotiationTime != nil {
		o.negotiationTime.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracing != nil {
		_ = o.tracing.Shutdown(ctx)
	}
}
