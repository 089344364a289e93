package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/zatekoja/erpbridge/backend"

// Metrics holds all engine metrics. A nil *Metrics records nothing.
type Metrics struct {
	CacheHitCount      metric.Int64Counter
	CacheMissCount     metric.Int64Counter
	ERPRequestDuration metric.Float64Histogram
	ERPRetryCount      metric.Int64Counter
	ChunkFailureCount  metric.Int64Counter
}

// Setup initializes OpenTelemetry tracing, metrics and runtime instrumentation
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(15 * time.Second)); err != nil {
		LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to start runtime instrumentation")
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			meterProvider.Shutdown(ctx),
			tracerProvider.Shutdown(ctx),
		)
	}

	return shutdown, nil
}

// InitMetrics initializes engine metrics on the global meter provider
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	cacheHitCount, err := meter.Int64Counter(
		"cache.hit.count",
		metric.WithDescription("Number of entity and availability cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMissCount, err := meter.Int64Counter(
		"cache.miss.count",
		metric.WithDescription("Number of entity and availability cache misses"),
	)
	if err != nil {
		return nil, err
	}

	erpRequestDuration, err := meter.Float64Histogram(
		"erp.request.duration",
		metric.WithDescription("Upstream ERP call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	erpRetryCount, err := meter.Int64Counter(
		"erp.request.retry.count",
		metric.WithDescription("Number of upstream calls replayed after a connection reset"),
	)
	if err != nil {
		return nil, err
	}

	chunkFailureCount, err := meter.Int64Counter(
		"availability.chunk.failure.count",
		metric.WithDescription("Number of availability chunks dropped after an upstream failure"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		CacheHitCount:      cacheHitCount,
		CacheMissCount:     cacheMissCount,
		ERPRequestDuration: erpRequestDuration,
		ERPRetryCount:      erpRetryCount,
		ChunkFailureCount:  chunkFailureCount,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// RecordCacheHit records a cache hit for a cache namespace
func (m *Metrics) RecordCacheHit(ctx context.Context, namespace string) {
	if m == nil {
		return
	}
	m.CacheHitCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.namespace", namespace)))
}

// RecordCacheMiss records a cache miss for a cache namespace
func (m *Metrics) RecordCacheMiss(ctx context.Context, namespace string) {
	if m == nil {
		return
	}
	m.CacheMissCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.namespace", namespace)))
}

// RecordERPRequest records the duration of one upstream call
func (m *Metrics) RecordERPRequest(ctx context.Context, integrationID, method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("erp.integration_id", integrationID),
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}
	m.ERPRequestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordERPRetry records one connection-reset replay
func (m *Metrics) RecordERPRetry(ctx context.Context, integrationID string) {
	if m == nil {
		return
	}
	m.ERPRetryCount.Add(ctx, 1, metric.WithAttributes(attribute.String("erp.integration_id", integrationID)))
}

// RecordChunkFailure records one dropped availability chunk
func (m *Metrics) RecordChunkFailure(ctx context.Context, integrationID string) {
	if m == nil {
		return
	}
	m.ChunkFailureCount.Add(ctx, 1, metric.WithAttributes(attribute.String("erp.integration_id", integrationID)))
}
