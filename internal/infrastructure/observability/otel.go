package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
)

const instrumentationName = "github.com/sociodent/sociodent/backend"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount      metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	AssignmentCount   metric.Int64Counter
	CandidateCount    metric.Int64Histogram
	StaleWriteCount   metric.Int64Counter
	CacheHitCount     metric.Int64Counter
	CacheMissCount    metric.Int64Counter
	NotificationCount metric.Int64Counter
}

// Setup initializes OpenTelemetry trace, metric and log providers plus Go
// runtime metrics. The returned function flushes and stops all of them.
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
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	logExporter, err := otlploggrpc.New(ctx,
		otlploggrpc.WithEndpoint(endpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
		return nil, err
	}
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(loggerProvider)

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		return nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
			loggerProvider.Shutdown(ctx),
		)
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics against the global meter provider.
// Without Setup these are no-op instruments.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	requestCount, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	assignmentCount, err := meter.Int64Counter(
		"matcher.assignment.count",
		metric.WithDescription("Assignment attempts by mode and outcome"),
	)
	if err != nil {
		return nil, err
	}

	candidateCount, err := meter.Int64Histogram(
		"matcher.candidate.count",
		metric.WithDescription("Eligible doctors found per assignment attempt"),
	)
	if err != nil {
		return nil, err
	}

	staleWriteCount, err := meter.Int64Counter(
		"matcher.stale_write.count",
		metric.WithDescription("Assignments rejected by a concurrent write"),
	)
	if err != nil {
		return nil, err
	}

	cacheHitCount, err := meter.Int64Counter(
		"cache.hit.count",
		metric.WithDescription("Number of cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMissCount, err := meter.Int64Counter(
		"cache.miss.count",
		metric.WithDescription("Number of cache misses"),
	)
	if err != nil {
		return nil, err
	}

	notificationCount, err := meter.Int64Counter(
		"notification.sent.count",
		metric.WithDescription("Notifications sent by event type and result"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCount:      requestCount,
		RequestDuration:   requestDuration,
		AssignmentCount:   assignmentCount,
		CandidateCount:    candidateCount,
		StaleWriteCount:   staleWriteCount,
		CacheHitCount:     cacheHitCount,
		CacheMissCount:    cacheMissCount,
		NotificationCount: notificationCount,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordRequestMetric records an HTTP request
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	metrics.RequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordAssignment records one assignment attempt. mode is auto, manual or
// reassign; outcome is assigned, no_candidates or the error type.
func RecordAssignment(ctx context.Context, metrics *Metrics, mode, outcome string, candidates int) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("assignment.mode", mode),
		attribute.String("assignment.outcome", outcome),
	)
	metrics.AssignmentCount.Add(ctx, 1, attrs)
	if candidates >= 0 {
		metrics.CandidateCount.Record(ctx, int64(candidates), metric.WithAttributes(attribute.String("assignment.mode", mode)))
	}
}

// RecordStaleWrite records a lost conditional update
func RecordStaleWrite(ctx context.Context, metrics *Metrics, mode string) {
	if metrics == nil {
		return
	}
	metrics.StaleWriteCount.Add(ctx, 1, metric.WithAttributes(attribute.String("assignment.mode", mode)))
}

// RecordCacheHit records a cache hit
func RecordCacheHit(ctx context.Context, metrics *Metrics, key string) {
	if metrics == nil {
		return
	}
	metrics.CacheHitCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.key", key)))
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(ctx context.Context, metrics *Metrics, key string) {
	if metrics == nil {
		return
	}
	metrics.CacheMissCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.key", key)))
}

// RecordNotification records a notification delivery attempt
func RecordNotification(ctx context.Context, metrics *Metrics, eventType string, success bool) {
	if metrics == nil {
		return
	}
	metrics.NotificationCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event.type", eventType),
		attribute.Bool("success", success),
	))
}

// EmitAuditRecord ships an audit entry as an OpenTelemetry log record so the
// trail is also visible in the log backend.
func EmitAuditRecord(ctx context.Context, entry *entities.AuditEntry) {
	logger := global.GetLoggerProvider().Logger(instrumentationName)

	var rec otellog.Record
	rec.SetTimestamp(entry.CreatedAt)
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("appointment " + string(entry.Action)))
	rec.AddAttributes(
		otellog.String("audit.id", entry.ID),
		otellog.String("appointment.id", entry.AppointmentID),
		otellog.String("doctor.previous", entry.PreviousDoctorID),
		otellog.String("doctor.new", entry.NewDoctorID),
		otellog.String("actor", entry.Actor),
		otellog.String("reason", entry.Reason),
		otellog.Bool("forced", entry.Forced),
	)
	logger.Emit(ctx, rec)
}
