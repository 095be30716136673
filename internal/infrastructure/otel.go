package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"basiccleaning/internal/config"
)

const (
	ServiceName    = "basic-cleaning"
	ServiceVersion = "1.0.0"
	MeterName      = "basiccleaning"
)

// RowCounts summarises what one cleaning pass did to the dataset.
type RowCounts struct {
	Read     int
	Written  int
	Dropped  int
	Unparsed int
}

// StepMetrics holds the instruments recorded by a cleaning run
type StepMetrics struct {
	RowsRead      metric.Int64Counter
	RowsWritten   metric.Int64Counter
	RowsDropped   metric.Int64Counter
	DatesUnparsed metric.Int64Counter
	PhaseDuration metric.Float64Histogram
}

// Telemetry bundles the tracer and the metrics registry of one process.
// Metrics are exported through the OpenTelemetry Prometheus bridge into a
// private registry, which is pushed to a Pushgateway at the end of the run.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	registry       *prometheus.Registry
	metrics        *StepMetrics
	pushURL        string
	jobName        string
	logger         *slog.Logger
}

// InitializeTelemetry sets up tracing and metrics from configuration.
// Spans go to stdout when trace_exporter is "stdout".
func InitializeTelemetry(cfg config.TelemetryConfig, logger *slog.Logger) (*Telemetry, error) {
	return NewTelemetry(cfg, os.Stdout, logger)
}

// NewTelemetry is InitializeTelemetry with an explicit span destination.
func NewTelemetry(cfg config.TelemetryConfig, traceOut io.Writer, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = GetLogger()
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	t := &Telemetry{
		registry: prometheus.NewRegistry(),
		pushURL:  cfg.PushgatewayURL,
		jobName:  cfg.JobName,
		logger:   logger,
	}

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		t.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		t.tracer = t.tracerProvider.Tracer(MeterName, trace.WithInstrumentationVersion(ServiceVersion))
	case "none", "":
		t.tracer = noop.NewTracerProvider().Tracer(MeterName)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(t.registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	t.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	t.metrics, err = CreateStepMetrics(t.meterProvider.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion)))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	logger.Debug("Telemetry initialized",
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.Bool("push_enabled", cfg.PushgatewayURL != ""))

	return t, nil
}

// NewNopTelemetry returns telemetry that traces nothing and is never pushed.
func NewNopTelemetry() *Telemetry {
	t, err := NewTelemetry(config.TelemetryConfig{TraceExporter: "none", JobName: "basic_cleaning"}, io.Discard, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		panic(fmt.Sprintf("failed to build no-op telemetry: %v", err))
	}
	return t
}

// CreateStepMetrics creates the cleaning instruments on the given meter
func CreateStepMetrics(meter metric.Meter) (*StepMetrics, error) {
	rowsRead, err := meter.Int64Counter(
		"cleaning_rows_read",
		metric.WithDescription("Rows loaded from the input artifact"),
	)
	if err != nil {
		return nil, err
	}

	rowsWritten, err := meter.Int64Counter(
		"cleaning_rows_written",
		metric.WithDescription("Rows written to the output artifact"),
	)
	if err != nil {
		return nil, err
	}

	rowsDropped, err := meter.Int64Counter(
		"cleaning_rows_dropped",
		metric.WithDescription("Rows dropped by the price range filter"),
	)
	if err != nil {
		return nil, err
	}

	datesUnparsed, err := meter.Int64Counter(
		"cleaning_dates_unparsed",
		metric.WithDescription("Date values that could not be parsed and were nulled"),
	)
	if err != nil {
		return nil, err
	}

	phaseDuration, err := meter.Float64Histogram(
		"cleaning_phase_duration",
		metric.WithDescription("Duration of each cleaning phase"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &StepMetrics{
		RowsRead:      rowsRead,
		RowsWritten:   rowsWritten,
		RowsDropped:   rowsDropped,
		DatesUnparsed: datesUnparsed,
		PhaseDuration: phaseDuration,
	}, nil
}

// StartPhase opens a span for one phase. The returned function ends it,
// marking the span failed when err is non-nil and recording the duration.
func (t *Telemetry) StartPhase(ctx context.Context, phase string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := t.tracer.Start(ctx, "cleaning."+phase, trace.WithAttributes(attribute.String("phase", phase)))

	return ctx, func(err error) {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		t.metrics.PhaseDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(
				attribute.String("phase", phase),
				attribute.String("status", status),
			))
		span.End()
	}
}

// RecordRows adds the row counts of a finished pass to the counters
func (t *Telemetry) RecordRows(ctx context.Context, counts RowCounts) {
	t.metrics.RowsRead.Add(ctx, int64(counts.Read))
	t.metrics.RowsWritten.Add(ctx, int64(counts.Written))
	t.metrics.RowsDropped.Add(ctx, int64(counts.Dropped))
	t.metrics.DatesUnparsed.Add(ctx, int64(counts.Unparsed))
}

// Registry exposes the Prometheus registry backing the metrics
func (t *Telemetry) Registry() *prometheus.Registry {
	return t.registry
}

// Push sends the collected metrics to the configured Pushgateway.
// It is a no-op when no Pushgateway is configured.
func (t *Telemetry) Push(ctx context.Context) error {
	if t.pushURL == "" {
		return nil
	}
	if err := push.New(t.pushURL, t.jobName).Gatherer(t.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", t.pushURL, err)
	}
	t.logger.InfoContext(ctx, "Pushed run metrics",
		slog.String("pushgateway", t.pushURL),
		slog.String("job", t.jobName))
	return nil
}

// Shutdown flushes pending spans and stops the providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}
