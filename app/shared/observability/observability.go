// Package observability builds the logger, metrics registry and tracer
// shared by every module.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Black-And-White-Club/taco-rank/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Observability bundles the process-wide telemetry handles.
type Observability struct {
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Tracer   trace.Tracer

	shutdown func(context.Context) error
}

// New builds the telemetry handles from cfg. When cfg names a trace endpoint,
// spans are batched to it over OTLP and the provider becomes the otel global;
// otherwise the tracer is a no-op.
func New(ctx context.Context, cfg config.ObservabilityConfig) (Observability, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	obs := Observability{
		Logger:   NewLogger(cfg),
		Registry: registry,
		Tracer:   noop.NewTracerProvider().Tracer(cfg.ServiceName),
		shutdown: func(context.Context) error { return nil },
	}

	if cfg.TraceEndpoint() == "" {
		return obs, nil
	}

	exporter, err := newTraceExporter(ctx, cfg)
	if err != nil {
		return Observability{}, err
	}
	tp, err := NewTracerProvider(ctx, cfg, exporter)
	if err != nil {
		return Observability{}, err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	obs.Tracer = tp.Tracer(cfg.ServiceName)
	obs.shutdown = tp.Shutdown
	obs.Logger.Info("Tracing enabled",
		slog.String("endpoint", cfg.TraceEndpoint()),
		slog.String("transport", cfg.OTLPTransport),
		slog.Float64("sample_rate", cfg.TempoSampleRate),
	)
	return obs, nil
}

// Shutdown flushes pending spans and stops the exporter.
func (o Observability) Shutdown(ctx context.Context) error {
	if o.shutdown == nil {
		return nil
	}
	return o.shutdown(ctx)
}

// NewTracerProvider returns a batching tracer provider that samples
// cfg.TempoSampleRate of new traces and follows the parent decision otherwise.
func NewTracerProvider(ctx context.Context, cfg config.ObservabilityConfig, exporter sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.TempoSampleRate))),
	), nil
}

func newTraceExporter(ctx context.Context, cfg config.ObservabilityConfig) (sdktrace.SpanExporter, error) {
	endpoint := cfg.TraceEndpoint()

	switch cfg.OTLPTransport {
	case "", "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.TempoInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp grpc exporter: %w", err)
		}
		return exporter, nil
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.TempoInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp http exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unsupported otlp transport %q", cfg.OTLPTransport)
	}
}

// NewLogger returns a slog logger for the configured level and format,
// tagged with the service name and environment.
func NewLogger(cfg config.ObservabilityConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
	)
}

// ParseLevel maps a level name to a slog.Level. Unknown names yield info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
