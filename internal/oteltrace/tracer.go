// Package oteltrace wraps OpenTelemetry tracing: one span per request
// pipeline attempt (SPEC_FULL.md §4.3), disabled by default.
package oteltrace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Exporter string

const (
	ExporterNone     Exporter = "none"
	ExporterStdout   Exporter = "stdout"
	ExporterOTLPGRPC Exporter = "otlp-grpc"
	ExporterOTLPHTTP Exporter = "otlp-http"
)

type Config struct {
	Enabled      bool
	ServiceName  string
	Exporter     Exporter
	OTLPEndpoint string
	OTLPInsecure bool
}

func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		ServiceName: "atomic-bomb-engine",
		Exporter:    ExporterNone,
	}
}

type Tracer struct {
	provider trace.TracerProvider
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

func New(ctx context.Context, cfg Config) (*Tracer, error) {
	t := &Tracer{}

	if !cfg.Enabled || cfg.Exporter == ExporterNone {
		t.provider = noop.NewTracerProvider()
		t.tracer = t.provider.Tracer(cfg.ServiceName)
		t.shutdown = func(context.Context) error { return nil }
		return t, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("oteltrace: create exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes("", semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("oteltrace: create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	t.provider = tp
	t.tracer = tp.Tracer(cfg.ServiceName)
	t.shutdown = tp.Shutdown
	otel.SetTracerProvider(tp)

	return t, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterOTLPGRPC:
		opts := []otlptracegrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.Exporter)
	}
}

// StartAttempt starts a span for one request-pipeline attempt (SPEC_FULL.md §4.3).
func (t *Tracer) StartAttempt(ctx context.Context, runID, endpointName, method, url string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "request.attempt",
		trace.WithAttributes(
			attribute.String("atomic_bomb.run_id", runID),
			attribute.String("atomic_bomb.endpoint", endpointName),
			attribute.String("http.method", method),
			attribute.String("http.url", url),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.shutdown != nil {
		return t.shutdown(ctx)
	}
	return nil
}

func Noop() *Tracer {
	t, _ := New(context.Background(), DefaultConfig())
	return t
}
