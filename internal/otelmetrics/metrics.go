// Package otelmetrics wraps OpenTelemetry metrics for the load generator.
//
// Disabled by default: DefaultConfig (and Noop, which the orchestrator
// uses when no WithMetrics option is given) builds a meter provider with
// no exporter, so every Record* call below exports nothing. This
// mirrors the upstream mcpdrill otel wrapper's own disabled-by-default
// posture, so enabling export never changes core statistics, only adds an
// observation of them.
package otelmetrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Exporter selects the metrics exporter backend.
type Exporter string

const (
	ExporterNone     Exporter = "none"
	ExporterStdout   Exporter = "stdout"
	ExporterOTLPGRPC Exporter = "otlp-grpc"
	ExporterOTLPHTTP Exporter = "otlp-http"
)

// Config configures the metrics wrapper.
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

// Metrics holds the three instruments this system exports: a request
// latency histogram, an error counter, and an active-worker gauge. These
// observe the same events the spec's own histogram/counters observe
// (§4.3/§4.4 of SPEC_FULL.md) — they never replace them.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
	shutdown func(context.Context) error

	requestLatency metric.Float64Histogram
	errorCounter   metric.Int64Counter
	activeWorkers  metric.Int64UpDownCounter
}

func New(ctx context.Context, cfg Config) (*Metrics, error) {
	m := &Metrics{}

	if !cfg.Enabled || cfg.Exporter == ExporterNone {
		m.provider = sdkmetric.NewMeterProvider()
		m.meter = m.provider.Meter(cfg.ServiceName)
		m.shutdown = func(context.Context) error { return nil }
		return m, m.registerInstruments()
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("otelmetrics: create exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes("", semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("otelmetrics: create resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	m.provider = mp
	m.meter = mp.Meter(cfg.ServiceName)
	m.shutdown = mp.Shutdown

	return m, m.registerInstruments()
}

func newExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		return stdoutmetric.New()
	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.Exporter)
	}
}

func (m *Metrics) registerInstruments() error {
	var err error

	m.requestLatency, err = m.meter.Float64Histogram(
		"atomic_bomb.request.latency",
		metric.WithDescription("Latency of HTTP requests issued by the load generator"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("otelmetrics: request latency histogram: %w", err)
	}

	m.errorCounter, err = m.meter.Int64Counter(
		"atomic_bomb.errors",
		metric.WithDescription("Count of transport/HTTP/assertion errors by endpoint"),
	)
	if err != nil {
		return fmt.Errorf("otelmetrics: error counter: %w", err)
	}

	m.activeWorkers, err = m.meter.Int64UpDownCounter(
		"atomic_bomb.workers.active",
		metric.WithDescription("Number of worker goroutines currently pumping requests"),
	)
	if err != nil {
		return fmt.Errorf("otelmetrics: active workers counter: %w", err)
	}

	return nil
}

// RecordLatency records one request attempt's latency against an endpoint.
func (m *Metrics) RecordLatency(ctx context.Context, endpoint string, latencyMs float64, success bool) {
	if m.requestLatency == nil {
		return
	}
	m.requestLatency.Record(ctx, latencyMs, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.Bool("success", success),
	))
}

// RecordError increments the error counter for an endpoint/category pair.
func (m *Metrics) RecordError(ctx context.Context, endpoint, category string) {
	if m.errorCounter == nil {
		return
	}
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("category", category),
	))
}

func (m *Metrics) WorkerStarted(ctx context.Context) {
	if m.activeWorkers == nil {
		return
	}
	m.activeWorkers.Add(ctx, 1)
}

func (m *Metrics) WorkerStopped(ctx context.Context) {
	if m.activeWorkers == nil {
		return
	}
	m.activeWorkers.Add(ctx, -1)
}

func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.shutdown != nil {
		return m.shutdown(ctx)
	}
	return nil
}

// Noop returns a Metrics instance that discards everything, for tests and
// for the default no-flags-set CLI path.
func Noop() *Metrics {
	m, _ := New(context.Background(), DefaultConfig())
	return m
}
