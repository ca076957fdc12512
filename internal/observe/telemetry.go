package observe

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TelemetryConfig selects what [Setup] installs.
type TelemetryConfig struct {
	ServiceName    string // default "wavscribe"
	ServiceVersion string

	// DisableMetrics leaves the meter provider without a reader; instruments
	// accept recordings and drop them.
	DisableMetrics bool

	// Registerer receives the Prometheus collector. Nil means
	// prometheus.DefaultRegisterer, which promhttp.Handler serves.
	Registerer prometheus.Registerer

	// SpanExporter receives finished spans in batches. Nil records spans
	// without exporting them.
	SpanExporter sdktrace.SpanExporter
}

// Telemetry owns the SDK providers installed by [Setup].
type Telemetry struct {
	meters  *sdkmetric.MeterProvider
	tracers *sdktrace.TracerProvider
}

// Setup builds the meter and tracer providers, installs them as the otel
// globals together with the W3C trace-context propagator, and returns them
// for shutdown.
func Setup(cfg TelemetryConfig) (*Telemetry, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "wavscribe"
	}
	// Schemaless so the merge cannot conflict with the SDK's own semconv
	// schema URL.
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, err
	}

	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if !cfg.DisableMetrics {
		var expOpts []promexporter.Option
		if cfg.Registerer != nil {
			expOpts = append(expOpts, promexporter.WithRegisterer(cfg.Registerer))
		}
		exp, err := promexporter.New(expOpts...)
		if err != nil {
			return nil, err
		}
		meterOpts = append(meterOpts, sdkmetric.WithReader(exp))
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.SpanExporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(cfg.SpanExporter))
	}

	t := &Telemetry{
		meters:  sdkmetric.NewMeterProvider(meterOpts...),
		tracers: sdktrace.NewTracerProvider(traceOpts...),
	}
	otel.SetMeterProvider(t.meters)
	otel.SetTracerProvider(t.tracers)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return t, nil
}

// MeterProvider returns the installed meter provider.
func (t *Telemetry) MeterProvider() metric.MeterProvider { return t.meters }

// Shutdown flushes pending spans and metrics.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.tracers.Shutdown(ctx), t.meters.Shutdown(ctx))
}
