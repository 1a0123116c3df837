// Package telemetry wires the engine's event hook (spec.md §6) into
// OpenTelemetry counters and spans. It is off by default: a host database
// that never calls Init observes zero overhead, since every instrument is
// created lazily against the global no-op providers until Init installs
// real ones.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Providers holds the installed SDK providers so callers can flush and
// shut them down cleanly.
type Providers struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// Init installs tracer and meter providers as the OTel globals: spans
// always go to stdout (pretty-printed, for local inspection), while
// metrics go to an OTLP HTTP collector when otlpEndpoint is non-empty and
// fall back to stdout otherwise. Intended for local development and
// demos; a production host would add its own trace exporter here without
// touching the event hook in hook.go.
func Init(otlpEndpoint string) (*Providers, error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("ember: telemetry: stdout trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tp)

	metricReader, err := newMetricReader(otlpEndpoint)
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader))
	otel.SetMeterProvider(mp)

	return &Providers{tracerProvider: tp, meterProvider: mp}, nil
}

func newMetricReader(otlpEndpoint string) (sdkmetric.Reader, error) {
	if otlpEndpoint != "" {
		exporter, err := otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(otlpEndpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("ember: telemetry: otlp metric exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second)), nil
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("ember: telemetry: stdout metric exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second)), nil
}

// Shutdown flushes and stops both providers. Safe to call on a nil
// receiver (Init was never called).
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return err
	}
	return p.meterProvider.Shutdown(ctx)
}

var meter = otel.Meter("github.com/emberdb/ember/engine")

func counter(name, description string) metric.Int64Counter {
	c, _ := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit("{event}"))
	return c
}
