// Package telemetry wires up an OpenTelemetry tracer/meter provider
// with stdout exporters. One span is opened per pipeline stage.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	stdoutmetric "go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Providers bundles the tracer and meter providers the pipeline uses.
// Shutdown must be called to flush the stdout exporters.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// Setup installs stdout-backed trace and metric providers, writing
// spans and metrics to w (typically a log file or os.Stdout).
func Setup(w io.Writer) (*Providers, error) {
	traceExp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: new trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp))
	otel.SetTracerProvider(tp)

	metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: new metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))
	otel.SetMeterProvider(mp)

	return &Providers{TracerProvider: tp, MeterProvider: mp}, nil
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown tracer provider: %w", err)
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown meter provider: %w", err)
	}
	return nil
}

// Tracer returns the named tracer for a pipeline stage span.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Meter returns the named meter for pipeline counters/histograms.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// StageSpan starts a span for a pipeline stage.
func StageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return Tracer("replay-core/pipeline").Start(ctx, stage)
}
