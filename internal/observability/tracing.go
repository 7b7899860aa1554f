// Package observability wires the evaluator's hot path and SETSPEC into
// OpenTelemetry tracing and Prometheus metrics; the script engine's calls
// are not traced.
// The teacher (Sentinel-Gate/Sentinelgate) declares this stack in its
// go.mod but never wires a tracer provider anywhere in its tree; this
// port finishes the wiring the teacher's dependency list promised, scaled
// down to what a single-process evaluator needs. Grounded in style on
// therealutkarshpriyadarshi-containr's pkg/observability/tracing.go
// (TracerProvider construction plus an explicit shutdown function), with
// the semconv resource-attribute dependency dropped since this module
// carries no such import.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ShutdownFunc flushes and stops a provider. Returned by every
// constructor in this package so callers can defer a single cleanup call.
type ShutdownFunc func(context.Context) error

// NewTracerProvider builds a TracerProvider that writes completed spans to
// stdout (the portable choice for a userland harness with no fixed
// collector endpoint -- the real deployment target is a kernel module,
// which has no OTLP exporter to speak of). It installs the provider with
// otel.SetTracerProvider and returns a Tracer from it.
func NewTracerProvider(serviceName string) (trace.Tracer, ShutdownFunc, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, err
	}

	resource := sdkresource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
	)
	otel.SetTracerProvider(tp)

	return tp.Tracer(serviceName), tp.Shutdown, nil
}

// NoopTracer returns a tracer that records nothing, for harness runs
// (and most tests) that don't want stdout span dumps.
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("sandboxd/noop")
}

// NewMeterProvider builds a MeterProvider that periodically writes
// collected instruments to stdout, the metric-side twin of
// NewTracerProvider: the teacher's go.mod declares the full
// go.opentelemetry.io/otel/metric + sdk/metric + exporters/stdout/
// stdoutmetric stack but never constructs a provider anywhere in its
// tree. This finishes that wiring for dev-mode runs that want OTel
// metrics alongside (not instead of) the Prometheus registry server.go
// mounts at /metrics.
func NewMeterProvider(serviceName string) (metric.Meter, ShutdownFunc, error) {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, nil, err
	}

	resource := sdkresource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(time.Minute))),
	)
	otel.SetMeterProvider(mp)

	return mp.Meter(serviceName), mp.Shutdown, nil
}
