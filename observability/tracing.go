package observability

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig controls InitTracer. A zero-value config with
// Endpoint == "" makes InitTracer a no-op returning a shutdown func that
// does nothing,
// so embedding callers (tests, the loopback demo) do not need a collector.
type TracingConfig struct {
	ServiceName string
	Endpoint    string
	Environment string
}

// InitTracer wires up an OTLP/gRPC trace exporter and sets it as the
// global tracer provider, the same shape as the teacher's
// coreengine/observability.InitTracer, generalized to Raceboat's service
// naming. Returns a shutdown function that must be called on termination.
func InitTracer(cfg TracingConfig) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	ctx := context.Background()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: create trace exporter: %w", err)
	}

	env := cfg.Environment
	if env == "" {
		env = "development"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("0.1.0"),
			semconv.DeploymentEnvironment(env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Tracer returns the named tracer from whatever global provider is
// currently installed (a no-op provider until InitTracer succeeds).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// SpanCorrelationIDs reduces ctx's active span context to the 64-bit
// traceId/spanId pair the original RACE wire format carries on every
// encrypted package (include/race/common/EncPkg.h's traceId/spanId
// fields, "for compatibility with RACE"). OTel's 128-bit trace ID is
// truncated to its low 8 bytes; span IDs are already 8 bytes. Returns
// (0, 0) when ctx has no valid span, which callers treat as "no
// correlation available" rather than an error.
func SpanCorrelationIDs(ctx context.Context) (traceId, spanId uint64) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return 0, 0
	}
	tid := sc.TraceID()
	traceId = binary.BigEndian.Uint64(tid[8:16])
	sid := sc.SpanID()
	spanId = binary.BigEndian.Uint64(sid[:])
	return traceId, spanId
}
