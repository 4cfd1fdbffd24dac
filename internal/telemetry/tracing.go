// Package telemetry sets up OpenTelemetry tracing for a run. Stage spans carry
// the trace context into checkpoint notifications, so a subscriber can tie a
// notification back to the run that produced it.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/JakeFAU/sbnation-corpus"

// InitTracerProvider installs the global trace provider and propagator.
// No exporter is configured; spans only feed propagation.
func InitTracerProvider(ctx context.Context, serviceName, runID string, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceInstanceID(runID),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(append([]sdktrace.TracerProviderOption{sdktrace.WithResource(res)}, opts...)...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}

// StartStage opens a span for one pipeline stage. The returned func ends it,
// recording err when non-nil.
func StartStage(ctx context.Context, stage, runID string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "sbcorpus."+stage,
		trace.WithAttributes(
			attribute.String("sbcorpus.stage", stage),
			attribute.String("sbcorpus.run_id", runID),
		),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
