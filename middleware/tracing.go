package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/conveyor/client"
)

// tracerName is the instrumentation scope name for conveyor tracing.
const tracerName = "github.com/xraph/conveyor"

// Tracing returns middleware that wraps task execution in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a
// pass-through with zero overhead.
//
// Span attributes include: conveyor.activity.name, conveyor.activity.version,
// conveyor.activity.id, conveyor.run_id. On error, the span status is
// set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided
// tracer. This variant allows injecting a specific TracerProvider for
// testing or when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, t *client.ActivityTask, next Handler) (string, error) {
		ctx, span := tracer.Start(ctx, "conveyor.activity.execute",
			trace.WithAttributes(
				attribute.String("conveyor.activity.name", t.ActivityType.Name),
				attribute.String("conveyor.activity.version", t.ActivityType.Version),
				attribute.String("conveyor.activity.id", t.ActivityID),
				attribute.String("conveyor.run_id", t.RunID),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		result, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return result, err
	}
}
