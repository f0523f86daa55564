package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/uplink-foundation/uplink"
)

// tracerName is the instrumentation scope name for uplink tracing.
const tracerName = "github.com/uplink-foundation/uplink"

// Tracing returns middleware that wraps delegate execution in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a
// pass-through with zero overhead.
//
// Span attributes include: uplink.job.id and uplink.job.name. On a
// non-OK outcome the span status is set to codes.Error with the status
// string.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided
// tracer. This variant allows injecting a specific TracerProvider for
// testing or when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, info Info, next Handler) uplink.Status {
		ctx, span := tracer.Start(ctx, "uplink.delegate.execute",
			trace.WithAttributes(
				attribute.String("uplink.job.id", info.JobID.String()),
				attribute.String("uplink.job.name", info.Name),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		st := next(ctx)
		if st.IsOK() {
			span.SetStatus(codes.Ok, "")
		} else {
			span.RecordError(st.Err())
			span.SetStatus(codes.Error, st.String())
		}

		return st
	}
}
