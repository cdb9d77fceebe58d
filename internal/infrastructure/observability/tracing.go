package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "jan-server/vision-api"

// GetTracer returns the tracer for the vision-api service.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSessionSpan starts a span for a session lifecycle operation.
func StartSessionSpan(ctx context.Context, operation, sessionID string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "session."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
