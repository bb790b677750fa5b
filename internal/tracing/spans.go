package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartToolCheckSpan creates a client span for one tool health check.
func StartToolCheckSpan(ctx context.Context, url string, attempt int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "toolcheck.check",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("toolcheck.url", url),
			attribute.Int("toolcheck.attempt", attempt),
		),
	)
}

// StartJobSpan creates a span for a background job such as bot log pruning
// or seeding.
func StartJobSpan(ctx context.Context, job string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "job."+job,
		trace.WithAttributes(attribute.String("job.name", job)),
	)
}

// InjectHeaders injects the current trace context (traceparent, tracestate)
// into the request headers so the callee can continue the trace.
func InjectHeaders(ctx context.Context, req *http.Request) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
}

// SetStatusCode records an HTTP response status on the current span.
func SetStatusCode(ctx context.Context, statusCode int) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", statusCode))
}

// RecordError records err on the current span and marks it failed.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
