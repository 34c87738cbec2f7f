package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans produced by this service.
const TracerName = "ledgerlink-backend"

// SpanOption configures a span at creation time.
type SpanOption func(*spanOptions)

type spanOptions struct {
	attributes []attribute.KeyValue
	kind       trace.SpanKind
}

// WithAttribute adds a string attribute to the span.
func WithAttribute(key, value string) SpanOption {
	return func(o *spanOptions) {
		o.attributes = append(o.attributes, attribute.String(key, value))
	}
}

// WithSpanKind sets the span kind. Defaults to SpanKindInternal.
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(o *spanOptions) {
		o.kind = kind
	}
}

// StartSpan starts a span on the global tracer provider.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	options := &spanOptions{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(options)
	}

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name,
		trace.WithSpanKind(options.kind),
		trace.WithAttributes(options.attributes...),
	)
}

// StartServiceSpan starts a span named "{service}.{method}" for an
// application-layer operation.
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, method), opts...)
}

// SetAttributes sets string attributes on the span from alternating
// key/value pairs. An odd trailing element is ignored.
func SetAttributes(span trace.Span, keyValues ...string) {
	for i := 0; i+1 < len(keyValues); i += 2 {
		span.SetAttributes(attribute.String(keyValues[i], keyValues[i+1]))
	}
}

// RecordError records the error on the span and marks its status.
// A nil error is a no-op.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
