package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/felixgeelhaar/hirs-avhrr"

// StartIntervalSpan creates a span for one submitted interval.
//
// Usage:
//
//	ctx, span := telemetry.StartIntervalSpan(ctx, "metop-b", interval.Left, interval.Right)
//	defer span.End()
func StartIntervalSpan(ctx context.Context, satellite string, left, right time.Time) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer(instrumentation)
	return tracer.Start(ctx, "batch.interval", trace.WithAttributes(
		attribute.String("satellite", satellite),
		attribute.String("interval.left", left.UTC().Format(time.RFC3339)),
		attribute.String("interval.right", right.UTC().Format(time.RFC3339)),
	))
}

// StartTaskSpan creates a span for one collocation context.
func StartTaskSpan(ctx context.Context, satellite string, granule time.Time, key string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer(instrumentation)
	return tracer.Start(ctx, "collo.run", trace.WithAttributes(
		attribute.String("satellite", satellite),
		attribute.String("granule", granule.UTC().Format(time.RFC3339)),
		attribute.String("context", key),
	))
}

// StartSubprocessSpan creates a span for one run of the collocation
// executable.
func StartSubprocessSpan(ctx context.Context, executable string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer(instrumentation)
	return tracer.Start(ctx, "collo.subprocess", trace.WithAttributes(
		attribute.String("executable", executable),
	))
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records err on span and sets error status. A nil err is a
// no-op.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, firstLine(err.Error()))
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
