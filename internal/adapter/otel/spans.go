package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Strob0t/TripForge/internal/port/tracing"
)

const tracerName = "tripforge"

// StartPlanSpan starts the root span of a plan run outside an HTTP request.
// The plan ID is attached with SetPlanID once it is known.
func StartPlanSpan(ctx context.Context, destination string, streaming bool) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "plan",
		trace.WithAttributes(
			attribute.String("plan.destination", destination),
			attribute.Bool("plan.streaming", streaming),
		),
	)
}

// SetPlanID tags span with the plan ID shared by its agent spans.
func SetPlanID(span trace.Span, planID string) {
	span.SetAttributes(attribute.String("plan.id", planID))
}

// SpanSink exports completed agent spans. Spans arrive after the work has
// finished, so start and end timestamps are set explicitly.
type SpanSink struct {
	tracer trace.Tracer
}

var _ tracing.Sink = (*SpanSink)(nil)

// NewSpanSink creates a sink on tracer, or on the global provider when nil.
func NewSpanSink(tracer trace.Tracer) *SpanSink {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &SpanSink{tracer: tracer}
}

// RecordSpan implements tracing.Sink.
func (s *SpanSink) RecordSpan(ctx context.Context, span tracing.Span) {
	attrs := make([]attribute.KeyValue, 0, len(span.Attributes)+2)
	attrs = append(attrs,
		attribute.String("plan.id", span.TraceID),
		attribute.String("span.status", span.Status),
	)
	for k, v := range span.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	_, sp := s.tracer.Start(ctx, span.Name,
		trace.WithTimestamp(span.Start),
		trace.WithAttributes(attrs...),
	)
	if span.Status != "ok" {
		sp.SetStatus(codes.Error, span.Status)
	} else {
		sp.SetStatus(codes.Ok, "")
	}
	sp.End(trace.WithTimestamp(span.Start.Add(span.Latency)))
}
