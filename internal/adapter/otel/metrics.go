package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Strob0t/TripForge/internal/port/tracing"
)

const meterName = "tripforge"

// Metrics holds the agent metric instruments. It is fed from completed
// spans so it plugs into the trace sink fan-out.
type Metrics struct {
	AgentRuns     metric.Int64Counter
	AgentDegraded metric.Int64Counter
	AgentDuration metric.Float64Histogram
}

var _ tracing.Sink = (*Metrics)(nil)

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter(meterName))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.AgentRuns, err = meter.Int64Counter("tripforge.agent.runs",
		metric.WithDescription("Number of agent runs by agent and status"))
	if err != nil {
		return nil, err
	}

	m.AgentDegraded, err = meter.Int64Counter("tripforge.agent.degraded",
		metric.WithDescription("Number of agent runs served by offline fallback"))
	if err != nil {
		return nil, err
	}

	m.AgentDuration, err = meter.Float64Histogram("tripforge.agent.duration_seconds",
		metric.WithDescription("Agent run duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordSpan implements tracing.Sink.
func (m *Metrics) RecordSpan(ctx context.Context, span tracing.Span) {
	attrs := metric.WithAttributes(
		attribute.String("agent", span.Attributes["agent"]),
		attribute.String("status", span.Status),
	)
	m.AgentRuns.Add(ctx, 1, attrs)
	m.AgentDuration.Record(ctx, span.Latency.Seconds(), attrs)
	if span.Attributes["degraded"] == "true" {
		m.AgentDegraded.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", span.Attributes["agent"])))
	}
}
