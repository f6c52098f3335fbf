// Package nats publishes completed agent spans to NATS JetStream so other
// services can consume plan telemetry.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/TripForge/internal/port/tracing"
)

// publisher is the subset of jetstream.JetStream used by SpanPublisher.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// SpanPublisher implements tracing.Sink by publishing each span as JSON to
// "<prefix>.<agent>".
type SpanPublisher struct {
	nc     *nats.Conn
	js     publisher
	stream jetstream.JetStream
	prefix string
}

var _ tracing.Sink = (*SpanPublisher)(nil)

// Message is the JSON payload published per span.
type Message struct {
	Name       string            `json:"name"`
	PlanID     string            `json:"plan_id"`
	Status     string            `json:"status"`
	Start      time.Time         `json:"start"`
	LatencyMS  int64             `json:"latency_ms"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Connect establishes a connection to NATS and ensures the JetStream stream
// capturing "<prefix>.>" exists.
func Connect(ctx context.Context, url, stream, prefix string) (*SpanPublisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{prefix + ".>"},
		MaxAge:   24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", stream)
	return &SpanPublisher{nc: nc, js: js, stream: js, prefix: prefix}, nil
}

// JetStream returns the connection's JetStream context for other consumers
// of the same connection, such as the shared search cache.
func (p *SpanPublisher) JetStream() jetstream.JetStream {
	return p.stream
}

// Subject returns the subject a span is published on.
func (p *SpanPublisher) Subject(span tracing.Span) string {
	agent := span.Attributes["agent"]
	if agent == "" {
		agent = span.Name
	}
	return p.prefix + "." + strings.ReplaceAll(agent, ".", "_")
}

// RecordSpan implements tracing.Sink. Publish failures are logged.
func (p *SpanPublisher) RecordSpan(ctx context.Context, span tracing.Span) {
	data, err := json.Marshal(Message{
		Name:       span.Name,
		PlanID:     span.TraceID,
		Status:     span.Status,
		Start:      span.Start,
		LatencyMS:  span.Latency.Milliseconds(),
		Attributes: span.Attributes,
	})
	if err != nil {
		slog.Error("span marshal failed", "span", span.Name, "error", err)
		return
	}

	subject := p.Subject(span)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		slog.Warn("nats span publish failed", "subject", subject, "error", err)
	}
}

// Close shuts down the NATS connection.
func (p *SpanPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}
