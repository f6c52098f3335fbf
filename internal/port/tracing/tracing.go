// Package tracing defines the port interface for the trace sink that
// receives agent and synthesis spans.
package tracing

import (
	"context"
	"time"
)

// Span is a completed unit of work.
type Span struct {
	Name       string
	TraceID    string // plan ID shared by all spans of one request
	Status     string
	Start      time.Time
	Latency    time.Duration
	Attributes map[string]string
}

// Sink receives spans. RecordSpan must not block the caller for long and
// never reports failure; implementations swallow and log their own errors.
type Sink interface {
	RecordSpan(ctx context.Context, span Span)
}

// Nop discards every span.
type Nop struct{}

// RecordSpan implements Sink.
func (Nop) RecordSpan(context.Context, Span) {}
