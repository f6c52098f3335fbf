// Package tracesink provides tracing.Sink decorators: fan-out, logging, and
// an asynchronous buffer that keeps exporters off the request path.
package tracesink

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Strob0t/TripForge/internal/port/tracing"
)

// Multi fans a span out to every sink in order.
type Multi []tracing.Sink

// RecordSpan implements tracing.Sink.
func (m Multi) RecordSpan(ctx context.Context, span tracing.Span) {
	for _, s := range m {
		s.RecordSpan(ctx, span)
	}
}

// Log writes every span as a structured log line.
type Log struct {
	Logger *slog.Logger
}

// RecordSpan implements tracing.Sink.
func (l Log) RecordSpan(ctx context.Context, span tracing.Span) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := make([]any, 0, 8+2*len(span.Attributes))
	attrs = append(attrs,
		"span", span.Name,
		"plan_id", span.TraceID,
		"status", span.Status,
		"latency_ms", span.Latency.Milliseconds(),
	)
	for k, v := range span.Attributes {
		attrs = append(attrs, k, v)
	}
	logger.InfoContext(ctx, "span", attrs...)
}

type queued struct {
	ctx  context.Context
	span tracing.Span
}

// Async buffers spans and delivers them to the inner sink from worker
// goroutines. When the buffer is full the span is dropped.
type Async struct {
	inner   tracing.Sink
	ch      chan queued
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewAsync starts workers delivering to inner.
func NewAsync(inner tracing.Sink, buffer, workers int) *Async {
	if buffer < 1 {
		buffer = 1024
	}
	if workers < 1 {
		workers = 1
	}
	a := &Async{inner: inner, ch: make(chan queued, buffer)}
	for range workers {
		a.wg.Add(1)
		go a.run()
	}
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for q := range a.ch {
		a.inner.RecordSpan(q.ctx, q.span)
	}
}

// RecordSpan implements tracing.Sink. It never blocks.
func (a *Async) RecordSpan(ctx context.Context, span tracing.Span) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return
	}
	select {
	case a.ch <- queued{ctx: context.WithoutCancel(ctx), span: span}:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns the number of spans discarded so far.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

// Close drains queued spans and stops the workers. Safe to call more than once.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()
	a.wg.Wait()
	if n := a.dropped.Load(); n > 0 {
		slog.Warn("trace sink dropped spans", "count", n)
	}
}
