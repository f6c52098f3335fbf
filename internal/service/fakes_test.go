package service_test

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/TripForge/internal/domain/trip"
	"github.com/Strob0t/TripForge/internal/port/llm"
	"github.com/Strob0t/TripForge/internal/port/tracing"
)

// fakeProvider is a deterministic llm.Provider. respond, when set, computes
// the text from the request; otherwise text is returned.
type fakeProvider struct {
	name      string
	text      string
	respond   func(llm.Request) string
	err       error
	delay     time.Duration
	chunkSize int
	failAfter int // stream fails after this many chunks when > 0
	calls     atomic.Int32
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) output(req llm.Request) string {
	if p.respond != nil {
		return p.respond(req)
	}
	return p.text
}

func (p *fakeProvider) wait(ctx context.Context) error {
	if p.delay == 0 {
		return nil
	}
	select {
	case <-time.After(p.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakeProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	p.calls.Add(1)
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	if p.err != nil {
		return "", p.err
	}
	return p.output(req), nil
}

func (p *fakeProvider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	p.calls.Add(1)
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	if p.err != nil && p.failAfter == 0 {
		return nil, p.err
	}
	size := p.chunkSize
	if size < 1 {
		size = 7
	}
	text := p.output(req)
	var chunks []string
	for len(text) > 0 {
		n := min(size, len(text))
		chunks = append(chunks, text[:n])
		text = text[n:]
	}
	return &fakeStream{chunks: chunks, failAfter: p.failAfter, err: p.err}, nil
}

type fakeStream struct {
	chunks    []string
	sent      int
	failAfter int
	err       error
}

func (s *fakeStream) Recv() (string, error) {
	if s.failAfter > 0 && s.sent == s.failAfter {
		return "", s.err
	}
	if s.sent >= len(s.chunks) {
		return "", io.EOF
	}
	c := s.chunks[s.sent]
	s.sent++
	return c, nil
}

func (s *fakeStream) Close() error { return nil }

// fakeAgent is a scripted service.Agent.
type fakeAgent struct {
	name   trip.AgentName
	text   string
	status trip.Status
	sleep  time.Duration // ignores ctx when set
	calls  atomic.Int32
	seen   trip.AgentTask
	mu     sync.Mutex
}

func (a *fakeAgent) Name() trip.AgentName { return a.name }

func (a *fakeAgent) Run(_ context.Context, task trip.AgentTask) trip.AgentResult {
	a.calls.Add(1)
	a.mu.Lock()
	a.seen = task
	a.mu.Unlock()
	if a.sleep > 0 {
		time.Sleep(a.sleep)
	}
	status := a.status
	if status == "" {
		status = trip.StatusOK
	}
	res := trip.AgentResult{Name: a.name, Status: status}
	if status == trip.StatusOK {
		res.Text = a.text
	} else {
		res.ErrorDetail = "scripted failure"
	}
	return res
}

func (a *fakeAgent) task() trip.AgentTask {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seen
}

// recordingSink collects spans.
type recordingSink struct {
	mu    sync.Mutex
	spans []tracing.Span
}

func (s *recordingSink) RecordSpan(_ context.Context, span tracing.Span) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = append(s.spans, span)
}

func (s *recordingSink) byName() map[string]tracing.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]tracing.Span, len(s.spans))
	for _, sp := range s.spans {
		out[sp.Name] = sp
	}
	return out
}

func tokyoRequest() trip.Request {
	return trip.Request{
		Destination: "Tokyo, Japan",
		Duration:    "5 days",
		Budget:      "moderate",
		Interests:   "food, culture",
	}
}
