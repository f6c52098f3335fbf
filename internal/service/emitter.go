package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Strob0t/TripForge/internal/domain"
	"github.com/Strob0t/TripForge/internal/domain/trip"
	"github.com/Strob0t/TripForge/internal/port/llm"
)

// User-facing failure messages. They never include provider endpoints.
const (
	MsgCredit      = "Free tier limit reached. Please wait a few minutes or add credits to your provider account."
	MsgAPIKey      = "Invalid API key. Please check the provider API key configuration."
	MsgTimeout     = "Itinerary generation timed out. Please try again."
	MsgInterrupted = "The itinerary stream was interrupted. Please try again."
	MsgFailed      = "Itinerary generation failed. Please try again."
)

// ErrorMessage maps an orchestration error to a user-facing message.
func ErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrValidation):
		return err.Error()
	case errors.Is(err, domain.ErrStreamInterrupted):
		return MsgInterrupted
	case errors.Is(err, context.DeadlineExceeded):
		return MsgTimeout
	}
	switch llm.KindOf(err) {
	case llm.KindRateLimited:
		return MsgCredit
	case llm.KindAuth:
		return MsgAPIKey
	case llm.KindTimeout:
		return MsgTimeout
	default:
		return MsgFailed
	}
}

// ItineraryStream is a pull-based sequence of itinerary chunks. Next returns
// io.EOF after the last chunk. A failure yields one terminal error chunk,
// after which Next returns io.EOF. Not safe for concurrent use.
type ItineraryStream struct {
	o   *Orchestrator
	ctx context.Context
	req trip.Request
	id  string

	started bool
	done    bool
	err     error
	cancel  context.CancelFunc
	cs      *CompletionStream
	agents  []trip.AgentResult
	call    CallRequest
	start   time.Time
	chunks  int
	text    strings.Builder
}

// ID returns the plan ID.
func (s *ItineraryStream) ID() string { return s.id }

// Err returns the error that terminated the stream, if any.
func (s *ItineraryStream) Err() error { return s.err }

// Agents returns the specialist results; valid after the first Next.
func (s *ItineraryStream) Agents() []trip.AgentResult { return s.agents }

// Itinerary returns the itinerary metadata and the text delivered so far.
func (s *ItineraryStream) Itinerary() *trip.Itinerary {
	it := &trip.Itinerary{
		ID:        s.id,
		Text:      s.text.String(),
		Agents:    s.agents,
		ToolCalls: collectToolCalls(s.agents),
	}
	if s.cs != nil {
		it.Degraded = s.cs.Degraded
		it.Provider = s.cs.Provider
		it.Model = s.cs.Model
	}
	return it
}

// Next returns the next chunk.
func (s *ItineraryStream) Next() (trip.Chunk, error) {
	if s.done {
		return trip.Chunk{}, io.EOF
	}
	if !s.started {
		s.started = true
		if err := s.open(); err != nil {
			return s.fail(err), nil
		}
	}

	text, err := s.cs.Recv()
	if errors.Is(err, io.EOF) {
		s.finish(nil)
		return trip.Chunk{}, io.EOF
	}
	if err != nil {
		return s.fail(err), nil
	}
	s.chunks++
	s.text.WriteString(text)
	return trip.Chunk{Text: text}, nil
}

func (s *ItineraryStream) open() error {
	slog.InfoContext(s.ctx, "plan started", "plan_id", s.id, "destination", s.req.Destination, "streaming", true)

	in, results := s.o.fanOut(s.ctx, s.id, s.req)
	s.agents = results
	s.call = s.o.synthesis.Request(in)

	var sctx context.Context
	sctx, s.cancel = context.WithTimeout(s.ctx, s.o.cfg.SynthesisTimeout)
	s.start = time.Now()

	cs, err := s.o.synthesis.Stream(sctx, s.call)
	if err != nil {
		return err
	}
	s.cs = cs
	return nil
}

func (s *ItineraryStream) fail(err error) trip.Chunk {
	s.err = fmt.Errorf("%w: %w", domain.ErrSynthesisFailed, err)
	s.finish(err)
	slog.ErrorContext(s.ctx, "synthesis stream failed", "plan_id", s.id, "chunks", s.chunks, "error", err)
	return trip.Chunk{Err: ErrorMessage(err)}
}

// finish records the synthesis span and releases resources exactly once.
func (s *ItineraryStream) finish(err error) {
	if s.done {
		return
	}
	s.done = true

	res := trip.AgentResult{Name: trip.AgentSynthesis, Status: trip.StatusOK}
	if s.cs != nil {
		res.Provider, res.Model, res.Degraded = s.cs.Provider, s.cs.Model, s.cs.Degraded
		_ = s.cs.Close()
	}
	if err != nil {
		res = agentResult(s.ctx, trip.AgentSynthesis, Completion{Provider: res.Provider, Model: res.Model}, err, nil)
	}
	if !s.start.IsZero() {
		res.Latency = time.Since(s.start)
	}
	if s.cancel != nil {
		s.cancel()
	}
	attempts := 0
	if s.cs != nil {
		attempts = s.cs.Attempts
	}
	s.o.recordSpan(s.ctx, s.id, res, map[string]string{
		"prompt_tokens": strconv.Itoa(s.o.synthesis.PromptTokens(s.call)),
		"attempts":      strconv.Itoa(attempts),
		"chunks":        strconv.Itoa(s.chunks),
	})
}

// Close stops the stream. A stream closed before completion records its
// synthesis span as failed.
func (s *ItineraryStream) Close() {
	if s.done {
		return
	}
	if !s.started {
		s.done = true
		return
	}
	s.finish(errors.New("stream closed by caller"))
}

// Deliver forwards every chunk of stream to write in order. It stops when
// ctx is done or write fails, for example on client disconnect; upstream
// calls already in flight are not aborted. The stream is closed on return.
func Deliver(ctx context.Context, stream *ItineraryStream, write func(trip.Chunk) error) error {
	defer stream.Close()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := write(chunk); err != nil {
			return err
		}
		if chunk.IsError() {
			return stream.Err()
		}
	}
}
