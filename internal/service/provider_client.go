package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/Strob0t/TripForge/internal/domain"
	"github.com/Strob0t/TripForge/internal/limiter"
	"github.com/Strob0t/TripForge/internal/port/llm"
	"github.com/Strob0t/TripForge/internal/resilience"
)

// ChainEntry is one position of the fallback chain: a provider bound to a
// model, guarded by its own circuit breaker.
type ChainEntry struct {
	Provider llm.Provider
	Model    string
	Breaker  *resilience.Breaker
}

// CallRequest is one prompt sent through the chain. Offline is the
// deterministic text returned when the chain is empty.
type CallRequest struct {
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature float64
	Offline     string
}

// Completion is the result of a buffered call.
type Completion struct {
	Text     string
	Provider string
	Model    string
	Degraded bool
	Attempts int
}

// ProviderClient walks an ordered fallback chain, trying each entry exactly
// once. It holds no per-request state.
type ProviderClient struct {
	chain []ChainEntry
	pool  *limiter.Pool
}

// NewProviderClient creates a client over chain. A nil pool leaves outbound
// calls unbounded. An empty chain puts the client in degraded mode.
func NewProviderClient(chain []ChainEntry, pool *limiter.Pool) *ProviderClient {
	return &ProviderClient{chain: chain, pool: pool}
}

// Degraded reports whether the client has no configured providers and
// serves offline text only.
func (c *ProviderClient) Degraded() bool {
	return len(c.chain) == 0
}

// ChainLen returns the number of chain entries.
func (c *ProviderClient) ChainLen() int {
	return len(c.chain)
}

// Complete returns the first successful completion in chain order. The
// returned error wraps domain.ErrNoProviders and the last entry failure, or
// the context error when the caller's deadline ends the walk early.
func (c *ProviderClient) Complete(ctx context.Context, req CallRequest) (Completion, error) {
	if c.Degraded() {
		return Completion{Text: req.Offline, Degraded: true}, nil
	}

	var lastErr error
	attempts := 0
	for _, entry := range c.chain {
		if err := ctx.Err(); err != nil {
			return Completion{Attempts: attempts}, err
		}
		attempts++

		text, err := c.completeEntry(ctx, entry, req)
		if err == nil {
			return Completion{
				Text:     text,
				Provider: entry.Provider.Name(),
				Model:    entry.Model,
				Attempts: attempts,
			}, nil
		}
		lastErr = err
		c.logAttempt(ctx, entry, err)
	}

	if err := ctx.Err(); err != nil {
		return Completion{Attempts: attempts}, err
	}
	return Completion{Attempts: attempts}, fmt.Errorf("%w: %w", domain.ErrNoProviders, lastErr)
}

func (c *ProviderClient) completeEntry(ctx context.Context, entry ChainEntry, req CallRequest) (string, error) {
	var text string
	err := c.pool.Run(ctx, func() error {
		if err := entry.Breaker.Allow(); err != nil {
			return llm.Classify(entry.Provider.Name(), entry.Model, 0, err)
		}
		var err error
		text, err = entry.Provider.Complete(ctx, llmRequest(entry, req))
		if err == nil && strings.TrimSpace(text) == "" {
			err = llm.Classify(entry.Provider.Name(), entry.Model, 0, llm.ErrEmptyResponse)
		}
		record(ctx, entry, err)
		return err
	})
	return text, err
}

// Stream opens a token stream on the first entry that yields a chunk. An
// entry that fails before its first chunk falls through to the next; once a
// chunk has been received the stream is committed to that provider and later
// failures surface as domain.ErrStreamInterrupted. Partial output is never
// joined with another provider's.
func (c *ProviderClient) Stream(ctx context.Context, req CallRequest) (*CompletionStream, error) {
	if c.Degraded() {
		return &CompletionStream{Degraded: true, pending: req.Offline, release: func() {}}, nil
	}

	var lastErr error
	attempts := 0
	for _, entry := range c.chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempts++

		s, err := c.openEntry(ctx, entry, req)
		if err == nil {
			s.Attempts = attempts
			return s, nil
		}
		lastErr = err
		c.logAttempt(ctx, entry, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrNoProviders, lastErr)
}

func (c *ProviderClient) openEntry(ctx context.Context, entry ChainEntry, req CallRequest) (*CompletionStream, error) {
	release, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	if err := entry.Breaker.Allow(); err != nil {
		release()
		return nil, llm.Classify(entry.Provider.Name(), entry.Model, 0, err)
	}

	inner, err := entry.Provider.Stream(ctx, llmRequest(entry, req))
	if err != nil {
		record(ctx, entry, err)
		release()
		return nil, err
	}

	first, err := firstChunk(inner)
	if errors.Is(err, io.EOF) {
		err = llm.Classify(entry.Provider.Name(), entry.Model, 0, llm.ErrEmptyResponse)
	}
	if err != nil {
		record(ctx, entry, err)
		_ = inner.Close()
		release()
		return nil, err
	}
	entry.Breaker.Record(nil)

	return &CompletionStream{
		Provider: entry.Provider.Name(),
		Model:    entry.Model,
		inner:    inner,
		pending:  first,
		release:  release,
	}, nil
}

// firstChunk reads until a chunk with visible text arrives and returns it
// with any blank chunks before it. A stream that ends with blank output only
// returns io.EOF.
func firstChunk(inner llm.Stream) (string, error) {
	var lead strings.Builder
	for {
		text, err := inner.Recv()
		if err != nil {
			return "", err
		}
		lead.WriteString(text)
		if strings.TrimSpace(text) != "" {
			return lead.String(), nil
		}
	}
}

// record reports a call outcome to the entry's breaker. Errors caused by the
// caller's own context ending are not provider failures.
func record(ctx context.Context, entry ChainEntry, err error) {
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		entry.Breaker.Cancel()
		return
	}
	entry.Breaker.Record(err)
}

func (c *ProviderClient) logAttempt(ctx context.Context, entry ChainEntry, err error) {
	slog.WarnContext(ctx, "provider attempt failed",
		"provider", entry.Provider.Name(),
		"model", entry.Model,
		"kind", llm.KindOf(err),
		"error", err,
	)
}

func llmRequest(entry ChainEntry, req CallRequest) llm.Request {
	return llm.Request{
		System:      req.System,
		Prompt:      req.Prompt,
		Model:       entry.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}

// CompletionStream is a committed token stream. Recv returns io.EOF after
// the last chunk. Close must be called to release the outbound slot.
type CompletionStream struct {
	Provider string
	Model    string
	Degraded bool
	Attempts int

	inner     llm.Stream
	pending   string
	done      bool
	release   func()
	closeOnce sync.Once
}

// Recv returns the next chunk of text.
func (s *CompletionStream) Recv() (string, error) {
	if s.pending != "" {
		text := s.pending
		s.pending = ""
		return text, nil
	}
	if s.done || s.inner == nil {
		return "", io.EOF
	}
	text, err := s.inner.Recv()
	if errors.Is(err, io.EOF) {
		s.done = true
		return "", io.EOF
	}
	if err != nil {
		s.done = true
		return "", fmt.Errorf("%w: %w", domain.ErrStreamInterrupted, err)
	}
	return text, nil
}

// Close releases the underlying stream. Safe to call more than once.
func (s *CompletionStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.inner != nil {
			err = s.inner.Close()
		}
		s.release()
	})
	return err
}
