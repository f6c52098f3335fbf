// Package ollama implements the llm.Provider port for a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/Strob0t/TripForge/internal/port/llm"
)

// DefaultURL is the Ollama server used when no base URL is configured.
const DefaultURL = "http://localhost:11434"

// Config configures an Ollama client.
type Config struct {
	Name    string
	BaseURL string
	Timeout time.Duration
}

// Client talks to an Ollama server over its chat API.
type Client struct {
	name   string
	client *api.Client
}

// NewClient creates a client for the configured host.
func NewClient(cfg Config) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("ollama url %q: %w", base, err)
	}
	hc := http.DefaultClient
	if cfg.Timeout > 0 {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	name := cfg.Name
	if name == "" {
		name = "ollama"
	}
	return &Client{name: name, client: api.NewClient(u, hc)}, nil
}

// Name implements llm.Provider.
func (c *Client) Name() string { return c.name }

// Complete implements llm.Provider.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	var text string
	err := c.client.Chat(ctx, chatRequest(req, false), func(resp api.ChatResponse) error {
		text += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", c.classify(req.Model, err)
	}
	if text == "" {
		return "", c.classify(req.Model, llm.ErrEmptyResponse)
	}
	return text, nil
}

// Stream implements llm.Provider. The chat callback runs on its own
// goroutine and hands chunks over an unbuffered channel; Stream blocks until
// the first chunk or error so open failures are reported before any output.
func (c *Client) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &stream{items: make(chan item), cancel: cancel}

	go func() {
		defer close(s.items)
		err := c.client.Chat(ctx, chatRequest(req, true), func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			select {
			case s.items <- item{text: resp.Message.Content}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && ctx.Err() == nil {
			s.items <- item{err: c.classify(req.Model, err)}
		}
	}()

	first, ok := <-s.items
	switch {
	case !ok:
		s.done = true
	case first.err != nil:
		cancel()
		return nil, first.err
	default:
		s.pending = first.text
	}
	return s, nil
}

func chatRequest(req llm.Request, streaming bool) *api.ChatRequest {
	msgs := make([]api.Message, 0, 2)
	if req.System != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: req.Prompt})

	opts := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	return &api.ChatRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   &streaming,
		Options:  opts,
	}
}

func (c *Client) classify(model string, err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		return llm.Classify(c.name, model, se.StatusCode, err)
	}
	return llm.Classify(c.name, model, 0, err)
}

type item struct {
	text string
	err  error
}

type stream struct {
	items     chan item
	cancel    context.CancelFunc
	pending   string
	done      bool
	closeOnce sync.Once
}

func (s *stream) Recv() (string, error) {
	if s.pending != "" {
		text := s.pending
		s.pending = ""
		return text, nil
	}
	if s.done {
		return "", io.EOF
	}
	it, ok := <-s.items
	if !ok {
		s.done = true
		return "", io.EOF
	}
	if it.err != nil {
		s.done = true
		return "", it.err
	}
	return it.text, nil
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		// Drain so the producer goroutine can exit.
		go func() {
			for range s.items {
			}
		}()
	})
	return nil
}
