// Package gemini implements the llm.Provider port for the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/Strob0t/TripForge/internal/port/llm"
)

// Config configures a Gemini client.
type Config struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client wraps the genai SDK client.
type Client struct {
	name   string
	client *genai.Client
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	if cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	name := cfg.Name
	if name == "" {
		name = "gemini"
	}
	return &Client{name: name, client: client}, nil
}

// Name implements llm.Provider.
func (c *Client) Name() string { return c.name }

// Complete implements llm.Provider.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), generateConfig(req))
	if err != nil {
		return "", c.classify(req.Model, err)
	}
	text := resp.Text()
	if text == "" {
		return "", c.classify(req.Model, llm.ErrEmptyResponse)
	}
	return text, nil
}

// Stream implements llm.Provider. The first response is pulled eagerly so
// that connection and status errors surface before any chunk is handed out.
func (c *Client) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	seq := c.client.Models.GenerateContentStream(ctx, req.Model, genai.Text(req.Prompt), generateConfig(req))
	next, stop := iter.Pull2(seq)
	s := &stream{next: next, stop: stop, classify: func(err error) error { return c.classify(req.Model, err) }}

	first, err := s.pull()
	if err != nil && !errors.Is(err, io.EOF) {
		stop()
		return nil, err
	}
	s.pending = first
	s.pendingErr = err
	return s, nil
}

func generateConfig(req llm.Request) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens) //nolint:gosec // bounded by config
	}
	if req.System != "" {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	return gc
}

func (c *Client) classify(model string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llm.Classify(c.name, model, apiErr.Code, err)
	}
	return llm.Classify(c.name, model, 0, err)
}

type stream struct {
	next       func() (*genai.GenerateContentResponse, error, bool)
	stop       func()
	classify   func(error) error
	pending    string
	pendingErr error
}

// pull returns the next non-empty chunk, io.EOF when the sequence ends.
func (s *stream) pull() (string, error) {
	for {
		resp, err, ok := s.next()
		if !ok {
			return "", io.EOF
		}
		if err != nil {
			return "", s.classify(err)
		}
		if text := resp.Text(); text != "" {
			return text, nil
		}
	}
}

func (s *stream) Recv() (string, error) {
	if s.pending != "" || s.pendingErr != nil {
		text, err := s.pending, s.pendingErr
		s.pending, s.pendingErr = "", nil
		return text, err
	}
	return s.pull()
}

func (s *stream) Close() error {
	s.stop()
	return nil
}
