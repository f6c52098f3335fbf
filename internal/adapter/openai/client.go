// Package openai implements the llm.Provider and embedding.Embedder ports
// for OpenAI-compatible APIs (OpenAI, OpenRouter, LiteLLM proxies).
package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/Strob0t/TripForge/internal/port/llm"
)

// Config configures an OpenAI-compatible client.
type Config struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Headers are sent with every request (OpenRouter attribution headers).
	Headers map[string]string
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	name   string
	client sdk.Client
}

// NewClient creates a client. SDK retries are disabled: every chain entry is
// attempted exactly once.
func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	return &Client{name: name, client: sdk.NewClient(opts...)}
}

// Name implements llm.Provider.
func (c *Client) Name() string { return c.name }

// Complete implements llm.Provider.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return "", c.classify(req.Model, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", c.classify(req.Model, llm.ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream implements llm.Provider.
func (c *Client) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	s := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
	if err := s.Err(); err != nil {
		_ = s.Close()
		return nil, c.classify(req.Model, err)
	}
	return &stream{s: s, classify: func(err error) error { return c.classify(req.Model, err) }}, nil
}

func (c *Client) params(req llm.Request) sdk.ChatCompletionNewParams {
	msgs := make([]sdk.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		msgs = append(msgs, sdk.SystemMessage(req.System))
	}
	msgs = append(msgs, sdk.UserMessage(req.Prompt))

	p := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(req.Model),
		Messages:    msgs,
		Temperature: sdk.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		p.MaxTokens = sdk.Int(req.MaxTokens)
	}
	return p
}

func (c *Client) classify(model string, err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return llm.Classify(c.name, model, apiErr.StatusCode, err)
	}
	return llm.Classify(c.name, model, 0, err)
}

type stream struct {
	s        *ssestream.Stream[sdk.ChatCompletionChunk]
	classify func(error) error
}

func (s *stream) Recv() (string, error) {
	for s.s.Next() {
		chunk := s.s.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
	}
	if err := s.s.Err(); err != nil {
		return "", s.classify(err)
	}
	return "", io.EOF
}

func (s *stream) Close() error {
	return s.s.Close()
}
