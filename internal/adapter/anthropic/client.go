// Package anthropic implements the llm.Provider port for the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/Strob0t/TripForge/internal/port/llm"
)

// defaultMaxTokens is used when the request leaves MaxTokens unset; the
// Messages API requires it.
const defaultMaxTokens = 2000

// Config configures an Anthropic client.
type Config struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the Anthropic Messages API.
type Client struct {
	name   string
	client sdk.Client
}

// NewClient creates a client with SDK retries disabled.
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
	name := cfg.Name
	if name == "" {
		name = "anthropic"
	}
	return &Client{name: name, client: sdk.NewClient(opts...)}
}

// Name implements llm.Provider.
func (c *Client) Name() string { return c.name }

// Complete implements llm.Provider.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	msg, err := c.client.Messages.New(ctx, params(req))
	if err != nil {
		return "", c.classify(req.Model, err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", c.classify(req.Model, llm.ErrEmptyResponse)
	}
	return sb.String(), nil
}

// Stream implements llm.Provider.
func (c *Client) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	s := c.client.Messages.NewStreaming(ctx, params(req))
	if err := s.Err(); err != nil {
		_ = s.Close()
		return nil, c.classify(req.Model, err)
	}
	return &stream{s: s, classify: func(err error) error { return c.classify(req.Model, err) }}, nil
}

func params(req llm.Request) sdk.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	p := sdk.MessageNewParams{
		Model:       sdk.Model(req.Model),
		MaxTokens:   maxTokens,
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt))},
		Temperature: sdk.Float(req.Temperature),
	}
	if req.System != "" {
		p.System = []sdk.TextBlockParam{{Text: req.System}}
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
	s        *ssestream.Stream[sdk.MessageStreamEventUnion]
	classify func(error) error
}

func (s *stream) Recv() (string, error) {
	for s.s.Next() {
		ev := s.s.Current()
		if ev.Type == "content_block_delta" && ev.Delta.Text != "" {
			return ev.Delta.Text, nil
		}
	}
	if err := s.s.Err(); err != nil {
		return "", s.classify(err)
	}
	return "", io.EOF
}

func (s *stream) Close() error { return s.s.Close() }
