// Package llm defines the port interface for LLM chat providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Request is a single-turn chat completion request.
type Request struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Provider is one LLM endpoint. Implementations must not retry internally;
// fallback is handled by the caller's chain.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Stream is a pull-based sequence of completion text chunks. Recv returns
// io.EOF after the last chunk; any other error is terminal. Close releases
// the underlying connection and is safe to call more than once.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Kind categorizes provider failures.
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindAuth        Kind = "auth"
	KindTimeout     Kind = "timeout"
	KindMalformed   Kind = "malformed"
	KindUnavailable Kind = "unavailable"
)

// ErrEmptyResponse marks a completion that returned no text.
var ErrEmptyResponse = errors.New("empty completion")

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider string
	Model    string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s/%s: %s (status %d): %v", e.Provider, e.Model, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s/%s: %s: %v", e.Provider, e.Model, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classified kind of err, or KindUnavailable when err
// carries no classification.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrEmptyResponse):
		return KindMalformed
	default:
		return KindUnavailable
	}
}

// KindForStatus maps an HTTP status code to a failure kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusPaymentRequired:
		return KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status == http.StatusUnprocessableEntity:
		return KindMalformed
	default:
		return KindUnavailable
	}
}

// Classify wraps err as an *Error for the given provider and model. Context
// deadline errors become KindTimeout; status, when non-zero, selects the kind.
func Classify(provider, model string, status int, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	kind := KindOf(err)
	if status != 0 && kind != KindTimeout {
		kind = KindForStatus(status)
	}
	return &Error{Kind: kind, Provider: provider, Model: model, Status: status, Err: err}
}
