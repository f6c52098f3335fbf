// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrValidation indicates a malformed or incomplete trip request. It is
// raised before orchestration starts; no agent runs.
var ErrValidation = errors.New("validation error")

// ErrSynthesisFailed indicates the final synthesis call exhausted its
// provider chain or timed out. It is the only orchestration failure that
// reaches the caller.
var ErrSynthesisFailed = errors.New("synthesis failed")

// ErrStreamInterrupted indicates a committed token stream failed after its
// first chunk was delivered.
var ErrStreamInterrupted = errors.New("stream interrupted")

// ErrNoProviders indicates every entry of the fallback chain failed.
var ErrNoProviders = errors.New("all providers failed")
