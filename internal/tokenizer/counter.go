// Package tokenizer counts and budgets prompt tokens with a tiktoken codec.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens using the cl100k encoding. All chain providers are
// approximated with the same encoding; counts are used for budgeting and
// span attributes, never for billing.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter loads the GPT-4 codec.
func NewCounter() (*Counter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer codec: %w", err)
	}
	return &Counter{codec: codec}, nil
}

// Count returns the number of tokens in text. Falls back to a 4-chars-per-token
// estimate when no codec is loaded or encoding fails.
func (c *Counter) Count(text string) int {
	if c == nil || c.codec == nil {
		return estimate(text)
	}
	n, err := c.codec.Count(text)
	if err != nil {
		return estimate(text)
	}
	return n
}

// Truncate returns the longest word-boundary prefix of text that fits in
// maxTokens. Text already within budget is returned unchanged.
func (c *Counter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if c.Count(text) <= maxTokens {
		return text
	}
	words := strings.Fields(text)
	lo, hi := 0, len(words)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if c.Count(strings.Join(words[:mid], " ")) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return strings.Join(words[:lo], " ")
}

func estimate(text string) int {
	return (len(text) + 3) / 4
}
