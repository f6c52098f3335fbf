package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/TripForge/internal/port/search"
)

// Degradation reasons reported by WebSearch.
const (
	ReasonMissingCredential = "missing credential"
	ReasonTimeout           = "timeout"
	ReasonError             = "search error"
	ReasonNoResults         = "no results"
)

// SearchOutcome is the result of a web search. When Degraded is set the
// caller must fall back to model knowledge; Snippets is then empty.
type SearchOutcome struct {
	Snippets []string
	Degraded bool
	Reason   string
}

// WebSearch wraps a search provider with a bounded timeout and converts
// every failure into a degraded outcome.
type WebSearch struct {
	provider   search.Provider
	timeout    time.Duration
	maxResults int
}

// NewWebSearch creates a WebSearch. A nil provider means no credential is
// configured and every search degrades.
func NewWebSearch(provider search.Provider, timeout time.Duration, maxResults int) *WebSearch {
	if maxResults < 1 {
		maxResults = 5
	}
	return &WebSearch{provider: provider, timeout: timeout, maxResults: maxResults}
}

// Available reports whether a search provider is configured.
func (w *WebSearch) Available() bool {
	return w != nil && w.provider != nil
}

// Search runs query. It never returns an error.
func (w *WebSearch) Search(ctx context.Context, query string) SearchOutcome {
	if !w.Available() {
		return SearchOutcome{Degraded: true, Reason: ReasonMissingCredential}
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	results, err := w.provider.Search(ctx, query, w.maxResults)
	if err != nil {
		reason := ReasonError
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		slog.WarnContext(ctx, "web search degraded", "provider", w.provider.Name(), "reason", reason, "error", err)
		return SearchOutcome{Degraded: true, Reason: reason}
	}

	snippets := make([]string, 0, len(results))
	for _, r := range results {
		text := strings.TrimSpace(r.Snippet)
		if text == "" {
			text = strings.TrimSpace(r.Title)
		}
		if text != "" {
			snippets = append(snippets, text)
		}
	}
	if len(snippets) == 0 {
		return SearchOutcome{Degraded: true, Reason: ReasonNoResults}
	}
	return SearchOutcome{Snippets: snippets}
}
