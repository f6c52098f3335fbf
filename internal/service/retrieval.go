package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Strob0t/TripForge/internal/domain/guide"
	"github.com/Strob0t/TripForge/internal/port/embedding"
)

// Match is one scored retrieval hit.
type Match struct {
	Entry guide.Entry
	Score float64
}

// RetrievalIndex is an in-memory similarity index over the local-guide
// corpus. It is built once and read-only afterwards, so concurrent queries
// need no locking.
type RetrievalIndex struct {
	entries  []guide.Entry
	embedder embedding.Embedder
	enabled  bool
}

// NewRetrievalIndex embeds every entry once. A disabled index skips
// embedding and answers every query with nothing.
func NewRetrievalIndex(ctx context.Context, entries []guide.Entry, embedder embedding.Embedder, enabled bool) (*RetrievalIndex, error) {
	ix := &RetrievalIndex{embedder: embedder, enabled: enabled}
	if !enabled || len(entries) == 0 {
		return ix, nil
	}

	docs := make([]string, len(entries))
	for i, e := range entries {
		docs[i] = e.Document()
	}
	vecs, err := embedder.Embed(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	if len(vecs) != len(entries) {
		return nil, fmt.Errorf("embed corpus: got %d vectors for %d entries", len(vecs), len(entries))
	}

	ix.entries = make([]guide.Entry, len(entries))
	for i, e := range entries {
		e.Embedding = vecs[i]
		ix.entries[i] = e
	}
	slog.Info("retrieval index built", "entries", len(ix.entries))
	return ix, nil
}

// Enabled reports whether queries can return results.
func (ix *RetrievalIndex) Enabled() bool {
	return ix != nil && ix.enabled && len(ix.entries) > 0
}

// Len returns the number of indexed entries.
func (ix *RetrievalIndex) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// Search returns up to k entries with positive similarity to text, highest
// first. Equal scores keep corpus order. Embedding failures yield nil.
func (ix *RetrievalIndex) Search(ctx context.Context, text string, k int) []Match {
	if !ix.Enabled() || k < 1 {
		return nil
	}

	vecs, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil || len(vecs) != 1 {
		slog.WarnContext(ctx, "retrieval query embedding failed", "error", err)
		return nil
	}
	q := vecs[0]

	matches := make([]Match, 0, len(ix.entries))
	for _, e := range ix.entries {
		if score := cosine(q, e.Embedding); score > 0 {
			matches = append(matches, Match{Entry: e, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Query returns the rendered passages of the top k matches.
func (ix *RetrievalIndex) Query(ctx context.Context, text string, k int) []string {
	matches := ix.Search(ctx, text, k)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Entry.Document()
	}
	return out
}
