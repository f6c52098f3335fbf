// Package corpus loads the local-guide corpus from a JSON file.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Strob0t/TripForge/internal/domain/guide"
)

// LoadGuides reads a JSON array of guide entries from path. A missing file
// yields an empty corpus. Entries without a city or description are skipped.
func LoadGuides(path string) ([]guide.Entry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied corpus path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read guides %s: %w", path, err)
	}
	return ParseGuides(data)
}

// ParseGuides decodes and filters a JSON guide corpus.
func ParseGuides(data []byte) ([]guide.Entry, error) {
	var raw []guide.Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse guides: %w", err)
	}

	entries := make([]guide.Entry, 0, len(raw))
	for _, e := range raw {
		e.City = strings.TrimSpace(e.City)
		e.Text = strings.TrimSpace(e.Text)
		if e.City == "" || e.Text == "" {
			continue
		}
		if e.Interests == nil {
			e.Interests = []string{}
		}
		entries = append(entries, e)
	}
	return entries, nil
}
