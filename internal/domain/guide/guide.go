// Package guide defines the static local-guide corpus used for retrieval.
package guide

import "strings"

// Entry is one local-guide passage. Entries are loaded once and never
// mutated; Embedding is filled when the retrieval index is built.
type Entry struct {
	City      string    `json:"city"`
	Interests []string  `json:"interests"`
	Text      string    `json:"description"`
	Source    string    `json:"source,omitempty"`
	Embedding []float64 `json:"-"`
}

// Document renders the entry as the passage handed to agents.
func (e Entry) Document() string {
	var b strings.Builder
	b.WriteString("City: ")
	b.WriteString(e.City)
	if len(e.Interests) > 0 {
		b.WriteString("\nInterests: ")
		b.WriteString(strings.Join(e.Interests, ", "))
	}
	b.WriteString("\nGuide: ")
	b.WriteString(e.Text)
	return b.String()
}
