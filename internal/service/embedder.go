package service

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/Strob0t/TripForge/internal/port/embedding"
)

// DefaultHashDimensions is the vector width used when none is configured.
const DefaultHashDimensions = 256

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "of": true, "in": true,
	"for": true, "to": true, "on": true, "with": true, "at": true, "by": true,
	"is": true, "or": true, "from": true, "city": true, "guide": true, "interests": true,
}

// HashEmbedder maps text to a hashed bag-of-words vector. It needs no
// network access and is deterministic, so it backs retrieval when no
// embedding API is configured.
type HashEmbedder struct {
	dims int
}

var _ embedding.Embedder = HashEmbedder{}

// NewHashEmbedder creates an embedder producing vectors of dims entries.
func NewHashEmbedder(dims int) HashEmbedder {
	if dims < 1 {
		dims = DefaultHashDimensions
	}
	return HashEmbedder{dims: dims}
}

// Embed implements embedding.Embedder. Vectors are L2-normalized.
func (e HashEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	dims := e.dims
	if dims < 1 {
		dims = DefaultHashDimensions
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, dims)
		for _, tok := range tokenize(text) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(tok))
			vec[h.Sum32()%uint32(dims)] += 1 //nolint:gosec // dims is positive
		}
		normalize(vec)
		out[i] = vec
	}
	return out, nil
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	toks := fields[:0]
	for _, f := range fields {
		if len(f) > 1 && !stopWords[f] {
			toks = append(toks, f)
		}
	}
	return toks
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	n := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= n
	}
}

// cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
