// Package embedding defines the port interface for text embedders.
package embedding

import "context"

// Embedder maps texts to fixed-length vectors. The returned slice has one
// vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}
