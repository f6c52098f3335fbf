package openai

import (
	"context"
	"fmt"

	sdk "github.com/openai/openai-go"
)

// Embedder implements embedding.Embedder with the embeddings endpoint.
type Embedder struct {
	client *Client
	model  string
}

// NewEmbedder creates an embedder that shares the client's transport.
func NewEmbedder(c *Client, model string) *Embedder {
	if model == "" {
		model = string(sdk.EmbeddingModelTextEmbedding3Small)
	}
	return &Embedder{client: c, model: model}
}

// Embed implements embedding.Embedder.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.client.Embeddings.New(ctx, sdk.EmbeddingNewParams{
		Model: sdk.EmbeddingModel(e.model),
		Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, e.client.classify(e.model, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
