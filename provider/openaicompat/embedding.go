package openaicompat

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/lagobot/lago"
)

// DefaultEmbeddingDimensions is the vector size of text-embedding-ada-002
// and text-embedding-3-small.
const DefaultEmbeddingDimensions = 1536

// Embedding implements lago.EmbeddingProvider on the /embeddings endpoint.
type Embedding struct {
	client
	dims int
}

var _ lago.EmbeddingProvider = (*Embedding)(nil)

// NewEmbedding creates an embedding provider. dims <= 0 selects
// DefaultEmbeddingDimensions.
func NewEmbedding(apiKey, model, baseURL string, dims int, opts ...ProviderOption) *Embedding {
	if dims <= 0 {
		dims = DefaultEmbeddingDimensions
	}
	return &Embedding{client: newClient(apiKey, model, baseURL, "openai-embedding", opts), dims: dims}
}

func (e *Embedding) Name() string    { return e.name }
func (e *Embedding) Dimensions() int { return e.dims }

// Embed returns one vector per input text, in input order.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = normalizeInput(t)
	}
	var resp EmbeddingResponse
	if err := e.postJSON(ctx, "/embeddings", EmbeddingRequest{Model: e.model, Input: input}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, &lago.ErrLLM{Provider: e.name, Message: fmt.Sprintf("got %d embeddings for %d inputs", len(resp.Data), len(texts))}
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, &lago.ErrLLM{Provider: e.name, Message: fmt.Sprintf("embedding index %d out of range", d.Index)}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// normalizeInput puts text into NFC and replaces newlines with spaces.
// Embedding models score differently on composed and decomposed forms of
// the same string.
func normalizeInput(s string) string {
	s = norm.NFC.String(s)
	return strings.ReplaceAll(s, "\n", " ")
}
