package planner

import (
	"context"
	"fmt"
	"sort"

	"github.com/lagobot/lago"
)

// Retriever turns a query into the task text of the most similar stored
// results.
type Retriever struct {
	embedding lago.EmbeddingProvider
	index     lago.VectorIndex
}

// NewRetriever creates a Retriever reading from index.
func NewRetriever(embedding lago.EmbeddingProvider, index lago.VectorIndex) *Retriever {
	return &Retriever{embedding: embedding, index: index}
}

// Retrieve embeds query and returns the task text of the k nearest entries,
// most similar first. Entries with equal scores keep insertion order. An
// empty index yields an empty slice and no error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		return []string{}, nil
	}
	vecs, err := r.embedding.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embed query: provider %s returned no vectors", r.embedding.Name())
	}
	matches, err := r.index.Query(ctx, vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Metadata[MetaTask])
	}
	return out, nil
}
