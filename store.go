package lago

import "context"

// VectorMatch is a single nearest-neighbour hit.
type VectorMatch struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// VectorIndex is one namespace of a vector store. Entries are keyed by id;
// upserting an existing id replaces its vector and metadata.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	// Query returns up to topK entries ordered by descending cosine
	// similarity. Entries with equal scores keep insertion order.
	Query(ctx context.Context, vector []float32, topK int) ([]VectorMatch, error)
}

// VectorStore abstracts persistence with vector search capabilities.
type VectorStore interface {
	// Namespace returns the index holding entries written under name.
	Namespace(name string) VectorIndex
	// DeleteNamespace drops every entry written under name.
	DeleteNamespace(ctx context.Context, name string) error

	// --- Lifecycle ---
	Init(ctx context.Context) error
	Close() error
}
