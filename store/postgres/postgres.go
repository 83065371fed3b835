// Package postgres implements lago.VectorStore using PostgreSQL with
// pgvector for native vector similarity search.
//
// Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lagobot/lago"
)

// Store implements lago.VectorStore backed by PostgreSQL with pgvector.
// Vector search uses an HNSW index with cosine distance.
type Store struct {
	pool *pgxpool.Pool
	cfg  pgConfig
}

// pgConfig holds store configuration set via Option functions.
type pgConfig struct {
	embeddingDimension int // 0 = untyped vector
	hnswM              int // 0 = pgvector default (16)
	hnswEFConstruction int // 0 = pgvector default (64)
	hnswEFSearch       int // 0 = pgvector default (40)
}

// Option configures a PostgreSQL Store.
type Option func(*pgConfig)

// WithEmbeddingDimension sets the vector column dimension (e.g. 1536).
// When set, CREATE TABLE uses vector(N) instead of untyped vector, which
// enables the HNSW index and catches dimension mismatches at insert time.
// Only affects new table creation.
func WithEmbeddingDimension(dim int) Option {
	return func(c *pgConfig) { c.embeddingDimension = dim }
}

// WithHNSWM sets the HNSW m parameter (max connections per node).
func WithHNSWM(m int) Option {
	return func(c *pgConfig) { c.hnswM = m }
}

// WithEFConstruction sets the HNSW ef_construction parameter.
func WithEFConstruction(ef int) Option {
	return func(c *pgConfig) { c.hnswEFConstruction = ef }
}

// WithEFSearch sets the HNSW ef_search parameter, applied during Init.
func WithEFSearch(ef int) Option {
	return func(c *pgConfig) { c.hnswEFSearch = ef }
}

var _ lago.VectorStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	var cfg pgConfig
	for _, o := range opts {
		o(&cfg)
	}
	return &Store{pool: pool, cfg: cfg}
}

// vectorType returns "vector" or "vector(N)" depending on config.
func (s *Store) vectorType() string {
	if s.cfg.embeddingDimension > 0 {
		return fmt.Sprintf("vector(%d)", s.cfg.embeddingDimension)
	}
	return "vector"
}

// hnswWithClause returns the WITH (...) clause for HNSW index creation,
// or an empty string if no tuning params are set.
func (s *Store) hnswWithClause() string {
	var parts []string
	if s.cfg.hnswM > 0 {
		parts = append(parts, fmt.Sprintf("m = %d", s.cfg.hnswM))
	}
	if s.cfg.hnswEFConstruction > 0 {
		parts = append(parts, fmt.Sprintf("ef_construction = %d", s.cfg.hnswEFConstruction))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WITH (" + strings.Join(parts, ", ") + ")"
}

// Init creates the pgvector extension, the vectors table and its indexes.
// Safe to call multiple times.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vectors (
			seq BIGSERIAL PRIMARY KEY,
			namespace TEXT NOT NULL,
			id TEXT NOT NULL,
			embedding %s NOT NULL,
			metadata JSONB,
			created_at BIGINT NOT NULL,
			UNIQUE (namespace, id)
		)`, s.vectorType()),
		`CREATE INDEX IF NOT EXISTS vectors_namespace_idx ON vectors(namespace, seq)`,
	}
	// HNSW needs a typed column.
	if s.cfg.embeddingDimension > 0 {
		stmts = append(stmts, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS vectors_embedding_idx ON vectors USING hnsw (embedding vector_cosine_ops)%s`,
			s.hnswWithClause()))
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}
	if s.cfg.hnswEFSearch > 0 {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("SET hnsw.ef_search = %d", s.cfg.hnswEFSearch)); err != nil {
			return fmt.Errorf("postgres: set ef_search: %w", err)
		}
	}
	return nil
}

// Namespace returns the index for entries written under name.
func (s *Store) Namespace(name string) lago.VectorIndex {
	return &index{pool: s.pool, namespace: name}
}

// DeleteNamespace removes every entry written under name.
func (s *Store) DeleteNamespace(ctx context.Context, name string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM vectors WHERE namespace = $1`, name); err != nil {
		return fmt.Errorf("postgres: delete namespace: %w", err)
	}
	return nil
}

// Close is a no-op. The caller owns the pool.
func (s *Store) Close() error {
	return nil
}

type index struct {
	pool      *pgxpool.Pool
	namespace string
}

// Upsert inserts an entry or replaces the vector and metadata of an existing
// one, keeping its insertion position.
func (ix *index) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("postgres: marshal metadata: %w", err)
	}
	_, err = ix.pool.Exec(ctx,
		`INSERT INTO vectors (namespace, id, embedding, metadata, created_at)
		 VALUES ($1, $2, $3::vector, $4, $5)
		 ON CONFLICT (namespace, id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		ix.namespace, id, serializeEmbedding(vector), meta, lago.NowUnix())
	if err != nil {
		return fmt.Errorf("postgres: upsert vector: %w", err)
	}
	return nil
}

// Query returns the topK nearest entries by cosine similarity, highest
// first. Equal distances fall back to insertion order.
func (ix *index) Query(ctx context.Context, vector []float32, topK int) ([]lago.VectorMatch, error) {
	rows, err := ix.pool.Query(ctx,
		`SELECT id, metadata, 1 - (embedding <=> $1::vector) AS score
		 FROM vectors
		 WHERE namespace = $2
		 ORDER BY embedding <=> $1::vector, seq
		 LIMIT $3`,
		serializeEmbedding(vector), ix.namespace, topK)
	if err != nil {
		return nil, fmt.Errorf("postgres: query vectors: %w", err)
	}
	defer rows.Close()

	matches := []lago.VectorMatch{}
	for rows.Next() {
		var (
			m    lago.VectorMatch
			meta []byte
		)
		if err := rows.Scan(&m.ID, &meta, &m.Score); err != nil {
			return nil, fmt.Errorf("postgres: scan vector: %w", err)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &m.Metadata)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// serializeEmbedding renders a vector in pgvector's text format.
func serializeEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
