// Package sqlite implements lago.VectorStore using pure-Go SQLite
// with in-process brute-force vector search. Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/lagobot/lago"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
// When set, the store emits debug logs for every operation including
// timing, row counts, and key parameters. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithDimensions makes Upsert and Query reject vectors of any other size.
func WithDimensions(n int) StoreOption {
	return func(s *Store) { s.dims = n }
}

// Store implements lago.VectorStore backed by a local SQLite file.
// Embeddings are stored as JSON text and vector search is done
// in-process using brute-force cosine similarity.
type Store struct {
	db     *sql.DB
	dims   int
	logger *slog.Logger
}

var _ lago.VectorStore = (*Store)(nil)

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection. Concurrent planning runs
// write through the same store, and a single connection rules out
// SQLITE_BUSY between them.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: lago.NopLogger()}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates the vectors table.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug("sqlite: init started")
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vectors (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			namespace TEXT NOT NULL,
			id TEXT NOT NULL,
			embedding TEXT NOT NULL,
			metadata TEXT,
			created_at INTEGER NOT NULL,
			UNIQUE(namespace, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vectors_namespace ON vectors(namespace, seq)`,
	}
	for _, ddl := range stmts {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	s.logger.Info("sqlite: init completed", "duration", time.Since(start))
	return nil
}

// Namespace returns the index for entries written under name.
func (s *Store) Namespace(name string) lago.VectorIndex {
	return &index{store: s, namespace: name}
}

// DeleteNamespace removes every entry written under name.
func (s *Store) DeleteNamespace(ctx context.Context, name string) error {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE namespace = ?`, name)
	if err != nil {
		s.logger.Error("sqlite: delete namespace failed", "namespace", name, "error", err, "duration", time.Since(start))
		return fmt.Errorf("delete namespace: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Debug("sqlite: delete namespace ok", "namespace", name, "rows", n, "duration", time.Since(start))
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type index struct {
	store     *Store
	namespace string
}

// Upsert inserts an entry or replaces the vector and metadata of an existing
// one. A replaced entry keeps its original insertion position.
func (ix *index) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	s := ix.store
	start := time.Now()
	s.logger.Debug("sqlite: upsert", "namespace", ix.namespace, "id", id, "dims", len(vector))

	if s.dims > 0 && len(vector) != s.dims {
		return fmt.Errorf("upsert %s: vector has %d dimensions, want %d", id, len(vector), s.dims)
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vectors (namespace, id, embedding, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(namespace, id) DO UPDATE SET
			embedding = excluded.embedding,
			metadata = excluded.metadata`,
		ix.namespace, id, serializeEmbedding(vector), string(meta), lago.NowUnix(),
	)
	if err != nil {
		s.logger.Error("sqlite: upsert failed", "namespace", ix.namespace, "id", id, "error", err, "duration", time.Since(start))
		return fmt.Errorf("upsert vector: %w", err)
	}
	s.logger.Debug("sqlite: upsert ok", "namespace", ix.namespace, "id", id, "duration", time.Since(start))
	return nil
}

// Query scores every entry of the namespace against vector and returns the
// topK best, highest cosine similarity first. Equal scores keep insertion
// order.
func (ix *index) Query(ctx context.Context, vector []float32, topK int) ([]lago.VectorMatch, error) {
	s := ix.store
	start := time.Now()
	s.logger.Debug("sqlite: query", "namespace", ix.namespace, "top_k", topK)

	if s.dims > 0 && len(vector) != s.dims {
		return nil, fmt.Errorf("query: vector has %d dimensions, want %d", len(vector), s.dims)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding, metadata FROM vectors WHERE namespace = ? ORDER BY seq`,
		ix.namespace,
	)
	if err != nil {
		s.logger.Error("sqlite: query failed", "namespace", ix.namespace, "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	matches := []lago.VectorMatch{}
	for rows.Next() {
		var (
			id, embJSON string
			metaJSON    sql.NullString
		)
		if err := rows.Scan(&id, &embJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan vector: %w", err)
		}
		emb, err := deserializeEmbedding(embJSON)
		if err != nil {
			s.logger.Warn("sqlite: skipping corrupt embedding", "namespace", ix.namespace, "id", id, "error", err)
			continue
		}
		m := lago.VectorMatch{ID: id, Score: cosineSimilarity(vector, emb)}
		if metaJSON.Valid {
			if err := json.Unmarshal([]byte(metaJSON.String), &m.Metadata); err != nil {
				s.logger.Warn("sqlite: skipping corrupt metadata", "namespace", ix.namespace, "id", id, "error", err)
				continue
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vectors: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	s.logger.Debug("sqlite: query ok", "namespace", ix.namespace, "results", len(matches), "duration", time.Since(start))
	return matches, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

// serializeEmbedding converts []float32 to a JSON array string.
func serializeEmbedding(embedding []float32) string {
	data, _ := json.Marshal(embedding)
	return string(data)
}

// deserializeEmbedding parses a JSON array string back to []float32.
func deserializeEmbedding(s string) ([]float32, error) {
	var v []float32
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
