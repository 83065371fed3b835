//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "lago",
			"POSTGRES_PASSWORD": "lago",
			"POSTGRES_DB":       "lago",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(90 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("failed to start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	port, err := pg.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	host, err := pg.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get host: %v", err)
	}
	return fmt.Sprintf("postgres://lago:lago@%s:%s/lago?sslmode=disable", host, port.Port())
}

func TestStoreIntegration(t *testing.T) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, startPostgres(t, ctx))
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()

	s := New(pool, WithEmbeddingDimension(2))
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.Init(ctx); err != nil {
		t.Fatalf("second Init: %v", err)
	}

	ix := s.Namespace("run-1")
	if got, err := ix.Query(ctx, []float32{1, 0}, 5); err != nil || len(got) != 0 {
		t.Fatalf("empty query = %v, %v", got, err)
	}

	if err := ix.Upsert(ctx, "result_1", []float32{1, 2}, map[string]string{"task": "far"}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Upsert(ctx, "result_2", []float32{10, 1}, map[string]string{"task": "near"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Namespace("run-2").Upsert(ctx, "result_1", []float32{1, 0}, map[string]string{"task": "other run"}); err != nil {
		t.Fatal(err)
	}

	got, err := ix.Query(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	if got[0].Metadata["task"] != "near" || got[1].Metadata["task"] != "far" {
		t.Errorf("order = %+v", got)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("scores not descending")
	}

	if err := s.DeleteNamespace(ctx, "run-1"); err != nil {
		t.Fatal(err)
	}
	if got, _ := ix.Query(ctx, []float32{1, 0}, 5); len(got) != 0 {
		t.Errorf("run-1 after delete = %+v", got)
	}
	if got, _ := s.Namespace("run-2").Query(ctx, []float32{1, 0}, 5); len(got) != 1 {
		t.Errorf("run-2 lost entries: %+v", got)
	}
}
