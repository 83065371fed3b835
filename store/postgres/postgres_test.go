package postgres

import "testing"

func TestSerializeEmbedding(t *testing.T) {
	got := serializeEmbedding([]float32{0.5, -1, 2.25})
	if want := "[0.5,-1,2.25]"; got != want {
		t.Errorf("serializeEmbedding = %q, want %q", got, want)
	}
	if got := serializeEmbedding(nil); got != "[]" {
		t.Errorf("empty = %q, want []", got)
	}
}

func TestVectorType(t *testing.T) {
	if got := New(nil).vectorType(); got != "vector" {
		t.Errorf("untyped = %q", got)
	}
	if got := New(nil, WithEmbeddingDimension(1536)).vectorType(); got != "vector(1536)" {
		t.Errorf("typed = %q", got)
	}
}

func TestHNSWWithClause(t *testing.T) {
	if got := New(nil).hnswWithClause(); got != "" {
		t.Errorf("default clause = %q, want empty", got)
	}
	got := New(nil, WithHNSWM(32), WithEFConstruction(128)).hnswWithClause()
	if want := " WITH (m = 32, ef_construction = 128)"; got != want {
		t.Errorf("clause = %q, want %q", got, want)
	}
}
