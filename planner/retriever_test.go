package planner

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/lagobot/lago"
)

func TestRetriever_EmptyIndex(t *testing.T) {
	r := NewRetriever(&fakeEmbedding{}, &memIndex{})

	got, err := r.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Retrieve on empty index: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", got)
	}
}

func TestRetriever_SortsByDescendingScore(t *testing.T) {
	idx := &memIndex{preset: []lago.VectorMatch{
		{ID: "result_1", Score: 0.4, Metadata: map[string]string{MetaTask: "low"}},
		{ID: "result_2", Score: 0.9, Metadata: map[string]string{MetaTask: "high"}},
	}}
	r := NewRetriever(&fakeEmbedding{}, idx)

	got, err := r.Retrieve(context.Background(), "q", 5)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"high", "low"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRetriever_TiesKeepInsertionOrder(t *testing.T) {
	idx := &memIndex{preset: []lago.VectorMatch{
		{ID: "result_1", Score: 0.5, Metadata: map[string]string{MetaTask: "first"}},
		{ID: "result_2", Score: 0.7, Metadata: map[string]string{MetaTask: "best"}},
		{ID: "result_3", Score: 0.5, Metadata: map[string]string{MetaTask: "second"}},
	}}
	r := NewRetriever(&fakeEmbedding{}, idx)

	got, _ := r.Retrieve(context.Background(), "q", 5)
	if want := []string{"best", "first", "second"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRetriever_Idempotent(t *testing.T) {
	idx := &memIndex{}
	ctx := context.Background()
	for i, text := range []string{"book a venue", "buy a cake", "send invites"} {
		emb, _ := (&fakeEmbedding{}).Embed(ctx, []string{text})
		if err := idx.Upsert(ctx, ResultKey(i+1), emb[0], map[string]string{MetaTask: text}); err != nil {
			t.Fatal(err)
		}
	}
	r := NewRetriever(&fakeEmbedding{}, idx)

	first, err := r.Retrieve(ctx, "party", 5)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Retrieve(ctx, "party", 5)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ: %v vs %v", first, second)
	}
	if len(first) != 3 {
		t.Errorf("got %d results, want 3", len(first))
	}
}

func TestRetriever_TrimsToK(t *testing.T) {
	idx := &memIndex{preset: []lago.VectorMatch{
		{Score: 0.1, Metadata: map[string]string{MetaTask: "a"}},
		{Score: 0.3, Metadata: map[string]string{MetaTask: "b"}},
		{Score: 0.2, Metadata: map[string]string{MetaTask: "c"}},
	}}
	got, _ := NewRetriever(&fakeEmbedding{}, idx).Retrieve(context.Background(), "q", 2)
	if want := []string{"b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRetriever_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	if _, err := NewRetriever(&fakeEmbedding{err: boom}, &memIndex{}).Retrieve(context.Background(), "q", 5); !errors.Is(err, boom) {
		t.Errorf("embedding error: got %v", err)
	}
	if _, err := NewRetriever(&fakeEmbedding{}, &memIndex{failErr: boom}).Retrieve(context.Background(), "q", 5); !errors.Is(err, boom) {
		t.Errorf("index error: got %v", err)
	}
}
