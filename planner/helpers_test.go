package planner

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"

	"github.com/lagobot/lago"
)

// memStore is an in-memory VectorStore keeping entries in insertion order.
type memStore struct {
	mu         sync.Mutex
	namespaces map[string]*memIndex
	dropped    []string
}

func newMemStore() *memStore {
	return &memStore{namespaces: make(map[string]*memIndex)}
}

func (s *memStore) Namespace(name string) lago.VectorIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.namespaces[name]
	if !ok {
		idx = &memIndex{}
		s.namespaces[name] = idx
	}
	return idx
}

func (s *memStore) DeleteNamespace(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, name)
	s.dropped = append(s.dropped, name)
	return nil
}

func (s *memStore) Init(context.Context) error { return nil }
func (s *memStore) Close() error               { return nil }

type memEntry struct {
	id       string
	vector   []float32
	metadata map[string]string
}

type memIndex struct {
	mu      sync.Mutex
	entries []memEntry
	// preset, when non-nil, is returned by Query verbatim.
	preset  []lago.VectorMatch
	failErr error
}

func (m *memIndex) Upsert(_ context.Context, id string, vector []float32, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.id == id {
			m.entries[i] = memEntry{id: id, vector: vector, metadata: metadata}
			return nil
		}
	}
	m.entries = append(m.entries, memEntry{id: id, vector: vector, metadata: metadata})
	return nil
}

func (m *memIndex) Query(_ context.Context, vector []float32, topK int) ([]lago.VectorMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	if m.preset != nil {
		return append([]lago.VectorMatch(nil), m.preset...), nil
	}
	out := make([]lago.VectorMatch, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, lago.VectorMatch{ID: e.id, Score: cosine(vector, e.vector), Metadata: e.metadata})
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (m *memIndex) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.id)
	}
	return out
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// fakeEmbedding maps text to a deterministic 3-d vector.
type fakeEmbedding struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedding) Name() string    { return "fake-embed" }
func (f *fakeEmbedding) Dimensions() int { return 3 }

func (f *fakeEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)%7) + 1, float32(strings.Count(t, " ")) + 1, 1}
	}
	return out, nil
}

// scriptedLLM answers by prompt kind.
type scriptedLLM struct {
	mu         sync.Mutex
	execute    func(prompt string) (string, error)
	create     []string // consumed in order, then ""
	prioritize []string // consumed in order, then ""
	blockExec  int // number of leading execute calls that wait for ctx expiry
	execCalls  int
	prompts    []string
	params     []lago.GenerationParams
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) Chat(ctx context.Context, req lago.ChatRequest) (lago.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return lago.ChatResponse{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prompt := req.Messages[len(req.Messages)-1].Content
	s.prompts = append(s.prompts, prompt)
	if req.GenerationParams != nil {
		s.params = append(s.params, *req.GenerationParams)
	}
	switch {
	case strings.Contains(prompt, "performs one task"):
		s.execCalls++
		if s.execCalls <= s.blockExec {
			s.mu.Unlock()
			<-ctx.Done()
			s.mu.Lock()
			return lago.ChatResponse{}, ctx.Err()
		}
		if s.execute == nil {
			return lago.ChatResponse{Content: "done"}, nil
		}
		text, err := s.execute(prompt)
		return lago.ChatResponse{Content: text}, err
	case strings.Contains(prompt, "task creation AI"):
		return lago.ChatResponse{Content: pop(&s.create)}, nil
	case strings.Contains(prompt, "task prioritization AI"):
		return lago.ChatResponse{Content: pop(&s.prioritize)}, nil
	}
	return lago.ChatResponse{}, errors.New("unexpected prompt")
}

func (s *scriptedLLM) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.prompts {
		if strings.Contains(p, kind) {
			n++
		}
	}
	return n
}

func pop(q *[]string) string {
	if len(*q) == 0 {
		return ""
	}
	v := (*q)[0]
	*q = (*q)[1:]
	return v
}

// recordingSink collects delivered texts.
type recordingSink struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Send(_ context.Context, _ string, reply lago.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, reply.Text)
	return r.err
}

func (r *recordingSink) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func (r *recordingSink) last() string {
	all := r.all()
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}
