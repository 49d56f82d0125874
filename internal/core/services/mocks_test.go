package services

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
	"github.com/custodia-labs/vectra-cli/internal/normalisers"
	"github.com/custodia-labs/vectra-cli/internal/normalisers/markdown"
	"github.com/custodia-labs/vectra-cli/internal/normalisers/plaintext"
)

// newTestRegistry builds the text extraction registry used in ingest
// tests: plain text and markdown, no external tools.
func newTestRegistry() driven.NormaliserRegistry {
	reg := normalisers.NewRegistry()
	reg.Register(plaintext.New())
	reg.Register(markdown.New())
	return reg
}

// --- Mock implementations ---

// mockEmbedder implements driven.EmbeddingService with a deterministic
// text-derived vector, so re-embedding the same text always yields the
// same vector. failures > 0 makes the next calls fail before
// succeeding, to exercise retry.
type mockEmbedder struct {
	mu       sync.Mutex
	dim      int
	failures int
	calls    int
}

func newMockEmbedder(dim int) *mockEmbedder {
	return &mockEmbedder{dim: dim}
}

// vectorFor derives a unit-ish vector from the text bytes.
func (m *mockEmbedder) vectorFor(text string) []float32 {
	v := make([]float64, m.dim)
	for i, b := range []byte(text) {
		v[i%m.dim] += float64(b)
	}
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	out := make([]float32, m.dim)
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return nil, fmt.Errorf("%w: transient", domain.ErrEmbeddingUnavailable)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vectorFor(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dim }
func (m *mockEmbedder) ModelName() string { return "mock-embedder" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// flakyStore wraps a driven.VectorStore with injectable failures.
type flakyStore struct {
	driven.VectorStore

	mu         sync.Mutex
	upsertErr  error
	deleteErr  error
	upsertFail int // fail this many upserts, then succeed
	upserts    int
	deletes    int
}

func (f *flakyStore) Upsert(ctx context.Context, items []domain.EmbeddingUpsert) error {
	f.mu.Lock()
	f.upserts++
	err := f.upsertErr
	if err == nil && f.upsertFail > 0 {
		f.upsertFail--
		err = fmt.Errorf("%w: injected upsert failure", domain.ErrBackendUnavailable)
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.VectorStore.Upsert(ctx, items)
}

func (f *flakyStore) DeleteByDocument(ctx context.Context, documentID string) error {
	f.mu.Lock()
	f.deletes++
	err := f.deleteErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.VectorStore.DeleteByDocument(ctx, documentID)
}

func (f *flakyStore) setUpsertErr(err error) {
	f.mu.Lock()
	f.upsertErr = err
	f.mu.Unlock()
}

func (f *flakyStore) upsertCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

// mockReranker implements driven.Reranker, reversing candidate order
// so reranking is observable, or failing on demand.
type mockReranker struct {
	err   error
	calls int
}

func (m *mockReranker) Rerank(_ context.Context, _ string, candidates []domain.CandidateResult, topN int) ([]domain.CandidateResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.CandidateResult, len(candidates))
	for i, c := range candidates {
		out[len(candidates)-1-i] = c
	}
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

func (m *mockReranker) ModelName() string { return "mock-reranker" }

// captureSink records emitted lifecycle events.
type captureSink struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

func (c *captureSink) Emit(event domain.LifecycleEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureSink) kinds() []domain.LifecycleEventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.LifecycleEventKind, len(c.events))
	for i, e := range c.events {
		out[i] = e.Kind
	}
	return out
}

// mockConfig implements driven.ConfigStore over a plain map.
type mockConfig struct {
	data map[string]any
}

func (m *mockConfig) Get(key string) (any, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *mockConfig) GetString(key string) string {
	if v, ok := m.data[key].(string); ok {
		return v
	}
	return ""
}

func (m *mockConfig) GetInt(key string) int {
	if v, ok := m.data[key].(int); ok {
		return v
	}
	return 0
}

func (m *mockConfig) GetFloat(key string) float64 {
	if v, ok := m.data[key].(float64); ok {
		return v
	}
	return 0
}

func (m *mockConfig) GetBool(key string) bool {
	if v, ok := m.data[key].(bool); ok {
		return v
	}
	return false
}

func (m *mockConfig) Set(key string, value any) error {
	m.data[key] = value
	return nil
}

func (m *mockConfig) Save() error { return nil }
func (m *mockConfig) Load() error { return nil }
func (m *mockConfig) Path() string { return "" }
