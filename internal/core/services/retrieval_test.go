package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	retrymem "github.com/custodia-labs/vectra-cli/internal/adapters/driven/retryqueue/memory"
	storagemem "github.com/custodia-labs/vectra-cli/internal/adapters/driven/storage/memory"
	vectormem "github.com/custodia-labs/vectra-cli/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

type retrievalHarness struct {
	svc      *RetrievalService
	primary  *vectormem.Store
	embedder *mockEmbedder
	reranker *mockReranker
	config   *mockConfig
}

func newRetrievalHarness(t *testing.T) *retrievalHarness {
	t.Helper()
	h := &retrievalHarness{
		primary:  vectormem.NewStore(testDim),
		embedder: newMockEmbedder(testDim),
		reranker: &mockReranker{},
		config:   &mockConfig{data: map[string]any{}},
	}
	router := NewWriteRouter(h.primary, nil, storagemem.NewMigrationStore(), retrymem.NewQueue())
	h.svc = NewRetrievalService(h.embedder, router, h.reranker, h.config)
	return h
}

// seed stores vectors at decreasing similarity to [1,0,0,0].
func (h *retrievalHarness) seed(t *testing.T, n int) {
	t.Helper()
	items := make([]domain.EmbeddingUpsert, n)
	for i := range items {
		v := []float32{1, float32(i) * 0.3, 0, 0}
		items[i] = domain.EmbeddingUpsert{
			DocumentID: "doc-1",
			ChunkID:    fmt.Sprintf("chunk-%d", i),
			Vector:     v,
			Text:       fmt.Sprintf("chunk text %d", i),
			Metadata:   map[string]any{"position": i},
		}
	}
	require.NoError(t, h.primary.Upsert(context.Background(), items))
}

func TestQueryVector_Invariants(t *testing.T) {
	h := newRetrievalHarness(t)
	h.seed(t, 8)

	policy := &domain.RetrievalPolicy{TopK: 5, ScoreThreshold: 0.6, RerankTopN: 5}
	res, err := h.svc.QueryVector(context.Background(), []float32{1, 0, 0, 0}, policy, nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(res.Candidates), 5)
	assert.NotEmpty(t, res.Candidates)
	for i, c := range res.Candidates {
		assert.GreaterOrEqual(t, c.Score, 0.6)
		if i > 0 {
			assert.LessOrEqual(t, c.Score, res.Candidates[i-1].Score)
		}
	}
	assert.Equal(t, *policy, res.Applied)
	assert.False(t, res.Reranked)
}

func TestQuery_UsesConfiguredDefaultPolicy(t *testing.T) {
	h := newRetrievalHarness(t)
	h.seed(t, 6)
	h.config.data["retrieval.top_k"] = 2
	h.config.data["retrieval.score_threshold"] = 0.5

	res, err := h.svc.Query(context.Background(), "chunk text", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Applied.TopK)
	assert.Equal(t, 0.5, res.Applied.ScoreThreshold)
	assert.LessOrEqual(t, len(res.Candidates), 2)
}

func TestQuery_BuiltInDefaults(t *testing.T) {
	h := newRetrievalHarness(t)

	policy := h.svc.DefaultPolicy()
	assert.Equal(t, DefaultTopK, policy.TopK)
	assert.Equal(t, DefaultScoreThreshold, policy.ScoreThreshold)
	assert.False(t, policy.RerankEnabled)
}

func TestQuery_RerankTruncatesToTopN(t *testing.T) {
	h := newRetrievalHarness(t)
	h.seed(t, 6)

	policy := &domain.RetrievalPolicy{TopK: 4, RerankEnabled: true, RerankTopN: 2}
	res, err := h.svc.Query(context.Background(), "chunk text", policy, nil)
	require.NoError(t, err)

	assert.True(t, res.Reranked)
	assert.LessOrEqual(t, len(res.Candidates), 2)
	assert.Equal(t, 1, h.reranker.calls)
}

func TestQuery_RerankFailureFallsBackToVectorOrder(t *testing.T) {
	h := newRetrievalHarness(t)
	h.seed(t, 4)
	h.reranker.err = fmt.Errorf("reranker offline")

	policy := &domain.RetrievalPolicy{TopK: 3, RerankEnabled: true}
	res, err := h.svc.Query(context.Background(), "chunk text", policy, nil)
	require.NoError(t, err)

	assert.False(t, res.Reranked)
	require.NotEmpty(t, res.Candidates)
	for i := 1; i < len(res.Candidates); i++ {
		assert.LessOrEqual(t, res.Candidates[i].Score, res.Candidates[i-1].Score)
	}
}

func TestQueryVector_RerankNeedsQueryText(t *testing.T) {
	h := newRetrievalHarness(t)
	h.seed(t, 4)

	policy := &domain.RetrievalPolicy{TopK: 3, RerankEnabled: true}
	res, err := h.svc.QueryVector(context.Background(), []float32{1, 0, 0, 0}, policy, nil)
	require.NoError(t, err)

	assert.False(t, res.Reranked)
	assert.Zero(t, h.reranker.calls)
}

func TestQuery_InvalidPolicy(t *testing.T) {
	h := newRetrievalHarness(t)

	_, err := h.svc.Query(context.Background(), "q", &domain.RetrievalPolicy{TopK: 0}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.svc.Query(context.Background(), "q", &domain.RetrievalPolicy{TopK: 3, ScoreThreshold: 1.5}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuery_InvalidFilter(t *testing.T) {
	h := newRetrievalHarness(t)

	filters := []domain.Filter{{Field: "f", Op: "regex"}}
	_, err := h.svc.Query(context.Background(), "q", &domain.RetrievalPolicy{TopK: 3}, filters)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestQuery_EmptyText(t *testing.T) {
	h := newRetrievalHarness(t)

	_, err := h.svc.Query(context.Background(), "  ", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuery_FiltersNarrowResults(t *testing.T) {
	h := newRetrievalHarness(t)
	h.seed(t, 5)

	filters := []domain.Filter{{Field: "position", Op: domain.FilterEq, Value: 2}}
	res, err := h.svc.QueryVector(context.Background(), []float32{1, 0, 0, 0}, &domain.RetrievalPolicy{TopK: 5}, filters)
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "chunk-2", res.Candidates[0].ChunkID)
}
