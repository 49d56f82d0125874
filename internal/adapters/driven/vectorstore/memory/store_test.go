package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

func upsertOf(docID, chunkID string, vec []float32, meta map[string]any) domain.EmbeddingUpsert {
	return domain.EmbeddingUpsert{
		DocumentID: docID,
		ChunkID:    chunkID,
		Vector:     vec,
		Text:       "text-" + chunkID,
		Metadata:   meta,
	}
}

func TestStore_UpsertAndQuery(t *testing.T) {
	s := NewStore(2)
	ctx := context.Background()

	err := s.Upsert(ctx, []domain.EmbeddingUpsert{
		upsertOf("d1", "c1", []float32{1, 0}, nil),
		upsertOf("d1", "c2", []float32{0, 1}, nil),
		upsertOf("d2", "c3", []float32{-1, 0}, nil),
	})
	require.NoError(t, err)

	results, err := s.Query(ctx, []float32{1, 0}, domain.QueryParams{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Descending canonical similarity: identical=1, orthogonal=0.5, opposite=0
	assert.Equal(t, "c1", results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "c2", results[1].ChunkID)
	assert.InDelta(t, 0.5, results[1].Score, 1e-9)
	assert.Equal(t, "c3", results[2].ChunkID)
	assert.InDelta(t, 0.0, results[2].Score, 1e-9)
}

func TestStore_UpsertIdempotent(t *testing.T) {
	s := NewStore(2)
	ctx := context.Background()

	item := upsertOf("d1", "c1", []float32{1, 0}, map[string]any{"v": 1})
	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{item}))
	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{item}))

	assert.Equal(t, 1, s.Count())

	// Re-upsert with a new vector replaces, not duplicates
	item.Vector = []float32{0, 1}
	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{item}))
	assert.Equal(t, 1, s.Count())

	results, err := s.Query(ctx, []float32{0, 1}, domain.QueryParams{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestStore_DimensionMismatch(t *testing.T) {
	s := NewStore(3)
	ctx := context.Background()

	err := s.Upsert(ctx, []domain.EmbeddingUpsert{upsertOf("d1", "c1", []float32{1, 0}, nil)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 0, s.Count())

	_, err = s.Query(ctx, []float32{1, 0}, domain.QueryParams{TopK: 1})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestStore_ModelMismatch(t *testing.T) {
	s := NewStore(2)
	ctx := context.Background()

	first := upsertOf("d1", "c1", []float32{1, 0}, nil)
	first.ModelID = "text-embedding-3-small"
	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{first}))

	// Same dimension, different model: the index stays unmixed.
	second := upsertOf("d2", "c2", []float32{0, 1}, nil)
	second.ModelID = "nomic-embed-text"
	err := s.Upsert(ctx, []domain.EmbeddingUpsert{second})
	assert.ErrorIs(t, err, domain.ErrModelMismatch)
	assert.Equal(t, 1, s.Count())

	// Items without a model are accepted alongside the pinned model.
	third := upsertOf("d3", "c3", []float32{1, 1}, nil)
	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{third}))
}

func TestStore_QueryThresholdAndTopK(t *testing.T) {
	s := NewStore(2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{
		upsertOf("d1", "c1", []float32{1, 0}, nil),      // score 1.0
		upsertOf("d1", "c2", []float32{1, 0.2}, nil),    // high
		upsertOf("d1", "c3", []float32{0, 1}, nil),      // 0.5
		upsertOf("d1", "c4", []float32{-1, 0.1}, nil),   // low
		upsertOf("d1", "c5", []float32{-1, -0.1}, nil),  // low
	}))

	results, err := s.Query(ctx, []float32{1, 0}, domain.QueryParams{TopK: 5, ScoreThreshold: 0.8})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.8)
	}

	results, err = s.Query(ctx, []float32{1, 0}, domain.QueryParams{TopK: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestStore_QueryFilters(t *testing.T) {
	s := NewStore(2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{
		upsertOf("d1", "c1", []float32{1, 0}, map[string]any{"lang": "en", "page": 1}),
		upsertOf("d2", "c2", []float32{1, 0}, map[string]any{"lang": "ko", "page": 7}),
	}))

	results, err := s.Query(ctx, []float32{1, 0}, domain.QueryParams{
		TopK:    10,
		Filters: []domain.Filter{{Field: "lang", Op: domain.FilterEq, Value: "en"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)

	results, err = s.Query(ctx, []float32{1, 0}, domain.QueryParams{
		TopK:    10,
		Filters: []domain.Filter{{Field: "page", Op: domain.FilterRange, Min: 5, Max: 10}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c2", results[0].ChunkID)

	results, err = s.Query(ctx, []float32{1, 0}, domain.QueryParams{
		TopK:    10,
		Filters: []domain.Filter{{Field: "document_id", Op: domain.FilterIn, Values: []any{"d1", "d2"}}},
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = s.Query(ctx, []float32{1, 0}, domain.QueryParams{
		TopK:    10,
		Filters: []domain.Filter{{Field: "lang", Op: domain.FilterOp("like"), Value: "e%"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestStore_DeleteByDocument(t *testing.T) {
	s := NewStore(2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{
		upsertOf("d1", "c1", []float32{1, 0}, nil),
		upsertOf("d1", "c2", []float32{0, 1}, nil),
		upsertOf("d2", "c3", []float32{1, 1}, nil),
	}))

	require.NoError(t, s.DeleteByDocument(ctx, "d1"))
	assert.Equal(t, 1, s.Count())

	// Deleting an absent document is a no-op
	require.NoError(t, s.DeleteByDocument(ctx, "d1"))
	require.NoError(t, s.DeleteByDocument(ctx, "never-existed"))
	assert.Equal(t, 1, s.Count())
}
