package sqlitevec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), "test-model", 3)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEncodeDecodeVector(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.75}
	decoded, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestStore_UpsertQueryDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	items := []domain.EmbeddingUpsert{
		{DocumentID: "d1", ChunkID: "c1", Vector: []float32{1, 0, 0}, Text: "alpha", Metadata: map[string]any{"lang": "en"}},
		{DocumentID: "d1", ChunkID: "c2", Vector: []float32{0, 1, 0}, Text: "beta", Metadata: map[string]any{"lang": "ko"}},
		{DocumentID: "d2", ChunkID: "c3", Vector: []float32{0, 0, 1}, Text: "gamma", Metadata: nil},
	}
	require.NoError(t, s.Upsert(ctx, items))

	results, err := s.Query(ctx, []float32{1, 0, 0}, domain.QueryParams{TopK: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "c1", results[0].ChunkID)
	assert.Equal(t, "alpha", results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	require.NoError(t, s.DeleteByDocument(ctx, "d1"))
	results, err = s.Query(ctx, []float32{1, 0, 0}, domain.QueryParams{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c3", results[0].ChunkID)

	// Idempotent delete
	require.NoError(t, s.DeleteByDocument(ctx, "d1"))
}

func TestStore_UpsertReplacesByChunkID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{
		{DocumentID: "d1", ChunkID: "c1", Vector: []float32{1, 0, 0}, Text: "old"},
	}))
	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{
		{DocumentID: "d1", ChunkID: "c1", Vector: []float32{0, 1, 0}, Text: "new"},
	}))

	results, err := s.Query(ctx, []float32{0, 1, 0}, domain.QueryParams{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestStore_DimensionMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, []domain.EmbeddingUpsert{
		{DocumentID: "d1", ChunkID: "c1", Vector: []float32{1, 0}},
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = s.Query(ctx, []float32{1}, domain.QueryParams{TopK: 1})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestStore_QueryThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{
		{DocumentID: "d1", ChunkID: "c1", Vector: []float32{1, 0, 0}},
		{DocumentID: "d1", ChunkID: "c2", Vector: []float32{-1, 0, 0}},
	}))

	results, err := s.Query(ctx, []float32{1, 0, 0}, domain.QueryParams{TopK: 10, ScoreThreshold: 0.9})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestStore_QueryFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{
		{DocumentID: "d1", ChunkID: "c1", Vector: []float32{1, 0, 0}, Metadata: map[string]any{"page": 2}},
		{DocumentID: "d2", ChunkID: "c2", Vector: []float32{1, 0, 0}, Metadata: map[string]any{"page": 9}},
	}))

	results, err := s.Query(ctx, []float32{1, 0, 0}, domain.QueryParams{
		TopK:    10,
		Filters: []domain.Filter{{Field: "document_id", Op: domain.FilterEq, Value: "d2"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c2", results[0].ChunkID)

	results, err = s.Query(ctx, []float32{1, 0, 0}, domain.QueryParams{
		TopK:    10,
		Filters: []domain.Filter{{Field: "page", Op: domain.FilterRange, Min: 1, Max: 5}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)

	_, err = s.Query(ctx, []float32{1, 0, 0}, domain.QueryParams{
		TopK:    10,
		Filters: []domain.Filter{{Field: "page", Op: domain.FilterRange, Min: 5, Max: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestStore_QueryRepeatedDocumentFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{
		{DocumentID: "d1", ChunkID: "c1", Vector: []float32{1, 0, 0}},
		{DocumentID: "d2", ChunkID: "c2", Vector: []float32{1, 0, 0}},
	}))

	// Duplicate predicates on the same document agree: still valid SQL.
	results, err := s.Query(ctx, []float32{1, 0, 0}, domain.QueryParams{
		TopK: 10,
		Filters: []domain.Filter{
			{Field: "document_id", Op: domain.FilterEq, Value: "d1"},
			{Field: "document_id", Op: domain.FilterEq, Value: "d1"},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)

	// Contradictory predicates simply match nothing.
	results, err = s.Query(ctx, []float32{1, 0, 0}, domain.QueryParams{
		TopK: 10,
		Filters: []domain.Filter{
			{Field: "document_id", Op: domain.FilterEq, Value: "d1"},
			{Field: "document_id", Op: domain.FilterEq, Value: "d2"},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewStore(dir, "test-model", 3)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{
		{DocumentID: "d1", ChunkID: "c1", Vector: []float32{1, 0, 0}, Text: "kept"},
	}))
	require.NoError(t, s.Close())

	s2, err := NewStore(dir, "test-model", 3)
	require.NoError(t, err)
	defer s2.Close()

	results, err := s2.Query(ctx, []float32{1, 0, 0}, domain.QueryParams{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "kept", results[0].Text)
}

func TestStore_ReopenPinnedToModelAndDimension(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewStore(dir, "text-embedding-3-small", 3)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{
		{DocumentID: "d1", ChunkID: "c1", Vector: []float32{1, 0, 0}, ModelID: "text-embedding-3-small"},
	}))
	require.NoError(t, s.Close())

	// A same-dimension model swap must not silently mix vectors.
	_, err = NewStore(dir, "nomic-embed-text", 3)
	assert.ErrorIs(t, err, domain.ErrModelMismatch)

	_, err = NewStore(dir, "text-embedding-3-small", 4)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	// Empty model adopts the existing pin instead of clearing it.
	s2, err := NewStore(dir, "", 3)
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, "text-embedding-3-small", s2.modelID)

	err = s2.Upsert(ctx, []domain.EmbeddingUpsert{
		{DocumentID: "d1", ChunkID: "c2", Vector: []float32{0, 1, 0}, ModelID: "nomic-embed-text"},
	})
	assert.ErrorIs(t, err, domain.ErrModelMismatch)
}

func TestStore_UpsertPinsModelLazily(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewStore(dir, "", 3)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, []domain.EmbeddingUpsert{
		{DocumentID: "d1", ChunkID: "c1", Vector: []float32{1, 0, 0}, ModelID: "text-embedding-3-small"},
	}))
	require.NoError(t, s.Close())

	// The lazy pin survives reopen.
	_, err = NewStore(dir, "nomic-embed-text", 3)
	assert.ErrorIs(t, err, domain.ErrModelMismatch)
}
