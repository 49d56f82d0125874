package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

func candidates(texts ...string) []domain.CandidateResult {
	out := make([]domain.CandidateResult, len(texts))
	for i, t := range texts {
		out[i] = domain.CandidateResult{
			ChunkID: string(rune('a' + i)),
			Text:    t,
			Score:   1.0 - float64(i)*0.1,
		}
	}
	return out
}

func TestLexical_ReordersByOverlap(t *testing.T) {
	r := NewLexical()

	cands := candidates(
		"the weather report for tomorrow",
		"database migration strategies for vector stores",
		"vector similarity search in a database",
	)

	got, err := r.Rerank(context.Background(), "vector database search", cands, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// All three query terms appear in the third candidate.
	assert.Equal(t, "c", got[0].ChunkID)
	assert.Equal(t, 1.0, got[0].Score)
	// No query term appears in the first candidate.
	assert.Equal(t, "a", got[2].ChunkID)
	assert.Equal(t, 0.0, got[2].Score)
}

func TestLexical_TruncatesToTopN(t *testing.T) {
	r := NewLexical()

	got, err := r.Rerank(context.Background(), "alpha", candidates("alpha one", "alpha two", "alpha three"), 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLexical_EmptyQueryKeepsVectorOrder(t *testing.T) {
	r := NewLexical()

	cands := candidates("first", "second", "third")
	got, err := r.Rerank(context.Background(), "!!", cands, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range cands {
		assert.Equal(t, cands[i].ChunkID, got[i].ChunkID)
	}
}

func TestLexical_EmptyCandidates(t *testing.T) {
	r := NewLexical()

	got, err := r.Rerank(context.Background(), "anything", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLexical_TiesKeepVectorOrder(t *testing.T) {
	r := NewLexical()

	cands := candidates("alpha beta", "alpha gamma")
	got, err := r.Rerank(context.Background(), "alpha", cands, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ChunkID)
	assert.Equal(t, "b", got[1].ChunkID)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"lowercases", "Vector DATABASE", []string{"vector", "database"}},
		{"drops single chars", "a b vector", []string{"vector"}},
		{"splits on punctuation", "store,index;search", []string{"store", "index", "search"}},
		{"keeps underscores", "chunk_id", []string{"chunk_id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.text)
			assert.Len(t, got, len(tt.want))
			for _, term := range tt.want {
				assert.Contains(t, got, term)
			}
		})
	}
}
