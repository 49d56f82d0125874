package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

// fakeQdrant captures requests and serves canned search results.
type fakeQdrant struct {
	mux          *http.ServeMux
	upserts      []map[string]any
	deletes      []map[string]any
	searchResult []map[string]any
	lastSearch   map[string]any
}

func newFakeQdrant() *fakeQdrant {
	f := &fakeQdrant{mux: http.NewServeMux()}

	f.mux.HandleFunc("PUT /collections/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	f.mux.HandleFunc("PUT /collections/test/points", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.upserts = append(f.upserts, body)
		w.WriteHeader(http.StatusOK)
	})
	f.mux.HandleFunc("POST /collections/test/points/delete", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.deletes = append(f.deletes, body)
		w.WriteHeader(http.StatusOK)
	})
	f.mux.HandleFunc("POST /collections/test/points/search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&f.lastSearch)
		_ = json.NewEncoder(w).Encode(map[string]any{"result": f.searchResult})
	})

	return f
}

func newTestStore(t *testing.T, f *fakeQdrant) *Store {
	t.Helper()
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)

	s, err := NewStore(context.Background(), Config{
		URL:        srv.URL,
		Collection: "test",
		Dimension:  3,
	})
	require.NoError(t, err)
	return s
}

func TestStore_Upsert(t *testing.T) {
	f := newFakeQdrant()
	s := newTestStore(t, f)

	err := s.Upsert(context.Background(), []domain.EmbeddingUpsert{
		{
			DocumentID: "d1",
			ChunkID:    "11111111-1111-1111-1111-111111111111",
			Vector:     []float32{1, 0, 0},
			Text:       "alpha",
			Metadata:   map[string]any{"lang": "en"},
		},
	})
	require.NoError(t, err)
	require.Len(t, f.upserts, 1)

	points := f.upserts[0]["points"].([]any)
	require.Len(t, points, 1)
	point := points[0].(map[string]any)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", point["id"])

	payload := point["payload"].(map[string]any)
	assert.Equal(t, "d1", payload["document_id"])
	assert.Equal(t, "alpha", payload["text"])
	assert.Equal(t, "en", payload["lang"])
}

func TestStore_UpsertDimensionMismatch(t *testing.T) {
	f := newFakeQdrant()
	s := newTestStore(t, f)

	err := s.Upsert(context.Background(), []domain.EmbeddingUpsert{
		{DocumentID: "d1", ChunkID: "c1", Vector: []float32{1, 0}},
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Empty(t, f.upserts)
}

func TestStore_QueryNormalisesScores(t *testing.T) {
	f := newFakeQdrant()
	f.searchResult = []map[string]any{
		{"id": "c1", "score": 1.0, "payload": map[string]any{"document_id": "d1", "text": "hit", "page": 3.0}},
		{"id": "c2", "score": 0.0, "payload": map[string]any{"document_id": "d2", "text": "mid"}},
	}
	s := newTestStore(t, f)

	results, err := s.Query(context.Background(), []float32{1, 0, 0}, domain.QueryParams{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Native cosine 1.0 -> canonical 1.0; native 0.0 -> canonical 0.5
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 0.5, results[1].Score, 1e-9)

	assert.Equal(t, "d1", results[0].DocumentID)
	assert.Equal(t, "hit", results[0].Text)
	assert.Equal(t, 3.0, results[0].Metadata["page"])
	_, hasDocID := results[0].Metadata["document_id"]
	assert.False(t, hasDocID)
}

func TestStore_QueryTranslatesThresholdAndFilters(t *testing.T) {
	f := newFakeQdrant()
	s := newTestStore(t, f)

	_, err := s.Query(context.Background(), []float32{1, 0, 0}, domain.QueryParams{
		TopK:           5,
		ScoreThreshold: 0.75,
		Filters: []domain.Filter{
			{Field: "lang", Op: domain.FilterEq, Value: "en"},
			{Field: "page", Op: domain.FilterRange, Min: 1, Max: 10},
		},
	})
	require.NoError(t, err)

	// Canonical 0.75 -> native 0.5
	assert.InDelta(t, 0.5, f.lastSearch["score_threshold"].(float64), 1e-9)

	filter := f.lastSearch["filter"].(map[string]any)
	must := filter["must"].([]any)
	require.Len(t, must, 2)
}

func TestStore_QueryInvalidFilter(t *testing.T) {
	f := newFakeQdrant()
	s := newTestStore(t, f)

	_, err := s.Query(context.Background(), []float32{1, 0, 0}, domain.QueryParams{
		TopK:    5,
		Filters: []domain.Filter{{Field: "x", Op: domain.FilterOp("prefix"), Value: "a"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestStore_DeleteByDocument(t *testing.T) {
	f := newFakeQdrant()
	s := newTestStore(t, f)

	require.NoError(t, s.DeleteByDocument(context.Background(), "d1"))
	require.Len(t, f.deletes, 1)

	filter := f.deletes[0]["filter"].(map[string]any)
	must := filter["must"].([]any)
	clause := must[0].(map[string]any)
	assert.Equal(t, "document_id", clause["key"])
}

func TestStore_ServerDownIsBackendUnavailable(t *testing.T) {
	f := newFakeQdrant()
	srv := httptest.NewServer(f.mux)

	s, err := NewStore(context.Background(), Config{
		URL:        srv.URL,
		Collection: "test",
		Dimension:  3,
	})
	require.NoError(t, err)

	srv.Close()

	err = s.Upsert(context.Background(), []domain.EmbeddingUpsert{
		{DocumentID: "d1", ChunkID: "c1", Vector: []float32{1, 0, 0}},
	})
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)

	_, err = s.Query(context.Background(), []float32{1, 0, 0}, domain.QueryParams{TopK: 1})
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}
