// Package qdrant provides a vector store adapter backed by a Qdrant
// server over its REST API.
//
// The collection is created on first use with cosine distance. Native
// cosine scores in [-1,1] are normalised to the canonical [0,1]
// similarity before results are returned, so score thresholds mean the
// same thing as on every other backend.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// DefaultTimeout bounds every backend call. On timeout the call fails
// with domain.ErrBackendUnavailable and is not retried transparently.
const DefaultTimeout = 15 * time.Second

// Config holds configuration for the Qdrant adapter.
type Config struct {
	// URL is the Qdrant server base URL (required).
	URL string

	// APIKey is sent in the api-key header when set.
	APIKey string

	// Collection is the collection name (required).
	Collection string

	// Dimension is the vector size (required).
	Dimension int

	// ModelID pins the adapter to an embedding model. Upserts carrying
	// a different ModelID are rejected. Empty disables the check.
	ModelID string

	// Timeout bounds each HTTP call (default: 15s).
	Timeout time.Duration
}

// Store is a Qdrant-backed implementation of driven.VectorStore.
type Store struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	modelID    string
	client     *http.Client
}

// NewStore creates a Qdrant adapter and ensures the collection exists.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("%w: qdrant URL and collection are required", domain.ErrInvalidInput)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	s := &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		modelID:    cfg.ModelID,
		client:     &http.Client{Timeout: timeout},
	}

	// Create collection if missing; Qdrant accepts re-creation with the
	// same schema.
	body := map[string]any{
		"vectors": map[string]any{
			"size":     cfg.Dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", cfg.Collection), body, nil); err != nil {
		return nil, err
	}
	return s, nil
}

// Upsert stores a batch of chunk vectors as Qdrant points.
func (s *Store) Upsert(ctx context.Context, items []domain.EmbeddingUpsert) error {
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		if len(item.Vector) != s.dimension {
			return fmt.Errorf("%w: expected %d, got %d",
				domain.ErrDimensionMismatch, s.dimension, len(item.Vector))
		}
		if item.ModelID != "" && s.modelID != "" && item.ModelID != s.modelID {
			return fmt.Errorf("%w: collection pinned to %q, got %q",
				domain.ErrModelMismatch, s.modelID, item.ModelID)
		}
	}

	points := make([]map[string]any, len(items))
	for i, item := range items {
		payload := map[string]any{
			"document_id": item.DocumentID,
			"text":        item.Text,
		}
		for k, v := range item.Metadata {
			payload[k] = v
		}
		points[i] = map[string]any{
			"id":      item.ChunkID,
			"vector":  item.Vector,
			"payload": payload,
		}
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", s.collection)
	return s.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil)
}

// Query searches the collection and normalises native scores.
func (s *Store) Query(ctx context.Context, vector []float32, params domain.QueryParams) ([]domain.CandidateResult, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d",
			domain.ErrDimensionMismatch, s.dimension, len(vector))
	}

	filter, err := translateFilters(params.Filters)
	if err != nil {
		return nil, err
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        params.TopK,
		"with_payload": true,
	}
	if filter != nil {
		req["filter"] = filter
	}
	if params.ScoreThreshold > 0 {
		// Canonical [0,1] back to native cosine [-1,1]
		req["score_threshold"] = params.ScoreThreshold*2 - 1
	}

	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", s.collection)
	if err := s.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	results := make([]domain.CandidateResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		score := (r.Score + 1) / 2
		if score < params.ScoreThreshold {
			continue
		}

		candidate := domain.CandidateResult{
			ChunkID:  r.ID,
			Score:    score,
			Metadata: make(map[string]any, len(r.Payload)),
		}
		for k, v := range r.Payload {
			switch k {
			case "document_id":
				if id, ok := v.(string); ok {
					candidate.DocumentID = id
				}
			case "text":
				if text, ok := v.(string); ok {
					candidate.Text = text
				}
			default:
				candidate.Metadata[k] = v
			}
		}
		results = append(results, candidate)
	}
	return results, nil
}

// DeleteByDocument removes every point whose payload carries the
// document ID. Deleting an absent document is a no-op on the server.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []any{
				map[string]any{
					"key":   "document_id",
					"match": map[string]any{"value": documentID},
				},
			},
		},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", s.collection)
	return s.do(ctx, http.MethodPost, path, body, nil)
}

// Name identifies the backend.
func (s *Store) Name() string {
	return "qdrant"
}

// Dimension returns the configured vector dimension.
func (s *Store) Dimension() int {
	return s.dimension
}

// Close releases resources.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// translateFilters converts the closed filter grammar into Qdrant
// filter syntax. Unsupported predicates fail with ErrInvalidFilter
// instead of being dropped.
func translateFilters(filters []domain.Filter) (map[string]any, error) {
	if err := domain.ValidateFilters(filters); err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return nil, nil
	}

	must := make([]any, 0, len(filters))
	for _, f := range filters {
		switch f.Op {
		case domain.FilterEq:
			must = append(must, map[string]any{
				"key":   f.Field,
				"match": map[string]any{"value": f.Value},
			})
		case domain.FilterIn:
			must = append(must, map[string]any{
				"key":   f.Field,
				"match": map[string]any{"any": f.Values},
			})
		case domain.FilterRange:
			must = append(must, map[string]any{
				"key":   f.Field,
				"range": map[string]any{"gte": f.Min, "lte": f.Max},
			})
		default:
			return nil, fmt.Errorf("%w: operator %q not supported by qdrant adapter",
				domain.ErrInvalidFilter, f.Op)
		}
	}
	return map[string]any{"must": must}, nil
}

// do executes one JSON request against the server. Transport failures
// and non-2xx statuses surface as ErrBackendUnavailable.
func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: qdrant %s %s: %v", domain.ErrBackendUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: qdrant %s %s: %s", domain.ErrBackendUnavailable, method, path, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding qdrant response: %v", domain.ErrBackendUnavailable, err)
		}
	}
	return nil
}
