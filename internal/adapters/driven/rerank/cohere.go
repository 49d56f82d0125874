package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
)

// Ensure CrossEncoder implements the interface.
var _ driven.Reranker = (*CrossEncoder)(nil)

// Default configuration values.
const (
	DefaultCohereURL   = "https://api.cohere.ai/v1"
	DefaultCohereModel = "rerank-english-v3.0"
	DefaultTimeout     = 30 * time.Second

	// maxRerankDocs is the API's per-request document limit.
	maxRerankDocs = 1000
)

// CrossEncoderConfig holds configuration for the REST cross-encoder.
type CrossEncoderConfig struct {
	// APIKey is the API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.cohere.ai/v1).
	BaseURL string

	// Model is the rerank model to use (default: rerank-english-v3.0).
	Model string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// CrossEncoder re-scores candidates through a hosted cross-encoder
// rerank endpoint (Cohere-compatible API shape).
type CrossEncoder struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// NewCrossEncoder creates a REST cross-encoder reranker.
func NewCrossEncoder(cfg CrossEncoderConfig) (*CrossEncoder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("rerank: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCohereURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultCohereModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &CrossEncoder{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Rerank sends the query and candidate texts to the rerank endpoint and
// returns the candidates reordered by relevance score, truncated to topN.
func (r *CrossEncoder) Rerank(ctx context.Context, query string, candidates []domain.CandidateResult, topN int) ([]domain.CandidateResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}
	if len(candidates) > maxRerankDocs {
		candidates = candidates[:maxRerankDocs]
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	reqBody := rerankRequest{
		Query:     query,
		Documents: texts,
		Model:     r.model,
		TopN:      topN,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		r.baseURL+"/rerank",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank error (status %d): %s", resp.StatusCode, string(body))
	}

	var rr rerankResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]domain.CandidateResult, 0, min(topN, len(rr.Results)))
	for _, res := range rr.Results {
		if res.Index < 0 || res.Index >= len(candidates) {
			continue
		}
		c := candidates[res.Index]
		c.Score = res.RelevanceScore
		out = append(out, c)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Score > out[b].Score
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

// ModelName returns the name of the reranking model being used.
func (r *CrossEncoder) ModelName() string {
	return r.model
}
