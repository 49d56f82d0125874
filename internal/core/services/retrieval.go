package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driving"
	"github.com/custodia-labs/vectra-cli/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.QueryService = (*RetrievalService)(nil)

// Built-in retrieval defaults, used when configuration has no override.
const (
	DefaultTopK           = 5
	DefaultScoreThreshold = 0.0
)

// Configuration keys read for the default retrieval policy.
const (
	cfgTopK           = "retrieval.top_k"
	cfgScoreThreshold = "retrieval.score_threshold"
	cfgRerankEnabled  = "retrieval.rerank_enabled"
	cfgRerankTopN     = "retrieval.rerank_top_n"
)

// RetrievalService provides tuned similarity retrieval over the active
// vector backend. The reranker and config store are optional (can be nil).
type RetrievalService struct {
	embedder driven.EmbeddingService
	router   *WriteRouter
	reranker driven.Reranker
	config   driven.ConfigStore
}

// NewRetrievalService creates the retrieval service.
func NewRetrievalService(
	embedder driven.EmbeddingService,
	router *WriteRouter,
	reranker driven.Reranker,
	config driven.ConfigStore,
) *RetrievalService {
	return &RetrievalService{
		embedder: embedder,
		router:   router,
		reranker: reranker,
		config:   config,
	}
}

// DefaultPolicy resolves the configured default retrieval policy.
func (s *RetrievalService) DefaultPolicy() domain.RetrievalPolicy {
	policy := domain.RetrievalPolicy{
		TopK:           DefaultTopK,
		ScoreThreshold: DefaultScoreThreshold,
	}
	if s.config == nil {
		return policy
	}
	if v := s.config.GetInt(cfgTopK); v > 0 {
		policy.TopK = v
	}
	if v := s.config.GetFloat(cfgScoreThreshold); v > 0 {
		policy.ScoreThreshold = v
	}
	policy.RerankEnabled = s.config.GetBool(cfgRerankEnabled)
	if v := s.config.GetInt(cfgRerankTopN); v > 0 {
		policy.RerankTopN = v
	}
	return policy
}

// Query embeds the query text and retrieves candidates under the policy.
func (s *RetrievalService) Query(ctx context.Context, text string, policy *domain.RetrievalPolicy, filters []domain.Filter) (*domain.RetrievalResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: query text is empty", domain.ErrInvalidInput)
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return s.retrieve(ctx, text, vector, policy, filters)
}

// QueryVector retrieves candidates for an already-embedded query.
// Reranking needs query text, so rerank-enabled policies are served in
// plain vector order here.
func (s *RetrievalService) QueryVector(ctx context.Context, vector []float32, policy *domain.RetrievalPolicy, filters []domain.Filter) (*domain.RetrievalResult, error) {
	return s.retrieve(ctx, "", vector, policy, filters)
}

func (s *RetrievalService) retrieve(ctx context.Context, queryText string, vector []float32, policy *domain.RetrievalPolicy, filters []domain.Filter) (*domain.RetrievalResult, error) {
	logger.Section("Retrieval")

	applied := s.DefaultPolicy()
	if policy != nil {
		applied = *policy
	}
	if err := applied.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateFilters(filters); err != nil {
		return nil, err
	}
	logger.Debug("policy: topK=%d threshold=%g rerank=%t topN=%d",
		applied.TopK, applied.ScoreThreshold, applied.RerankEnabled, applied.RerankTopN)

	reader, err := s.router.Reader(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug("querying backend %s", reader.Name())

	candidates, err := reader.Query(ctx, vector, domain.QueryParams{
		TopK:           applied.TopK,
		ScoreThreshold: applied.ScoreThreshold,
		Filters:        filters,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", reader.Name(), err)
	}

	result := &domain.RetrievalResult{
		Candidates: candidates,
		Applied:    applied,
	}

	if applied.RerankEnabled && s.reranker != nil && queryText != "" && len(candidates) > 0 {
		reranked, err := s.reranker.Rerank(ctx, queryText, candidates, applied.RerankTopN)
		if err != nil {
			// Reranking is best effort: keep the vector order.
			logger.Warn("rerank failed, keeping vector order: %v", err)
		} else {
			result.Candidates = reranked
			result.Reranked = true
		}
	}

	logger.Debug("returning %d candidates (reranked=%t)", len(result.Candidates), result.Reranked)
	return result, nil
}
