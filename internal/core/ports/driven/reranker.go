package driven

import (
	"context"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

// Reranker re-scores a candidate set with a secondary, more expensive
// relevance function. This is an optional service - when nil,
// rerank-enabled policies fall back to vector order.
type Reranker interface {
	// Rerank re-scores candidates against the query and returns them
	// re-sorted, truncated to at most topN. Rerank never increases the
	// result count.
	Rerank(ctx context.Context, query string, candidates []domain.CandidateResult, topN int) ([]domain.CandidateResult, error)

	// ModelName returns the name of the reranking model being used.
	ModelName() string
}
