package driving

import (
	"context"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

// QueryService provides tuned similarity retrieval.
type QueryService interface {
	// Query embeds the query text and retrieves candidates under the
	// given policy. A nil policy selects the configured default; the
	// policy actually applied is returned in the result.
	Query(ctx context.Context, text string, policy *domain.RetrievalPolicy, filters []domain.Filter) (*domain.RetrievalResult, error)

	// QueryVector retrieves candidates for an already-embedded query.
	QueryVector(ctx context.Context, vector []float32, policy *domain.RetrievalPolicy, filters []domain.Filter) (*domain.RetrievalResult, error)
}
