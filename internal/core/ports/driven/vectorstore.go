package driven

import (
	"context"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

// VectorStore is the uniform contract every vector backend satisfies.
// Backends differ in native distance metrics and filter syntax; the
// adapter is responsible for normalising both, so the three operations
// mean exactly the same thing regardless of implementation.
//
// Score normalisation: each adapter converts its native score (cosine,
// dot product, Euclidean) to a canonical similarity in [0,1], higher =
// more similar, before returning results. ScoreThreshold is always
// interpreted against the canonical score.
type VectorStore interface {
	// Upsert stores a batch of chunk vectors. It is idempotent:
	// re-upserting a ChunkID replaces the prior vector and metadata.
	// Fails with domain.ErrBackendUnavailable on transport failure and
	// domain.ErrDimensionMismatch if a vector's length disagrees with
	// the store's configured dimension.
	Upsert(ctx context.Context, items []domain.EmbeddingUpsert) error

	// Query returns up to TopK candidates ordered by canonical
	// similarity, descending, every one at or above ScoreThreshold.
	// Fails with domain.ErrBackendUnavailable or domain.ErrInvalidFilter.
	Query(ctx context.Context, vector []float32, params domain.QueryParams) ([]domain.CandidateResult, error)

	// DeleteByDocument removes every vector belonging to the document.
	// Idempotent: deleting an absent document is a no-op, not an error.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Name identifies the backend for logs and status reporting.
	Name() string

	// Dimension returns the configured vector dimension.
	Dimension() int

	// Close releases resources.
	Close() error
}
