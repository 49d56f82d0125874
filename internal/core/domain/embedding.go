package domain

// EmbeddingUpsert is a single item of a batch upsert into a vector store.
// A single index must never mix vectors produced by different
// (ModelID, Dimension) pairs; adapters reject mismatches at upsert.
type EmbeddingUpsert struct {
	// DocumentID is the owning document, used for deletion by document.
	DocumentID string

	// ChunkID is the upsert key: re-upserting the same ChunkID replaces
	// the prior vector and metadata.
	ChunkID string

	// Vector is the embedding to store.
	Vector []float32

	// ModelID names the embedding model that produced the vector. An
	// empty ModelID skips model identity enforcement.
	ModelID string

	// Text is the chunk content, carried as payload so query results can
	// be assembled without a metadata round-trip.
	Text string

	// Metadata contains key-value pairs stored alongside the vector.
	Metadata map[string]any
}

// CandidateResult is a single similarity hit returned by a vector store
// query. It is ephemeral: produced per query, never persisted.
type CandidateResult struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocumentID is the chunk's owning document.
	DocumentID string

	// Score is the canonical similarity in [0,1], higher = more similar,
	// regardless of the backend's native distance metric.
	Score float64

	// Text is the matched chunk content.
	Text string

	// Metadata contains the stored key-value pairs.
	Metadata map[string]any
}

// QueryParams carries the per-call knobs passed to a vector store query.
type QueryParams struct {
	// TopK caps the number of results. Must be positive.
	TopK int

	// ScoreThreshold excludes hits below this canonical similarity.
	ScoreThreshold float64

	// Filters restricts candidates by metadata predicates.
	Filters []Filter
}
