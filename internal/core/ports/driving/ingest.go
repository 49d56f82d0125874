package driving

import (
	"context"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

// IngestRequest is the ingestion boundary input.
type IngestRequest struct {
	// DocumentID is the stable unique token for the document.
	DocumentID string

	// Name is the human-readable document name.
	Name string

	// Mime is the declared media type.
	Mime string

	// Text is the raw document text.
	Text string

	// Metadata contains key-value pairs carried into the index.
	Metadata map[string]any
}

// IngestService turns raw documents into chunks, embeddings, and
// indexed vectors. Each document is processed independently: a failure
// never affects sibling documents.
type IngestService interface {
	// Ingest runs the full pipeline for one document. On failure the
	// document is marked failed with the failing step's error kind and
	// the error is returned.
	Ingest(ctx context.Context, req IngestRequest) (*domain.Document, error)

	// Delete removes a document from the metadata store and every
	// active vector backend. Idempotent.
	Delete(ctx context.Context, documentID string) error
}
