package driven

import (
	"context"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

// DocumentStore persists document and chunk metadata.
// Backed by SQLite; vectors live in the VectorStore, not here.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// SetStatus advances a document's lifecycle state. Fails with
	// domain.ErrInvalidInput if the transition is not permitted.
	SetStatus(ctx context.Context, documentID string, status domain.DocumentStatus, reason string) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// SaveChunks stores chunks for a document.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document, ordered by position.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// ListDocuments returns all documents.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// ListDocumentsAfter returns up to limit indexed documents strictly
	// after the cursor in (CreatedAt, ID) order. This is the backfill
	// scan: stable, resumable, never skips or repeats a document.
	ListDocumentsAfter(ctx context.Context, cursor domain.BackfillCursor, limit int) ([]domain.Document, error)

	// DeleteDocument removes a document and its chunks. Idempotent.
	DeleteDocument(ctx context.Context, id string) error
}
