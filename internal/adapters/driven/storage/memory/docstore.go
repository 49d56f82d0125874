// Package memory provides in-memory implementations of the metadata
// store ports, used in tests and as lightweight defaults.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	s.documents[doc.ID] = *doc
	return nil
}

// SetStatus advances a document's lifecycle state.
func (s *DocumentStore) SetStatus(_ context.Context, documentID string, status domain.DocumentStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[documentID]
	if !ok {
		return domain.ErrNotFound
	}
	if !doc.Status.CanTransition(status) {
		return fmt.Errorf("%w: document %s cannot move %s -> %s",
			domain.ErrInvalidInput, documentID, doc.Status, status)
	}
	doc.Status = status
	doc.FailureReason = reason
	doc.UpdatedAt = time.Now().UTC()
	s.documents[documentID] = doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// SaveChunks stores chunks for a document.
func (s *DocumentStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docID := chunks[0].DocumentID
	s.chunks[docID] = append([]domain.Chunk(nil), chunks...)
	return nil
}

// GetChunks retrieves all chunks for a document, ordered by position.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := append([]domain.Chunk(nil), s.chunks[documentID]...)
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Position < chunks[j].Position
	})
	return chunks, nil
}

// ListDocuments returns all documents in (CreatedAt, ID) order.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}
	sortDocuments(docs)
	return docs, nil
}

// ListDocumentsAfter returns up to limit indexed documents strictly
// after the cursor in the stable (CreatedAt, ID) order.
func (s *DocumentStore) ListDocumentsAfter(_ context.Context, cursor domain.BackfillCursor, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []domain.Document
	for _, doc := range s.documents {
		if doc.Status != domain.StatusIndexed {
			continue
		}
		if cursor.Less(doc) {
			docs = append(docs, doc)
		}
	}
	sortDocuments(docs)
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// DeleteDocument removes a document and its chunks. Idempotent.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

func sortDocuments(docs []domain.Document) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
}
