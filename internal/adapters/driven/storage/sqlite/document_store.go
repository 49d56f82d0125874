package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, name, size, mime, status, failure_reason, chunk_count, metadata, created_at, updated_at`

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}

	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, name, size, mime, status, failure_reason, chunk_count, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			size = excluded.size,
			mime = excluded.mime,
			status = excluded.status,
			failure_reason = excluded.failure_reason,
			chunk_count = excluded.chunk_count,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Name, doc.Size, doc.Mime, string(doc.Status),
		nullString(doc.FailureReason), doc.ChunkCount, string(metaJSON),
		doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// SetStatus advances a document's lifecycle state.
func (s *documentStore) SetStatus(ctx context.Context, documentID string, status domain.DocumentStatus, reason string) error {
	doc, err := s.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if !doc.Status.CanTransition(status) {
		return fmt.Errorf("%w: document %s cannot move %s -> %s",
			domain.ErrInvalidInput, documentID, doc.Status, status)
	}

	_, err = s.store.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, failure_reason = ?, updated_at = ? WHERE id = ?
	`, string(status), nullString(reason), time.Now().UTC(), documentID)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// SaveChunks stores chunks for a document in one transaction.
func (s *documentStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning chunk transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, text, token_count, page_start, page_end, position, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			token_count = excluded.token_count,
			page_start = excluded.page_start,
			page_end = excluded.page_end,
			position = excluded.position,
			metadata = excluded.metadata
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		metaJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Text,
			chunk.TokenCount, chunk.PageStart, chunk.PageEnd, chunk.Position, string(metaJSON)); err != nil {
			return fmt.Errorf("saving chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// GetChunks retrieves all chunks for a document, ordered by position.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, text, token_count, page_start, page_end, position, metadata
		FROM chunks WHERE document_id = ? ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var metaJSON string
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Text, &chunk.TokenCount,
			&chunk.PageStart, &chunk.PageEnd, &chunk.Position, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// ListDocuments returns all documents in (created_at, id) order.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// ListDocumentsAfter returns up to limit indexed documents strictly
// after the cursor in the stable (created_at, id) backfill order.
func (s *documentStore) ListDocumentsAfter(ctx context.Context, cursor domain.BackfillCursor, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE status = ?
		  AND (created_at > ? OR (created_at = ? AND id > ?))
		ORDER BY created_at, id
		LIMIT ?
	`, string(domain.StatusIndexed), cursor.CreatedAt.UTC(), cursor.CreatedAt.UTC(), cursor.DocumentID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying documents after cursor: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// DeleteDocument removes a document and its chunks. Idempotent.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var status, metaJSON string
	var failureReason sql.NullString
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(&doc.ID, &doc.Name, &doc.Size, &doc.Mime, &status,
		&failureReason, &doc.ChunkCount, &metaJSON, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	doc.FailureReason = failureReason.String
	if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time.UTC()
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time.UTC()
	}
	return &doc, nil
}

func collectDocuments(rows *sql.Rows) ([]domain.Document, error) {
	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}
