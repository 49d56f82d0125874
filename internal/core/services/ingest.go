package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/vectra-cli/internal/chunker"
	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driving"
	"github.com/custodia-labs/vectra-cli/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// DefaultUpsertBatch is the upsert batch size for indexing.
const DefaultUpsertBatch = 64

// mimeByExtension maps known file extensions to media types,
// used when the request does not declare one.
var mimeByExtension = map[string]string{
	".txt": "text/plain",
	".md":  "text/markdown",
	".pdf": "application/pdf",
}

// IngestService runs the document ingestion pipeline: validate, chunk,
// embed, index. Documents are processed independently; one document's
// failure never affects its siblings.
type IngestService struct {
	docs        driven.DocumentStore
	embedder    driven.EmbeddingService
	router      *WriteRouter
	normalisers driven.NormaliserRegistry
	chunker     *chunker.Chunker
	events      driven.EventSink
	batch       int
}

// NewIngestService creates the ingestion pipeline service.
// The event sink is optional (can be nil).
func NewIngestService(
	docs driven.DocumentStore,
	embedder driven.EmbeddingService,
	router *WriteRouter,
	normalisers driven.NormaliserRegistry,
	ck *chunker.Chunker,
	events driven.EventSink,
) *IngestService {
	if ck == nil {
		ck = chunker.New()
	}
	return &IngestService{
		docs:        docs,
		embedder:    embedder,
		router:      router,
		normalisers: normalisers,
		chunker:     ck,
		events:      events,
		batch:       DefaultUpsertBatch,
	}
}

// SetUpsertBatch overrides the indexing batch size.
func (s *IngestService) SetUpsertBatch(n int) {
	if n > 0 {
		s.batch = n
	}
}

// Ingest runs the full pipeline for one document.
func (s *IngestService) Ingest(ctx context.Context, req driving.IngestRequest) (*domain.Document, error) {
	logger.Section("Ingest")

	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: document text is empty", domain.ErrInvalidInput)
	}
	if req.DocumentID == "" {
		req.DocumentID = uuid.NewString()
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:        req.DocumentID,
		Name:      req.Name,
		Size:      int64(len(req.Text)),
		Mime:      detectMime(req),
		Status:    domain.StatusUploaded,
		Metadata:  req.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	s.emit(domain.EventUploaded, doc.ID, "")
	logger.Debug("document %s uploaded (%d bytes, %s)", doc.ID, doc.Size, doc.Mime)

	// Type validation and text extraction
	text, err := s.normalisers.Normalise(ctx, doc.Mime, doc.Name, []byte(req.Text))
	if err != nil {
		return doc, s.fail(ctx, doc, err)
	}
	if strings.TrimSpace(text) == "" {
		return doc, s.fail(ctx, doc, fmt.Errorf("%w: no text content after normalisation", domain.ErrInvalidInput))
	}
	if err := s.advance(ctx, doc, domain.StatusTypeValidated); err != nil {
		return doc, err
	}

	// Chunking
	chunks, err := s.chunker.Chunk(doc, text)
	if err != nil {
		return doc, s.fail(ctx, doc, err)
	}
	if err := s.docs.SaveChunks(ctx, chunks); err != nil {
		return doc, s.fail(ctx, doc, fmt.Errorf("save chunks: %w", err))
	}
	doc.ChunkCount = len(chunks)
	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		return doc, s.fail(ctx, doc, fmt.Errorf("save document: %w", err))
	}
	if err := s.advance(ctx, doc, domain.StatusChunked); err != nil {
		return doc, err
	}
	s.emit(domain.EventChunked, doc.ID, "")
	logger.Debug("document %s chunked into %d chunks", doc.ID, len(chunks))

	// Embedding
	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return doc, s.fail(ctx, doc, err)
	}
	if err := s.advance(ctx, doc, domain.StatusEmbedded); err != nil {
		return doc, err
	}
	s.emit(domain.EventEmbedded, doc.ID, "")

	// Indexing
	if err := s.index(ctx, doc, chunks, vectors); err != nil {
		return doc, s.fail(ctx, doc, err)
	}
	if err := s.advance(ctx, doc, domain.StatusIndexed); err != nil {
		return doc, err
	}
	s.emit(domain.EventIndexed, doc.ID, "")
	logger.Info("document %s indexed (%d chunks)", doc.ID, len(chunks))

	return doc, nil
}

// Delete removes a document from the metadata store and every active
// vector backend. Idempotent.
func (s *IngestService) Delete(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document ID is empty", domain.ErrInvalidInput)
	}
	if err := s.router.Delete(ctx, documentID); err != nil {
		return err
	}
	if err := s.docs.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document metadata: %w", err)
	}
	logger.Debug("document %s deleted", documentID)
	return nil
}

// embedChunks embeds the chunk texts in batches with bounded retry.
func (s *IngestService) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += s.batch {
		end := min(start+s.batch, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		batch, err := embedWithRetry(ctx, s.embedder, texts)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(vectors), len(chunks))
	}
	return vectors, nil
}

// index writes chunk vectors through the router in batches.
func (s *IngestService) index(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error {
	items := make([]domain.EmbeddingUpsert, len(chunks))
	for i, c := range chunks {
		items[i] = domain.EmbeddingUpsert{
			DocumentID: doc.ID,
			ChunkID:    c.ID,
			Vector:     vectors[i],
			ModelID:    s.embedder.ModelName(),
			Text:       c.Text,
			Metadata:   upsertMetadata(doc, c),
		}
	}
	for start := 0; start < len(items); start += s.batch {
		end := min(start+s.batch, len(items))
		if err := s.router.Upsert(ctx, doc.ID, items[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// advance moves the document to the next pipeline state.
func (s *IngestService) advance(ctx context.Context, doc *domain.Document, to domain.DocumentStatus) error {
	if err := s.docs.SetStatus(ctx, doc.ID, to, ""); err != nil {
		return fmt.Errorf("advance to %s: %w", to, err)
	}
	doc.Status = to
	return nil
}

// fail marks the document failed with the causing error.
func (s *IngestService) fail(ctx context.Context, doc *domain.Document, cause error) error {
	if err := s.docs.SetStatus(ctx, doc.ID, domain.StatusFailed, cause.Error()); err != nil {
		logger.Error("could not mark document %s failed: %v", doc.ID, err)
	}
	doc.Status = domain.StatusFailed
	doc.FailureReason = cause.Error()
	s.emit(domain.EventFailed, doc.ID, cause.Error())
	return cause
}

// emit delivers a lifecycle event when a sink is configured.
func (s *IngestService) emit(kind domain.LifecycleEventKind, documentID, reason string) {
	if s.events == nil {
		return
	}
	s.events.Emit(domain.LifecycleEvent{
		Kind:       kind,
		DocumentID: documentID,
		Reason:     reason,
		At:         time.Now().UTC(),
	})
}

// detectMime resolves the request's media type, falling back to the
// file extension.
func detectMime(req driving.IngestRequest) string {
	if req.Mime != "" {
		return req.Mime
	}
	ext := strings.ToLower(filepath.Ext(req.Name))
	if mime, ok := mimeByExtension[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// upsertMetadata merges document metadata with chunk-level fields.
func upsertMetadata(doc *domain.Document, c domain.Chunk) map[string]any {
	md := make(map[string]any, len(doc.Metadata)+len(c.Metadata)+3)
	for k, v := range doc.Metadata {
		md[k] = v
	}
	for k, v := range c.Metadata {
		md[k] = v
	}
	md["document_name"] = doc.Name
	md["position"] = c.Position
	if c.PageStart > 0 {
		md["page_start"] = c.PageStart
		md["page_end"] = c.PageEnd
	}
	return md
}
