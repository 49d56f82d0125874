package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/logger"
)

// backfillJob tracks one background backfill run. Cancellation takes
// effect at document boundaries only, so no document is left half
// copied.
type backfillJob struct {
	mu       sync.Mutex
	cancel   context.CancelFunc
	running  bool
	migrated int
	done     chan struct{}
}

// Running reports whether the job goroutine is active.
func (j *backfillJob) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// Migrated returns the number of documents copied by this run.
func (j *backfillJob) Migrated() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.migrated
}

// Stop requests cancellation at the next document boundary.
func (j *backfillJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the job goroutine exits.
func (j *backfillJob) Wait() {
	<-j.done
}

func (j *backfillJob) finish() {
	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
	close(j.done)
}

func (j *backfillJob) countMigrated() {
	j.mu.Lock()
	j.migrated++
	j.mu.Unlock()
}

// launchBackfill starts the backfill goroutine from the given cursor.
// Caller must hold the orchestrator mutex.
func (o *MigrationOrchestrator) launchBackfill(cursor domain.BackfillCursor) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &backfillJob{
		cancel:  cancel,
		running: true,
		done:    make(chan struct{}),
	}
	o.backfill = job

	go func() {
		defer job.finish()
		if err := o.runBackfill(ctx, job, cursor); err != nil {
			if ctx.Err() != nil {
				logger.Info("backfill paused: %d documents migrated this run", job.Migrated())
				return
			}
			logger.Warn("backfill stopped on error: %v", err)
			return
		}
		logger.Info("backfill complete: %d documents migrated this run", job.Migrated())
	}()
}

// runBackfill copies indexed documents into the secondary backend in
// stable (CreatedAt, ID) order. The cursor is persisted after each
// document, before the scan advances, so a crash or pause loses at
// most one document's work and replays it idempotently.
func (o *MigrationOrchestrator) runBackfill(ctx context.Context, job *backfillJob, cursor domain.BackfillCursor) error {
	logger.Section("Backfill")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		docs, err := o.docs.ListDocumentsAfter(ctx, cursor, o.opts.BackfillBatch)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}

		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := o.backfillDocument(ctx, doc); err != nil {
				return err
			}

			cursor = domain.BackfillCursor{CreatedAt: doc.CreatedAt, DocumentID: doc.ID}
			if err := o.saveCursor(ctx, cursor); err != nil {
				return err
			}
			job.countMigrated()
		}
	}
}

// backfillDocument re-embeds one document's chunks and upserts them
// into the secondary. A document deleted since the scan listed it has
// no chunks left and is skipped; the mirrored delete already cleaned
// the secondary.
func (o *MigrationOrchestrator) backfillDocument(ctx context.Context, doc domain.Document) error {
	chunks, err := o.docs.GetChunks(ctx, doc.ID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		logger.Debug("backfill: document %s has no chunks, skipping", doc.ID)
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedWithRetry(ctx, o.embedder, texts)
	if err != nil {
		return err
	}

	items := make([]domain.EmbeddingUpsert, len(chunks))
	for i, c := range chunks {
		items[i] = domain.EmbeddingUpsert{
			DocumentID: doc.ID,
			ChunkID:    c.ID,
			Vector:     vectors[i],
			ModelID:    o.embedder.ModelName(),
			Text:       c.Text,
			Metadata:   upsertMetadata(&doc, c),
		}
	}
	if err := o.secondary.Upsert(ctx, items); err != nil {
		return err
	}
	logger.Debug("backfill: document %s copied (%d chunks)", doc.ID, len(chunks))
	return nil
}

// saveCursor persists backfill progress.
func (o *MigrationOrchestrator) saveCursor(ctx context.Context, cursor domain.BackfillCursor) error {
	state, err := o.store.Get(ctx)
	if err != nil {
		return err
	}
	state.Cursor = cursor
	state.UpdatedAt = time.Now().UTC()
	return o.store.Save(ctx, state)
}
