package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
	"github.com/custodia-labs/vectra-cli/internal/logger"
)

// WriteRouter fans mutations out to the primary and secondary vector
// backends according to the current migration phase. The authoritative
// backend's result decides the call; mirror failures are queued for
// replay and never propagate to the caller.
type WriteRouter struct {
	primary    driven.VectorStore
	secondary  driven.VectorStore
	migrations driven.MigrationStore
	retries    driven.RetryQueue
}

// NewWriteRouter creates a phase-aware write router.
// The secondary store may be nil until a migration is configured.
func NewWriteRouter(
	primary driven.VectorStore,
	secondary driven.VectorStore,
	migrations driven.MigrationStore,
	retries driven.RetryQueue,
) *WriteRouter {
	return &WriteRouter{
		primary:    primary,
		secondary:  secondary,
		migrations: migrations,
		retries:    retries,
	}
}

// phase reads the current migration phase. Absence of a migration
// record means steady state.
func (r *WriteRouter) phase(ctx context.Context) (domain.MigrationPhase, error) {
	state, err := r.migrations.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PhasePrimaryOnly, nil
		}
		return "", fmt.Errorf("read migration state: %w", err)
	}
	return state.Phase, nil
}

// authority returns the backend whose result decides a call in the
// given phase, and the mirror that receives a best-effort copy (nil
// when no mirroring applies).
func (r *WriteRouter) authority(phase domain.MigrationPhase) (authority, mirror driven.VectorStore) {
	if phase.ReadsSecondary() {
		// After cutover the old primary keeps receiving mirror writes
		// until decommission, ready for rollback.
		return r.secondary, r.primary
	}
	if phase.WritesSecondary() && r.secondary != nil {
		return r.primary, r.secondary
	}
	return r.primary, nil
}

// Reader returns the backend that serves queries in the current phase.
func (r *WriteRouter) Reader(ctx context.Context) (driven.VectorStore, error) {
	phase, err := r.phase(ctx)
	if err != nil {
		return nil, err
	}
	if phase.ReadsSecondary() {
		return r.secondary, nil
	}
	return r.primary, nil
}

// Upsert applies the batch to the authoritative backend and mirrors it
// when the phase requires. Both writes run concurrently; only the
// authoritative result is returned. A failed mirror write is queued.
func (r *WriteRouter) Upsert(ctx context.Context, documentID string, items []domain.EmbeddingUpsert) error {
	phase, err := r.phase(ctx)
	if err != nil {
		return err
	}
	authority, mirror := r.authority(phase)

	var wg sync.WaitGroup
	var authErr, mirrorErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		authErr = authority.Upsert(ctx, items)
	}()

	if mirror != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mirrorErr = mirror.Upsert(ctx, items)
		}()
	}
	wg.Wait()

	if mirror != nil && mirrorErr != nil {
		r.queueRetry(ctx, driven.RetryOp{
			Kind:       driven.RetryUpsert,
			DocumentID: documentID,
			Items:      items,
		}, mirrorErr)
	}

	if authErr != nil {
		return fmt.Errorf("upsert %s: %w", authority.Name(), authErr)
	}
	return nil
}

// Delete removes the document's vectors from the authoritative backend
// and mirrors the delete in every phase that touches the secondary.
// Deletes are mirrored unconditionally so a delete can never be undone
// by a concurrent backfill copy.
func (r *WriteRouter) Delete(ctx context.Context, documentID string) error {
	phase, err := r.phase(ctx)
	if err != nil {
		return err
	}
	authority, mirror := r.authority(phase)

	var wg sync.WaitGroup
	var authErr, mirrorErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		authErr = authority.DeleteByDocument(ctx, documentID)
	}()

	if mirror != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mirrorErr = mirror.DeleteByDocument(ctx, documentID)
		}()
	}
	wg.Wait()

	if mirror != nil && mirrorErr != nil {
		r.queueRetry(ctx, driven.RetryOp{
			Kind:       driven.RetryDelete,
			DocumentID: documentID,
		}, mirrorErr)
	}

	if authErr != nil {
		return fmt.Errorf("delete %s: %w", authority.Name(), authErr)
	}
	return nil
}

// queueRetry persists a failed mirror write for later replay.
func (r *WriteRouter) queueRetry(ctx context.Context, op driven.RetryOp, cause error) {
	logger.Warn("mirror write failed for document %s, queued for retry: %v", op.DocumentID, cause)
	if err := r.retries.Enqueue(ctx, op); err != nil {
		// The mirror is behind and the retry could not be recorded.
		// Surface loudly; backfill re-verification will catch the gap.
		logger.Error("retry enqueue failed for document %s: %v", op.DocumentID, err)
	}
}

// PendingRetries reports the queued mirror-write count.
func (r *WriteRouter) PendingRetries(ctx context.Context) (int, error) {
	return r.retries.Pending(ctx)
}

// DrainRetries replays queued mirror writes against the current mirror
// backend, in order, stopping at the first failure. Replay is safe to
// repeat: upserts are idempotent and deletes are no-ops when absent.
func (r *WriteRouter) DrainRetries(ctx context.Context) error {
	phase, err := r.phase(ctx)
	if err != nil {
		return err
	}
	_, mirror := r.authority(phase)
	if mirror == nil {
		return nil
	}

	return r.retries.Drain(ctx, func(ctx context.Context, op driven.RetryOp) error {
		switch op.Kind {
		case driven.RetryUpsert:
			return mirror.Upsert(ctx, op.Items)
		case driven.RetryDelete:
			return mirror.DeleteByDocument(ctx, op.DocumentID)
		default:
			logger.Warn("dropping unknown retry op %q for document %s", op.Kind, op.DocumentID)
			return nil
		}
	})
}

// embedWithRetry calls the embedding gateway with bounded retry:
// up to maxEmbedAttempts attempts, backoff doubling from embedBackoff,
// honouring context cancellation between attempts.
const (
	maxEmbedAttempts = 3
	embedBackoff     = 250 * time.Millisecond
)

func embedWithRetry(ctx context.Context, embedder driven.EmbeddingService, texts []string) ([][]float32, error) {
	var lastErr error
	backoff := embedBackoff

	for attempt := 1; attempt <= maxEmbedAttempts; attempt++ {
		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		logger.Debug("embedding attempt %d/%d failed: %v", attempt, maxEmbedAttempts, err)

		if attempt == maxEmbedAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", maxEmbedAttempts, lastErr)
}
