package driving

import (
	"context"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

// MigrationStatus is a snapshot of the migration for operators.
type MigrationStatus struct {
	// State is the persisted migration record, nil before migration start.
	State *domain.MigrationState

	// BackfillRunning reports whether the backfill job is active.
	BackfillRunning bool

	// DocumentsMigrated counts documents the backfill has completed.
	DocumentsMigrated int

	// PendingRetries is the queued secondary-write count.
	PendingRetries int

	// Divergence is the latest cutover verification report, nil until
	// the first verification runs.
	Divergence *domain.DivergenceReport
}

// MigrationControl is the operator surface for the zero-downtime index
// migration. Transitions are single-writer: concurrent attempts fail
// with domain.ErrInvalidMigrationTransition rather than racing.
type MigrationControl interface {
	// Start creates the migration record and enters dual-write.
	Start(ctx context.Context) error

	// StartBackfill enters backfilling and launches the backfill job.
	StartBackfill(ctx context.Context) error

	// PauseBackfill stops the backfill at the next document boundary.
	PauseBackfill(ctx context.Context) error

	// ResumeBackfill relaunches a paused backfill from the durable cursor.
	ResumeBackfill(ctx context.Context) error

	// Verify runs cutover verification sampling and records the report.
	// Divergence above tolerance halts progression.
	Verify(ctx context.Context) (*domain.DivergenceReport, error)

	// Repair re-copies one document into the secondary backend, fixing
	// divergence before a re-verify.
	Repair(ctx context.Context, documentID string) error

	// FlushRetries replays queued secondary writes, in order, stopping
	// at the first failure.
	FlushRetries(ctx context.Context) error

	// Promote confirms parity and enters secondary-only.
	Promote(ctx context.Context) error

	// Decommission retires the migration after the grace window.
	Decommission(ctx context.Context) error

	// Status reports the current migration snapshot.
	Status(ctx context.Context) (*MigrationStatus, error)
}
