package driven

import (
	"context"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

// MigrationStore durably persists the single process-wide migration
// state so it survives process restart. Only the migration orchestrator
// writes to it.
type MigrationStore interface {
	// Get retrieves the migration state.
	// Returns domain.ErrNotFound when no migration exists.
	Get(ctx context.Context) (*domain.MigrationState, error)

	// Save stores or updates the migration state.
	Save(ctx context.Context, state *domain.MigrationState) error

	// Clear removes the migration state after decommission is confirmed.
	Clear(ctx context.Context) error
}
