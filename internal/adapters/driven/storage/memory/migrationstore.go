package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
)

// Ensure MigrationStore implements the interface.
var _ driven.MigrationStore = (*MigrationStore)(nil)

// MigrationStore is an in-memory implementation of driven.MigrationStore.
type MigrationStore struct {
	mu    sync.RWMutex
	state *domain.MigrationState
}

// NewMigrationStore creates a new in-memory migration store.
func NewMigrationStore() *MigrationStore {
	return &MigrationStore{}
}

// Get retrieves the migration state.
func (s *MigrationStore) Get(_ context.Context) (*domain.MigrationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, domain.ErrNotFound
	}
	copied := *s.state
	return &copied, nil
}

// Save stores or updates the migration state.
func (s *MigrationStore) Save(_ context.Context, state *domain.MigrationState) error {
	if state == nil || state.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	state.UpdatedAt = time.Now().UTC()
	if state.StartedAt.IsZero() {
		state.StartedAt = state.UpdatedAt
	}
	copied := *state
	s.state = &copied
	return nil
}

// Clear removes the migration state.
func (s *MigrationStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nil
	return nil
}
