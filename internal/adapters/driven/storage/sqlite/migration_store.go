package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
)

// migrationStore implements driven.MigrationStore on a single-row
// table, so exactly one migration record can exist at a time.
type migrationStore struct {
	store *Store
}

var _ driven.MigrationStore = (*migrationStore)(nil)

// Get retrieves the migration state.
func (s *migrationStore) Get(ctx context.Context) (*domain.MigrationState, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, phase, cursor_created_at, cursor_document_id, halted, grace_until, started_at, updated_at
		FROM migration_state WHERE singleton = 1
	`)

	var state domain.MigrationState
	var phase string
	var cursorCreatedAt, graceUntil sql.NullTime
	var halted int

	err := row.Scan(&state.ID, &phase, &cursorCreatedAt, &state.Cursor.DocumentID,
		&halted, &graceUntil, &state.StartedAt, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning migration state: %w", err)
	}

	state.Phase = domain.MigrationPhase(phase)
	state.Halted = halted != 0
	if cursorCreatedAt.Valid {
		state.Cursor.CreatedAt = cursorCreatedAt.Time.UTC()
	}
	if graceUntil.Valid {
		state.GraceUntil = graceUntil.Time.UTC()
	}
	state.StartedAt = state.StartedAt.UTC()
	state.UpdatedAt = state.UpdatedAt.UTC()
	return &state, nil
}

// Save stores or updates the migration state.
func (s *migrationStore) Save(ctx context.Context, state *domain.MigrationState) error {
	if state == nil || state.ID == "" {
		return domain.ErrInvalidInput
	}

	state.UpdatedAt = time.Now().UTC()
	if state.StartedAt.IsZero() {
		state.StartedAt = state.UpdatedAt
	}

	halted := 0
	if state.Halted {
		halted = 1
	}

	var cursorCreatedAt, graceUntil any
	if !state.Cursor.CreatedAt.IsZero() {
		cursorCreatedAt = state.Cursor.CreatedAt.UTC()
	}
	if !state.GraceUntil.IsZero() {
		graceUntil = state.GraceUntil.UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO migration_state (singleton, id, phase, cursor_created_at, cursor_document_id, halted, grace_until, started_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(singleton) DO UPDATE SET
			id = excluded.id,
			phase = excluded.phase,
			cursor_created_at = excluded.cursor_created_at,
			cursor_document_id = excluded.cursor_document_id,
			halted = excluded.halted,
			grace_until = excluded.grace_until,
			updated_at = excluded.updated_at
	`, state.ID, string(state.Phase), cursorCreatedAt, state.Cursor.DocumentID,
		halted, graceUntil, state.StartedAt, state.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving migration state: %w", err)
	}
	return nil
}

// Clear removes the migration state after decommission.
func (s *migrationStore) Clear(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, `DELETE FROM migration_state`); err != nil {
		return fmt.Errorf("clearing migration state: %w", err)
	}
	return nil
}
