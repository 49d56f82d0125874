package domain

import "time"

// MigrationPhase is a state of the index migration state machine.
type MigrationPhase string

// Migration phases. The transition table below is the complete state
// machine; no other transitions are valid.
const (
	// PhasePrimaryOnly is the steady state: writes and reads hit the
	// primary backend only.
	PhasePrimaryOnly MigrationPhase = "primary_only"

	// PhaseDualWrite applies every upsert/delete to both backends.
	// The primary result decides success; secondary failures are queued
	// for retry and never block the caller. Reads stay on the primary.
	PhaseDualWrite MigrationPhase = "dual_write"

	// PhaseBackfilling is dual-write plus the background backfill job
	// copying pre-migration documents into the secondary.
	PhaseBackfilling MigrationPhase = "backfilling"

	// PhaseCutoverVerify is dual-write plus sampled read verification
	// against both backends. Divergence above tolerance halts here.
	PhaseCutoverVerify MigrationPhase = "cutover_verify"

	// PhaseSecondaryOnly serves reads and writes from the secondary.
	// Dual-write is retained for a grace window before being disabled.
	PhaseSecondaryOnly MigrationPhase = "secondary_only"
)

// phaseTransitions is the complete set of permitted phase changes.
var phaseTransitions = map[MigrationPhase]MigrationPhase{
	PhasePrimaryOnly:   PhaseDualWrite,
	PhaseDualWrite:     PhaseBackfilling,
	PhaseBackfilling:   PhaseCutoverVerify,
	PhaseCutoverVerify: PhaseSecondaryOnly,
}

// CanTransition reports whether the phase may advance to the target.
func (p MigrationPhase) CanTransition(to MigrationPhase) bool {
	return phaseTransitions[p] == to
}

// Next returns the phase that follows this one, or empty for the
// terminal phase.
func (p MigrationPhase) Next() MigrationPhase {
	return phaseTransitions[p]
}

// WritesSecondary reports whether mutations must reach the secondary
// in this phase. Deletes are mirrored unconditionally in every
// non-primary-only phase so a delete can never outrun the backfill cursor.
func (p MigrationPhase) WritesSecondary() bool {
	return p != PhasePrimaryOnly
}

// ReadsSecondary reports whether queries are served by the secondary.
func (p MigrationPhase) ReadsSecondary() bool {
	return p == PhaseSecondaryOnly
}

// BackfillCursor marks backfill progress in the stable document order
// (CreatedAt, then DocumentID). The cursor is persisted before the
// backfill advances past a document, so a crash resumes at most one
// document's work.
type BackfillCursor struct {
	// CreatedAt is the creation timestamp of the last migrated document.
	CreatedAt time.Time

	// DocumentID is the ID of the last migrated document.
	DocumentID string
}

// IsZero reports whether the cursor has not advanced past any document.
func (c BackfillCursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.DocumentID == ""
}

// Less reports whether this cursor position orders strictly before the
// given document in the backfill total order.
func (c BackfillCursor) Less(d Document) bool {
	if c.CreatedAt.Before(d.CreatedAt) {
		return true
	}
	if c.CreatedAt.Equal(d.CreatedAt) {
		return c.DocumentID < d.ID
	}
	return false
}

// MigrationState is the process-wide, single-instance migration record.
// It survives process restart and is advanced only by the migration
// orchestrator under its single-writer discipline.
type MigrationState struct {
	// ID is the process-wide migration identifier. Exactly one
	// migration may exist at a time.
	ID string

	// Phase is the current state machine position.
	Phase MigrationPhase

	// Cursor is the backfill progress marker.
	Cursor BackfillCursor

	// Halted is set when cutover verification found divergence above
	// tolerance. Progression is blocked until an operator clears it.
	Halted bool

	// GraceUntil is when dual-write may be disabled after cutover.
	GraceUntil time.Time

	// StartedAt is when the migration was created.
	StartedAt time.Time

	// UpdatedAt is when the state last changed.
	UpdatedAt time.Time
}

// DivergenceSample records one verified query during cutover-verify.
type DivergenceSample struct {
	// ChunkID identifies the probe vector's source chunk.
	ChunkID string

	// PrimaryHits and SecondaryHits are the per-backend result counts.
	PrimaryHits   int
	SecondaryHits int

	// MissingFromSecondary counts primary hits absent from the secondary.
	MissingFromSecondary int

	// MaxScoreDelta is the largest canonical-score difference observed
	// for chunks present on both sides.
	MaxScoreDelta float64
}

// DivergenceReport aggregates cutover verification. It is a first-class
// reported state, not an error: divergence above tolerance halts the
// migration and waits for an operator.
type DivergenceReport struct {
	// Samples are the individual verified queries.
	Samples []DivergenceSample

	// ScoreEpsilon is the tolerance the samples were judged against.
	ScoreEpsilon float64

	// GeneratedAt is when the verification ran.
	GeneratedAt time.Time
}

// Diverged reports whether any sample exceeds tolerance: a primary hit
// missing from the secondary, or a score delta beyond epsilon.
// Ranking order is deliberately not compared; backends with different
// native metrics do not agree on exact ordering of near ties.
func (r DivergenceReport) Diverged() bool {
	for _, s := range r.Samples {
		if s.MissingFromSecondary > 0 || s.MaxScoreDelta > r.ScoreEpsilon {
			return true
		}
	}
	return false
}
