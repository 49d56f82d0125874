package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driving"
	"github.com/custodia-labs/vectra-cli/internal/logger"
)

// Ensure MigrationOrchestrator implements the interface.
var _ driving.MigrationControl = (*MigrationOrchestrator)(nil)

// Migration defaults, overridable through MigrationOptions.
const (
	DefaultScoreEpsilon  = 0.02
	DefaultVerifySamples = 20
	DefaultVerifyTopK    = 10
	DefaultGraceWindow   = 24 * time.Hour
	DefaultBackfillBatch = 50
)

// MigrationOptions tunes the orchestrator. Zero values select defaults.
type MigrationOptions struct {
	// ScoreEpsilon is the per-hit canonical score tolerance for
	// cutover verification.
	ScoreEpsilon float64

	// VerifySamples is how many chunk-derived probe queries to run.
	VerifySamples int

	// VerifyTopK is the result depth compared per probe.
	VerifyTopK int

	// GraceWindow is how long dual-write is retained after promotion.
	GraceWindow time.Duration

	// BackfillBatch is the document page size for the backfill scan.
	BackfillBatch int
}

func (o *MigrationOptions) applyDefaults() {
	if o.ScoreEpsilon <= 0 {
		o.ScoreEpsilon = DefaultScoreEpsilon
	}
	if o.VerifySamples <= 0 {
		o.VerifySamples = DefaultVerifySamples
	}
	if o.VerifyTopK <= 0 {
		o.VerifyTopK = DefaultVerifyTopK
	}
	if o.GraceWindow <= 0 {
		o.GraceWindow = DefaultGraceWindow
	}
	if o.BackfillBatch <= 0 {
		o.BackfillBatch = DefaultBackfillBatch
	}
}

// MigrationOrchestrator drives the zero-downtime index migration state
// machine. All transitions run under one mutex: concurrent operator
// commands serialise instead of racing, and a command that loses the
// race fails its transition check.
type MigrationOrchestrator struct {
	mu sync.Mutex

	store     driven.MigrationStore
	docs      driven.DocumentStore
	primary   driven.VectorStore
	secondary driven.VectorStore
	embedder  driven.EmbeddingService
	router    *WriteRouter
	opts      MigrationOptions

	backfill   *backfillJob
	lastReport *domain.DivergenceReport

	// onDecommission runs after the migration record is cleared,
	// letting the caller repoint backend configuration.
	onDecommission func()
}

// NewMigrationOrchestrator creates the migration orchestrator.
func NewMigrationOrchestrator(
	store driven.MigrationStore,
	docs driven.DocumentStore,
	primary driven.VectorStore,
	secondary driven.VectorStore,
	embedder driven.EmbeddingService,
	router *WriteRouter,
	opts MigrationOptions,
) *MigrationOrchestrator {
	opts.applyDefaults()
	return &MigrationOrchestrator{
		store:     store,
		docs:      docs,
		primary:   primary,
		secondary: secondary,
		embedder:  embedder,
		router:    router,
		opts:      opts,
	}
}

// SetDecommissionHook registers a callback invoked after decommission
// clears the migration record.
func (o *MigrationOrchestrator) SetDecommissionHook(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onDecommission = fn
}

// Start creates the migration record and enters dual-write.
func (o *MigrationOrchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.secondary == nil {
		return fmt.Errorf("%w: no secondary backend configured", domain.ErrInvalidInput)
	}

	if _, err := o.store.Get(ctx); err == nil {
		return fmt.Errorf("%w: a migration already exists", domain.ErrInvalidMigrationTransition)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("read migration state: %w", err)
	}

	now := time.Now().UTC()
	state := &domain.MigrationState{
		ID:        uuid.NewString(),
		Phase:     domain.PhaseDualWrite,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := o.store.Save(ctx, state); err != nil {
		return fmt.Errorf("save migration state: %w", err)
	}
	logger.Info("migration %s started: %s -> %s", state.ID, o.primary.Name(), o.secondary.Name())
	return nil
}

// StartBackfill enters backfilling and launches the backfill job.
func (o *MigrationOrchestrator) StartBackfill(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	state, err := o.transition(ctx, domain.PhaseBackfilling)
	if err != nil {
		return err
	}
	o.launchBackfill(state.Cursor)
	return nil
}

// PauseBackfill stops the backfill at the next document boundary.
func (o *MigrationOrchestrator) PauseBackfill(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.requirePhase(ctx, domain.PhaseBackfilling); err != nil {
		return err
	}
	if o.backfill == nil || !o.backfill.Running() {
		return fmt.Errorf("%w: backfill is not running", domain.ErrInvalidInput)
	}
	o.backfill.Stop()
	logger.Info("backfill pause requested")
	return nil
}

// ResumeBackfill relaunches a paused backfill from the durable cursor.
func (o *MigrationOrchestrator) ResumeBackfill(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.requirePhase(ctx, domain.PhaseBackfilling); err != nil {
		return err
	}
	if o.backfill != nil && o.backfill.Running() {
		return fmt.Errorf("%w", domain.ErrBackfillInProgress)
	}
	state, err := o.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("read migration state: %w", err)
	}
	o.launchBackfill(state.Cursor)
	return nil
}

// Verify runs cutover verification sampling and records the report.
// The first successful call advances backfilling to cutover_verify;
// repeat calls re-verify in place. Divergence above tolerance halts
// the migration.
func (o *MigrationOrchestrator) Verify(ctx context.Context) (*domain.DivergenceReport, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	state, err := o.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read migration state: %w", err)
	}

	switch state.Phase {
	case domain.PhaseBackfilling:
		complete, err := o.backfillComplete(ctx, state)
		if err != nil {
			return nil, err
		}
		if !complete {
			return nil, fmt.Errorf("%w: backfill has not finished", domain.ErrBackfillInProgress)
		}
		state.Phase = domain.PhaseCutoverVerify
	case domain.PhaseCutoverVerify:
		// Re-verification, e.g. after divergence was repaired.
	default:
		return nil, fmt.Errorf("%w: cannot verify in phase %s", domain.ErrInvalidMigrationTransition, state.Phase)
	}

	report, err := o.sampleDivergence(ctx)
	if err != nil {
		return nil, err
	}
	o.lastReport = report

	state.Halted = report.Diverged()
	state.UpdatedAt = time.Now().UTC()
	if err := o.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save migration state: %w", err)
	}

	if state.Halted {
		logger.Warn("cutover verification found divergence, migration halted")
	} else {
		logger.Info("cutover verification clean (%d samples, epsilon %g)",
			len(report.Samples), report.ScoreEpsilon)
	}
	return report, nil
}

// Promote confirms parity and enters secondary-only.
func (o *MigrationOrchestrator) Promote(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	state, err := o.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("read migration state: %w", err)
	}
	if state.Halted {
		return fmt.Errorf("%w: divergence must be resolved and re-verified", domain.ErrMigrationHalted)
	}
	if !state.Phase.CanTransition(domain.PhaseSecondaryOnly) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidMigrationTransition, state.Phase, domain.PhaseSecondaryOnly)
	}
	if o.lastReport == nil {
		return fmt.Errorf("%w: promote requires a clean verification", domain.ErrInvalidMigrationTransition)
	}

	now := time.Now().UTC()
	state.Phase = domain.PhaseSecondaryOnly
	state.GraceUntil = now.Add(o.opts.GraceWindow)
	state.UpdatedAt = now
	if err := o.store.Save(ctx, state); err != nil {
		return fmt.Errorf("save migration state: %w", err)
	}
	logger.Info("promoted to %s, dual-write retained until %s", o.secondary.Name(), state.GraceUntil.Format(time.RFC3339))
	return nil
}

// Decommission retires the migration after the grace window.
func (o *MigrationOrchestrator) Decommission(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	state, err := o.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("read migration state: %w", err)
	}
	if state.Phase != domain.PhaseSecondaryOnly {
		return fmt.Errorf("%w: cannot decommission in phase %s", domain.ErrInvalidMigrationTransition, state.Phase)
	}
	if time.Now().UTC().Before(state.GraceUntil) {
		return fmt.Errorf("%w: grace window runs until %s", domain.ErrInvalidMigrationTransition, state.GraceUntil.Format(time.RFC3339))
	}

	if err := o.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear migration state: %w", err)
	}
	logger.Info("migration %s decommissioned, %s is now the sole backend", state.ID, o.secondary.Name())
	if o.onDecommission != nil {
		o.onDecommission()
	}
	return nil
}

// Repair re-copies one document into the secondary backend. Used to
// fix divergence found during cutover verification before re-verifying.
func (o *MigrationOrchestrator) Repair(ctx context.Context, documentID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	doc, err := o.docs.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("repair %s: %w", documentID, err)
	}
	if err := o.backfillDocument(ctx, *doc); err != nil {
		return fmt.Errorf("repair %s: %w", documentID, err)
	}
	logger.Info("document %s re-copied to %s", documentID, o.secondary.Name())
	return nil
}

// FlushRetries replays queued secondary writes through the router.
func (o *MigrationOrchestrator) FlushRetries(ctx context.Context) error {
	return o.router.DrainRetries(ctx)
}

// Status reports the current migration snapshot.
func (o *MigrationOrchestrator) Status(ctx context.Context) (*driving.MigrationStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := &driving.MigrationStatus{
		Divergence: o.lastReport,
	}
	if o.backfill != nil {
		status.BackfillRunning = o.backfill.Running()
		status.DocumentsMigrated = o.backfill.Migrated()
	}

	state, err := o.store.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return status, nil
		}
		return nil, fmt.Errorf("read migration state: %w", err)
	}
	status.State = state

	pending, err := o.router.PendingRetries(ctx)
	if err != nil {
		return nil, fmt.Errorf("count pending retries: %w", err)
	}
	status.PendingRetries = pending
	return status, nil
}

// transition advances the persisted phase one step, enforcing the
// state machine.
func (o *MigrationOrchestrator) transition(ctx context.Context, to domain.MigrationPhase) (*domain.MigrationState, error) {
	state, err := o.store.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no migration exists", domain.ErrInvalidMigrationTransition)
		}
		return nil, fmt.Errorf("read migration state: %w", err)
	}
	if state.Halted {
		return nil, fmt.Errorf("%w", domain.ErrMigrationHalted)
	}
	if !state.Phase.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidMigrationTransition, state.Phase, to)
	}
	state.Phase = to
	state.UpdatedAt = time.Now().UTC()
	if err := o.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save migration state: %w", err)
	}
	logger.Info("migration phase: %s", to)
	return state, nil
}

// requirePhase verifies the persisted phase matches.
func (o *MigrationOrchestrator) requirePhase(ctx context.Context, want domain.MigrationPhase) error {
	state, err := o.store.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: no migration exists", domain.ErrInvalidMigrationTransition)
		}
		return fmt.Errorf("read migration state: %w", err)
	}
	if state.Phase != want {
		return fmt.Errorf("%w: expected phase %s, in %s", domain.ErrInvalidMigrationTransition, want, state.Phase)
	}
	return nil
}

// backfillComplete reports whether every indexed document up to now is
// behind the durable cursor. Judged from storage, not job state, so it
// survives process restart.
func (o *MigrationOrchestrator) backfillComplete(ctx context.Context, state *domain.MigrationState) (bool, error) {
	if o.backfill != nil && o.backfill.Running() {
		return false, nil
	}
	remaining, err := o.docs.ListDocumentsAfter(ctx, state.Cursor, 1)
	if err != nil {
		return false, fmt.Errorf("scan remaining documents: %w", err)
	}
	return len(remaining) == 0, nil
}

// sampleDivergence probes both backends with queries derived from
// stored chunks and compares the result sets.
func (o *MigrationOrchestrator) sampleDivergence(ctx context.Context) (*domain.DivergenceReport, error) {
	chunks, err := o.sampleChunks(ctx, o.opts.VerifySamples)
	if err != nil {
		return nil, err
	}

	report := &domain.DivergenceReport{
		ScoreEpsilon: o.opts.ScoreEpsilon,
		GeneratedAt:  time.Now().UTC(),
	}

	for _, chunk := range chunks {
		vector, err := o.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return nil, fmt.Errorf("embed probe for chunk %s: %w", chunk.ID, err)
		}

		params := domain.QueryParams{TopK: o.opts.VerifyTopK}
		primaryHits, err := o.primary.Query(ctx, vector, params)
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", o.primary.Name(), err)
		}
		secondaryHits, err := o.secondary.Query(ctx, vector, params)
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", o.secondary.Name(), err)
		}

		report.Samples = append(report.Samples, compareHits(chunk.ID, primaryHits, secondaryHits))
	}
	return report, nil
}

// sampleChunks draws up to n probe chunks, spread across indexed
// documents.
func (o *MigrationOrchestrator) sampleChunks(ctx context.Context, n int) ([]domain.Chunk, error) {
	docs, err := o.docs.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var sampled []domain.Chunk
	for _, doc := range docs {
		if len(sampled) >= n {
			break
		}
		if doc.Status != domain.StatusIndexed {
			continue
		}
		chunks, err := o.docs.GetChunks(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("chunks for %s: %w", doc.ID, err)
		}
		if len(chunks) == 0 {
			continue
		}
		// First and middle chunk per document until the budget is spent.
		sampled = append(sampled, chunks[0])
		if len(sampled) < n && len(chunks) > 2 {
			sampled = append(sampled, chunks[len(chunks)/2])
		}
	}
	return sampled, nil
}

// compareHits diffs one probe's result sets: membership by ChunkID and
// per-hit score deltas. Ranking order is not compared.
func compareHits(probeChunkID string, primary, secondary []domain.CandidateResult) domain.DivergenceSample {
	sample := domain.DivergenceSample{
		ChunkID:       probeChunkID,
		PrimaryHits:   len(primary),
		SecondaryHits: len(secondary),
	}

	secondaryScores := make(map[string]float64, len(secondary))
	for _, hit := range secondary {
		secondaryScores[hit.ChunkID] = hit.Score
	}

	for _, hit := range primary {
		score, ok := secondaryScores[hit.ChunkID]
		if !ok {
			sample.MissingFromSecondary++
			continue
		}
		delta := hit.Score - score
		if delta < 0 {
			delta = -delta
		}
		if delta > sample.MaxScoreDelta {
			sample.MaxScoreDelta = delta
		}
	}
	return sample
}
