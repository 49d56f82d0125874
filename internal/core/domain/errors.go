package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Backend Errors.

	// ErrBackendUnavailable indicates a vector backend could not be reached
	// or timed out. Transient: callers may retry.
	ErrBackendUnavailable = errors.New("vector backend unavailable")

	// ErrDimensionMismatch indicates a vector's length disagrees with the
	// backend's configured dimension. Caller/config error, never retried.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrModelMismatch indicates a vector produced by a different
	// embedding model than the one the index is pinned to. Caller/config
	// error, never retried.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrInvalidFilter indicates a filter predicate the backend cannot
	// translate. Predicates are rejected, never silently dropped.
	ErrInvalidFilter = errors.New("invalid filter")

	// Ingestion Errors.

	// ErrDocumentTooLarge indicates chunking would exceed the configured
	// chunk ceiling. The document is marked failed, never truncated.
	ErrDocumentTooLarge = errors.New("document too large")

	// ErrEmbeddingUnavailable indicates the embedding gateway stayed
	// unreachable after bounded retries. Terminal for the document.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrUnsupportedType indicates a document type the pipeline does not accept.
	ErrUnsupportedType = errors.New("unsupported type")

	// Migration Errors.

	// ErrInvalidMigrationTransition indicates a phase change the migration
	// state machine does not permit. Operator error, rejected synchronously.
	ErrInvalidMigrationTransition = errors.New("invalid migration transition")

	// ErrMigrationHalted indicates cutover verification found divergence
	// above tolerance. Progression stops until an operator intervenes.
	ErrMigrationHalted = errors.New("migration halted on divergence")

	// ErrBackfillInProgress indicates a backfill is already running.
	ErrBackfillInProgress = errors.New("backfill in progress")
)
