package driven

import (
	"context"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

// RetryOpKind names a queued secondary write.
type RetryOpKind string

// Queued operation kinds.
const (
	RetryUpsert RetryOpKind = "upsert"
	RetryDelete RetryOpKind = "delete"
)

// RetryOp is a mutation that failed against the secondary backend
// during dual-write and must be replayed. Upserts are idempotent by
// the VectorStore contract, so at-least-once replay is safe.
type RetryOp struct {
	// Kind selects upsert or delete.
	Kind RetryOpKind

	// DocumentID is the affected document (delete key, upsert grouping).
	DocumentID string

	// Items carries the upsert payload; empty for deletes.
	Items []domain.EmbeddingUpsert
}

// RetryQueue durably holds secondary writes awaiting replay. A flaky
// secondary never blocks primary-path traffic: failed writes land here
// instead of being discarded.
type RetryQueue interface {
	// Enqueue appends an operation to the queue.
	Enqueue(ctx context.Context, op RetryOp) error

	// Pending returns the number of queued operations.
	Pending(ctx context.Context) (int, error)

	// Drain replays queued operations in order through fn, removing
	// each one fn accepts. Replay stops at the first fn error, leaving
	// the failed operation and everything behind it queued.
	Drain(ctx context.Context, fn func(context.Context, RetryOp) error) error

	// Close releases resources.
	Close() error
}
