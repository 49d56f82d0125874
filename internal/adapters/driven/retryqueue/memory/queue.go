// Package memory provides an in-memory retry queue for tests.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
)

// Ensure Queue implements the interface.
var _ driven.RetryQueue = (*Queue)(nil)

// Queue is an in-memory implementation of driven.RetryQueue.
type Queue struct {
	mu  sync.Mutex
	ops []driven.RetryOp
}

// NewQueue creates a new in-memory retry queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends an operation to the queue.
func (q *Queue) Enqueue(_ context.Context, op driven.RetryOp) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = append(q.ops, op)
	return nil
}

// Pending returns the number of queued operations.
func (q *Queue) Pending(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops), nil
}

// Drain replays queued operations in enqueue order.
func (q *Queue) Drain(ctx context.Context, fn func(context.Context, driven.RetryOp) error) error {
	for {
		q.mu.Lock()
		if len(q.ops) == 0 {
			q.mu.Unlock()
			return nil
		}
		op := q.ops[0]
		q.mu.Unlock()

		if err := fn(ctx, op); err != nil {
			return err
		}

		q.mu.Lock()
		q.ops = q.ops[1:]
		q.mu.Unlock()
	}
}

// Close releases resources.
func (q *Queue) Close() error {
	return nil
}
