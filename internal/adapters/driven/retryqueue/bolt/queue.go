// Package bolt provides a durable secondary-write retry queue backed
// by BoltDB. Writes that fail against the secondary backend during
// dual-write land here and are replayed in order; the queue survives
// process restart so no mutation is ever discarded.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
)

var bucketOps = []byte("retry_ops")

// Ensure Queue implements the interface.
var _ driven.RetryQueue = (*Queue)(nil)

// Queue is a BoltDB-backed implementation of driven.RetryQueue.
// Operations are keyed by a monotonic sequence number, so iteration
// order is enqueue order.
type Queue struct {
	db *bbolt.DB
}

// NewQueue opens (or creates) the queue database in the given data
// directory. If dataDir is empty, defaults to ~/.vectra/data.
func NewQueue(dataDir string) (*Queue, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".vectra", "data")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dataDir, "retry.db"), 0600, &bbolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("opening retry queue: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketOps)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating retry bucket: %w", err)
	}

	return &Queue{db: db}, nil
}

// Enqueue appends an operation to the queue.
func (q *Queue) Enqueue(_ context.Context, op driven.RetryOp) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshalling retry op: %w", err)
	}

	return q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketOps)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating sequence: %w", err)
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
}

// Pending returns the number of queued operations.
func (q *Queue) Pending(_ context.Context) (int, error) {
	var n int
	err := q.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketOps).Stats().KeyN
		return nil
	})
	return n, err
}

// Drain replays queued operations in enqueue order. Each op fn accepts
// is deleted; the first fn error stops the drain with that op (and
// everything behind it) still queued, preserving replay order.
func (q *Queue) Drain(ctx context.Context, fn func(context.Context, driven.RetryOp) error) error {
	for {
		key, op, ok, err := q.head()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := fn(ctx, op); err != nil {
			return err
		}

		err = q.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketOps).Delete(key)
		})
		if err != nil {
			return fmt.Errorf("removing drained op: %w", err)
		}
	}
}

// head returns the oldest queued operation without removing it.
func (q *Queue) head() ([]byte, driven.RetryOp, bool, error) {
	var key []byte
	var op driven.RetryOp
	var found bool

	err := q.db.View(func(tx *bbolt.Tx) error {
		k, v := tx.Bucket(bucketOps).Cursor().First()
		if k == nil {
			return nil
		}
		key = append([]byte(nil), k...)
		found = true
		return json.Unmarshal(v, &op)
	})
	if err != nil {
		return nil, driven.RetryOp{}, false, fmt.Errorf("reading queue head: %w", err)
	}
	return key, op, found, nil
}

// Close closes the queue database.
func (q *Queue) Close() error {
	return q.db.Close()
}
