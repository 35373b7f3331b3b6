package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/orderdesk/internal/storage"
)

var _ storage.Storage = (*Store)(nil)

// Store implements storage.Storage backed by PostgreSQL. Reads hit the pool
// directly; writes are staged as statements and flushed by CommitChanges in
// a single transaction.
type Store struct {
	pool *pgxpool.Pool

	mu      sync.Mutex
	pending []func(ctx context.Context, tx pgx.Tx) error
}

// NewStore returns a Store that uses the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// stage queues a statement for the next CommitChanges.
func (s *Store) stage(op func(ctx context.Context, tx pgx.Tx) error) {
	s.mu.Lock()
	s.pending = append(s.pending, op)
	s.mu.Unlock()
}

// CommitChanges flushes every staged statement inside one transaction.
// The staged set is consumed whether the commit succeeds or fails.
func (s *Store) CommitChanges(ctx context.Context) error {
	s.mu.Lock()
	ops := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	for _, op := range ops {
		if err := op(ctx, tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
