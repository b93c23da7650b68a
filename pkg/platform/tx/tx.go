// Package tx carries SQL transactions through context and provides the
// RunInTx abstraction services use for atomic multi-store writes.
//
// Postgres stores pick the transaction out of context when present and fall
// back to the bare connection otherwise, so the same store code serves both
// transactional and standalone reads.
package tx

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner executes a function atomically. The SQL runner wraps it in a
// database transaction; the in-memory runner serializes it under a mutex so
// memory stores observe the same all-or-nothing, one-writer-at-a-time
// semantics the database gives the real stores.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner runs functions inside a database/sql transaction.
type SQLRunner struct {
	db *sql.DB
}

// NewSQLRunner builds a Runner over a SQL database handle.
func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

// RunInTx opens a transaction, stores it in context, and commits when fn
// returns nil. Any error rolls the transaction back and is returned as-is
// so coded domain errors survive the boundary.
func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(WithTx(ctx, dbTx)); err != nil {
		_ = dbTx.Rollback()
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// MemoryRunner serializes transactional sections for in-memory stores.
type MemoryRunner struct {
	mu sync.Mutex
}

// NewMemoryRunner builds a Runner for memory-backed wiring and tests.
func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{}
}

// RunInTx runs fn under a global lock. Memory stores have no rollback, so
// fn implementations validate before mutating.
func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}
