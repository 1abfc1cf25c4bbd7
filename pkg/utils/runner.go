package utils

import (
	"context"
	"database/sql"
	"sync"
)

// AtomicRunner executes a unit of work all-or-nothing. Partial application of
// a multi-write unit (state transitioned but wallet not credited, or vice
// versa) is a correctness violation, so services never write outside a runner.
//
// Runners are re-entrant: a nested InTx joins the enclosing unit instead of
// opening a second one.
type AtomicRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PgRunner is the Postgres-backed AtomicRunner. The transaction is carried on
// the context so every repository joins it via DB(ctx, ...).
type PgRunner struct {
	Pool *sql.DB
}

func (r PgRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if HasTx(ctx) {
		// Already inside a transaction; join it.
		return fn(ctx)
	}
	return WithTx(ctx, r.Pool, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ContextWithTx(ctx, tx))
	})
}

type serialKey struct{}

// SerialRunner serializes units of work under one mutex. It pairs with the
// in-memory repositories in tests: serialized units cannot interleave, which
// gives the same linearizability the Postgres runner gets from transactions.
// It does not roll back partial writes; guard checks must precede mutations.
type SerialRunner struct {
	mu sync.Mutex
}

func (r *SerialRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(serialKey{}) != nil {
		return fn(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(context.WithValue(ctx, serialKey{}, struct{}{}))
}
