// Package tx declares the transaction boundary used by the ledger services.
// Both storage backends (postgres and memory) implement it.
package tx

import "context"

// Func is a unit of work bound to the transaction carried in ctx.
type Func func(ctx context.Context) error

// Manager runs work atomically. Nested calls join the outer transaction.
//
// Movement writes and balance updates for one account must go through a
// single RunInTransaction call so a failed replay leaves nothing behind.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager adds consistent read snapshots.
type ReadOnlyManager interface {
	Manager

	// ReadOnly runs fn against a snapshot that concurrent appends do not change.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// Snapshot runs fn read-only when m supports it and directly otherwise.
func Snapshot(ctx context.Context, m Manager, fn Func) error {
	if ro, ok := m.(ReadOnlyManager); ok {
		return ro.ReadOnly(ctx, fn)
	}
	return fn(ctx)
}
