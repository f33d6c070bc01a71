// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; the postgres, mongodb and
// memory stores provide the implementations.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a store transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context. Top-level
	// calls are retried on write conflicts according to the store's
	// RetryPolicy, so fn must be safe to run more than once.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
