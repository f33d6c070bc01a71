package supplier

import (
	"context"
)

// Repository persists suppliers.
type Repository interface {
	Create(ctx context.Context, s *Supplier) error

	// Get returns apperror NotFound for unknown ids.
	Get(ctx context.Context, id string) (*Supplier, error)

	// UpdateBalance writes the non-nil totals of upd if the stored version
	// equals expectedVersion, and increments the version. A version mismatch
	// returns ConcurrentModification.
	UpdateBalance(ctx context.Context, id string, upd BalanceUpdate, expectedVersion int64) error
}
