package bill

import (
	"context"
)

// Filter narrows bill listings.
type Filter struct {
	SupplierID string
	UnpaidOnly bool
}

// Repository persists bills.
type Repository interface {
	Create(ctx context.Context, b *Bill) error

	// Get returns apperror NotFound for unknown ids.
	Get(ctx context.Context, id string) (*Bill, error)

	List(ctx context.Context, filter Filter) ([]Bill, error)

	// Update writes b if the stored version equals expectedVersion and
	// advances the version (stored and b.Version).
	Update(ctx context.Context, b *Bill, expectedVersion int64) error
}
