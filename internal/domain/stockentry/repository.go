package stockentry

import (
	"context"
)

// Filter narrows entry listings.
type Filter struct {
	Status Status
}

// Repository persists stock entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error

	// Get returns apperror NotFound for unknown ids.
	Get(ctx context.Context, id string) (*Entry, error)

	List(ctx context.Context, filter Filter) ([]Entry, error)

	// Update writes e if the stored version equals expectedVersion and
	// advances the version (stored and e.Version). A mismatch returns
	// ConcurrentModification.
	Update(ctx context.Context, e *Entry, expectedVersion int64) error
}
