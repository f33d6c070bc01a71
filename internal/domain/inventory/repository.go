package inventory

import (
	"context"
)

// WarehouseRepository persists warehouses.
type WarehouseRepository interface {
	Create(ctx context.Context, w *Warehouse) error
	Get(ctx context.Context, id string) (*Warehouse, error)
	List(ctx context.Context) ([]Warehouse, error)
}

// ProductRepository persists products.
type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, id string) (*Product, error)
}

// VariantFilter narrows variant listings.
type VariantFilter struct {
	ProductID       string
	IncludeArchived bool
}

// VariantRepository persists variants.
//
// Get returns apperror NotFound for unknown ids. Update methods are
// conditional on expectedVersion and return ConcurrentModification when the
// stored version differs. On success the stored version is incremented
// (Update also advances v.Version).
type VariantRepository interface {
	Create(ctx context.Context, v *Variant) error
	Get(ctx context.Context, id string) (*Variant, error)
	List(ctx context.Context, filter VariantFilter) ([]Variant, error)

	// UpdateStockLevels replaces the whole per-warehouse stock map.
	UpdateStockLevels(ctx context.Context, id string, levels map[string]int64, expectedVersion int64) error

	// Update writes the descriptive fields, thresholds and archive flag.
	// Stock levels are left untouched.
	Update(ctx context.Context, v *Variant, expectedVersion int64) error
}
