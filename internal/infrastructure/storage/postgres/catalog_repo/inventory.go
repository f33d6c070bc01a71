// Package catalog_repo provides PostgreSQL implementations of the
// reference data repositories: warehouses, products, variants and
// suppliers.
package catalog_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"batterystock/internal/domain/inventory"
	"batterystock/internal/infrastructure/storage/postgres"
)

const (
	warehousesTable = "warehouses"
	productsTable   = "products"
	variantsTable   = "product_variants"
)

// WarehouseRepo implements inventory.WarehouseRepository.
type WarehouseRepo struct {
	table *postgres.Table[inventory.Warehouse]
}

var _ inventory.WarehouseRepository = (*WarehouseRepo)(nil)

// NewWarehouseRepo creates a warehouse repository.
func NewWarehouseRepo(txm *postgres.TxManager) *WarehouseRepo {
	return &WarehouseRepo{table: postgres.NewTable[inventory.Warehouse](txm, warehousesTable, "warehouse")}
}

func (r *WarehouseRepo) Create(ctx context.Context, w *inventory.Warehouse) error {
	return r.table.Insert(ctx, w.ID, w)
}

func (r *WarehouseRepo) Get(ctx context.Context, id string) (*inventory.Warehouse, error) {
	return r.table.Get(ctx, id)
}

func (r *WarehouseRepo) List(ctx context.Context) ([]inventory.Warehouse, error) {
	return r.table.List(ctx, r.table.Select().OrderBy("name", "id"))
}

// ProductRepo implements inventory.ProductRepository.
type ProductRepo struct {
	table *postgres.Table[inventory.Product]
}

var _ inventory.ProductRepository = (*ProductRepo)(nil)

// NewProductRepo creates a product repository.
func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{table: postgres.NewTable[inventory.Product](txm, productsTable, "product")}
}

func (r *ProductRepo) Create(ctx context.Context, p *inventory.Product) error {
	return r.table.Insert(ctx, p.ID, p)
}

func (r *ProductRepo) Get(ctx context.Context, id string) (*inventory.Product, error) {
	return r.table.Get(ctx, id)
}

// VariantRepo implements inventory.VariantRepository.
type VariantRepo struct {
	table *postgres.Table[inventory.Variant]
}

var _ inventory.VariantRepository = (*VariantRepo)(nil)

// NewVariantRepo creates a variant repository.
func NewVariantRepo(txm *postgres.TxManager) *VariantRepo {
	return &VariantRepo{table: postgres.NewTable[inventory.Variant](txm, variantsTable, "variant")}
}

func (r *VariantRepo) Create(ctx context.Context, v *inventory.Variant) error {
	return r.table.Insert(ctx, v.ID, v)
}

func (r *VariantRepo) Get(ctx context.Context, id string) (*inventory.Variant, error) {
	return r.table.Get(ctx, id)
}

func (r *VariantRepo) List(ctx context.Context, filter inventory.VariantFilter) ([]inventory.Variant, error) {
	return r.table.List(ctx, r.listQuery(filter))
}

func (r *VariantRepo) listQuery(filter inventory.VariantFilter) squirrel.SelectBuilder {
	q := r.table.Select()
	if filter.ProductID != "" {
		q = q.Where(squirrel.Eq{"product_id": filter.ProductID})
	}
	if !filter.IncludeArchived {
		q = q.Where(squirrel.Eq{"archived": false})
	}
	return q.OrderBy("id")
}

func (r *VariantRepo) UpdateStockLevels(ctx context.Context, id string, levels map[string]int64, expectedVersion int64) error {
	if levels == nil {
		levels = map[string]int64{}
	}
	return r.table.UpdateVersioned(ctx, id, expectedVersion, map[string]any{
		"stock_levels": levels,
		"updated_at":   time.Now().UTC(),
	})
}

func (r *VariantRepo) Update(ctx context.Context, v *inventory.Variant, expectedVersion int64) error {
	set := postgres.Columns(v, "id", "stock_levels", "version", "created_at")
	if err := r.table.UpdateVersioned(ctx, v.ID, expectedVersion, set); err != nil {
		return err
	}
	v.Version = expectedVersion + 1
	return nil
}
