// Package inventory holds the catalog of warehouses, products and product
// variants together with the per-warehouse stock levels and the low-stock
// thresholds evaluated by the stock watcher.
package inventory

import (
	"maps"
	"strings"
	"time"

	"batterystock/internal/core/apperror"
)

// Warehouse is a physical stock location.
type Warehouse struct {
	ID        string    `json:"id" bson:"_id" db:"id"`
	Name      string    `json:"name" bson:"name" db:"name"`
	Archived  bool      `json:"archived" bson:"archived" db:"archived"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt" db:"created_at"`
}

// Validate checks required fields.
func (w *Warehouse) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return apperror.NewValidation("warehouse name is required").WithDetail("field", "name")
	}
	return nil
}

// Product groups variants (e.g. one battery model in several capacities).
type Product struct {
	ID        string    `json:"id" bson:"_id" db:"id"`
	Name      string    `json:"name" bson:"name" db:"name"`
	Brand     string    `json:"brand,omitempty" bson:"brand" db:"brand"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt" db:"created_at"`
}

// Validate checks required fields.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("product name is required").WithDetail("field", "name")
	}
	return nil
}

// Variant is a sellable product variant with stock tracked per warehouse.
type Variant struct {
	ID        string `json:"id" bson:"_id" db:"id"`
	ProductID string `json:"productId" bson:"productId" db:"product_id"`
	SKU       string `json:"sku,omitempty" bson:"sku" db:"sku"`
	// Capacity in ampere-hours.
	Capacity int64 `json:"capacity" bson:"capacity" db:"capacity"`

	StockLevels   map[string]int64 `json:"stockLevels" bson:"stockLevels" db:"stock_levels"`
	MinQuantity   int64            `json:"minQuantity" bson:"minQuantity" db:"min_quantity"`
	MinQuantities map[string]int64 `json:"minQuantities" bson:"minQuantities" db:"min_quantities"`

	Archived  bool      `json:"archived" bson:"archived" db:"archived"`
	Version   int64     `json:"version" bson:"version" db:"version"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt" db:"updated_at"`
}

// Validate checks required fields and threshold sanity.
func (v *Variant) Validate() error {
	if v.ProductID == "" {
		return apperror.NewValidation("productId is required").WithDetail("field", "productId")
	}
	if v.Capacity <= 0 {
		return apperror.NewValidation("capacity must be positive").WithDetail("field", "capacity")
	}
	if v.MinQuantity < 0 {
		return apperror.NewValidation("minQuantity must not be negative").WithDetail("field", "minQuantity")
	}
	for wh, q := range v.MinQuantities {
		if q < 0 {
			return apperror.NewValidation("minQuantities must not be negative").
				WithDetail("field", "minQuantities").
				WithDetail("warehouse_id", wh)
		}
	}
	return nil
}

// Quantity returns the on-hand quantity at warehouseID, 0 when absent.
func (v *Variant) Quantity(warehouseID string) int64 {
	return v.StockLevels[warehouseID]
}

// TotalQuantity sums stock across all warehouses.
func (v *Variant) TotalQuantity() int64 {
	var total int64
	for _, q := range v.StockLevels {
		total += q
	}
	return total
}

// Threshold resolves the minimum for warehouseID: the per-warehouse
// override if present, otherwise the global minimum.
func (v *Variant) Threshold(warehouseID string) int64 {
	if q, ok := v.MinQuantities[warehouseID]; ok {
		return q
	}
	return v.MinQuantity
}

// StockLevel describes the evaluation of one (variant, warehouse) pair.
type StockLevel struct {
	VariantID   string `json:"variantId"`
	WarehouseID string `json:"warehouseId"`
	Quantity    int64  `json:"quantity"`
	Threshold   int64  `json:"threshold"`
}

// Exempt reports that no minimum is configured for the pair.
func (l StockLevel) Exempt() bool {
	return l.Threshold <= 0
}

// Low reports quantity at or below a configured threshold.
func (l StockLevel) Low() bool {
	return !l.Exempt() && l.Quantity <= l.Threshold
}

// Level evaluates the pair (v, warehouseID).
func (v *Variant) Level(warehouseID string) StockLevel {
	return StockLevel{
		VariantID:   v.ID,
		WarehouseID: warehouseID,
		Quantity:    v.Quantity(warehouseID),
		Threshold:   v.Threshold(warehouseID),
	}
}

// CloneLevels returns a copy of the stock map that is safe to mutate.
func (v *Variant) CloneLevels() map[string]int64 {
	if v.StockLevels == nil {
		return make(map[string]int64)
	}
	return maps.Clone(v.StockLevels)
}

// LowLevels returns every low (variant, warehouse) pair across the given
// variants and warehouses. Archived variants and archived warehouses are
// skipped.
func LowLevels(variants []Variant, warehouses []Warehouse) []StockLevel {
	var out []StockLevel
	for i := range variants {
		v := &variants[i]
		if v.Archived {
			continue
		}
		for _, wh := range warehouses {
			if wh.Archived {
				continue
			}
			if lvl := v.Level(wh.ID); lvl.Low() {
				out = append(out, lvl)
			}
		}
	}
	return out
}
