package dto

import "batterystock/internal/domain/inventory"

// CreateWarehouseRequest is the body of POST /warehouses.
type CreateWarehouseRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateProductRequest is the body of POST /products.
type CreateProductRequest struct {
	Name  string `json:"name" binding:"required"`
	Brand string `json:"brand"`
}

// ToEntity converts the request to a product.
func (r *CreateProductRequest) ToEntity() *inventory.Product {
	return &inventory.Product{Name: r.Name, Brand: r.Brand}
}

// CreateVariantRequest is the body of POST /variants.
type CreateVariantRequest struct {
	ProductID     string           `json:"productId" binding:"required"`
	SKU           string           `json:"sku"`
	Capacity      int64            `json:"capacity" binding:"required"`
	StockLevels   map[string]int64 `json:"stockLevels"`
	MinQuantity   int64            `json:"minQuantity"`
	MinQuantities map[string]int64 `json:"minQuantities"`
}

// ToEntity converts the request to a variant.
func (r *CreateVariantRequest) ToEntity() *inventory.Variant {
	return &inventory.Variant{
		ProductID:     r.ProductID,
		SKU:           r.SKU,
		Capacity:      r.Capacity,
		StockLevels:   r.StockLevels,
		MinQuantity:   r.MinQuantity,
		MinQuantities: r.MinQuantities,
	}
}

// ThresholdsRequest is the body of PUT /variants/:id/thresholds.
type ThresholdsRequest struct {
	MinQuantity   int64            `json:"minQuantity"`
	MinQuantities map[string]int64 `json:"minQuantities"`
}

// ToThresholds converts the request to service input.
func (r *ThresholdsRequest) ToThresholds() inventory.Thresholds {
	return inventory.Thresholds{MinQuantity: r.MinQuantity, MinQuantities: r.MinQuantities}
}
