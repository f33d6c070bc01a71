package dto

import (
	"time"

	"batterystock/internal/core/types"
	"batterystock/internal/domain/stockentry"
)

// CreateStockEntryRequest is the body of POST /stock-entries.
type CreateStockEntryRequest struct {
	ProductVariantID string      `json:"productVariantId" binding:"required"`
	WarehouseID      string      `json:"warehouseId" binding:"required"`
	SupplierID       string      `json:"supplierId" binding:"required"`
	Quantity         int64       `json:"quantity" binding:"required,gt=0"`
	CostPrice        types.Money `json:"costPrice"`
	Notes            string      `json:"notes"`
	Approve          bool        `json:"approve"`
}

// ToInput converts the request to service input.
func (r *CreateStockEntryRequest) ToInput() stockentry.CreateInput {
	return stockentry.CreateInput{
		ProductVariantID: r.ProductVariantID,
		WarehouseID:      r.WarehouseID,
		SupplierID:       r.SupplierID,
		Quantity:         r.Quantity,
		CostPrice:        r.CostPrice,
		Notes:            r.Notes,
		Approve:          r.Approve,
	}
}

// ReturnRequest is the body of POST /stock-entries/:id/return.
type ReturnRequest struct {
	Quantity     int64      `json:"quantity" binding:"required,gt=0"`
	Date         *time.Time `json:"date"`
	ReverseStock bool       `json:"reverseStock"`
}

// ToInput converts the request to service input.
func (r *ReturnRequest) ToInput() stockentry.ReturnInput {
	return stockentry.ReturnInput{Quantity: r.Quantity, Date: r.Date, ReverseStock: r.ReverseStock}
}
