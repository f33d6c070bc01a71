// Package stockentry handles goods received from suppliers: entries are
// created pending or approved, and approval moves stock in and debits the
// supplier in one transaction.
package stockentry

import (
	"time"

	"batterystock/internal/core/apperror"
	"batterystock/internal/core/types"
)

// Status of a stock entry.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

// Entry is a receipt of stock from a supplier into a warehouse.
type Entry struct {
	ID               string      `json:"id" bson:"_id" db:"id"`
	ProductVariantID string      `json:"productVariantId" bson:"productVariantId" db:"product_variant_id"`
	WarehouseID      string      `json:"warehouseId" bson:"warehouseId" db:"warehouse_id"`
	SupplierID       string      `json:"supplierId" bson:"supplierId" db:"supplier_id"`
	Quantity         int64       `json:"quantity" bson:"quantity" db:"quantity"`
	CostPrice        types.Money `json:"costPrice" bson:"costPrice" db:"cost_price"`
	Status           Status      `json:"status" bson:"status" db:"status"`
	Notes            string      `json:"notes,omitempty" bson:"notes" db:"notes"`

	ReturnedQuantity int64      `json:"returnedQuantity" bson:"returnedQuantity" db:"returned_quantity"`
	ReturnDate       *time.Time `json:"returnDate,omitempty" bson:"returnDate,omitempty" db:"return_date"`

	CreatedBy  string     `json:"createdBy,omitempty" bson:"createdBy" db:"created_by"`
	ApprovedBy string     `json:"approvedBy,omitempty" bson:"approvedBy" db:"approved_by"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty" bson:"approvedAt,omitempty" db:"approved_at"`
	CreatedAt  time.Time  `json:"createdAt" bson:"createdAt" db:"created_at"`
	Version    int64      `json:"version" bson:"version" db:"version"`
}

// Value is quantity * costPrice, the amount debited to the supplier.
func (e *Entry) Value() types.Money {
	return types.LineTotal(e.Quantity, e.CostPrice)
}

// Pending reports an entry awaiting approval.
func (e *Entry) Pending() bool {
	return e.Status == StatusPending
}

// Validate checks required fields.
func (e *Entry) Validate() error {
	switch {
	case e.ProductVariantID == "":
		return apperror.NewValidation("productVariantId is required").WithDetail("field", "productVariantId")
	case e.WarehouseID == "":
		return apperror.NewValidation("warehouseId is required").WithDetail("field", "warehouseId")
	case e.SupplierID == "":
		return apperror.NewValidation("supplierId is required").WithDetail("field", "supplierId")
	case e.Quantity <= 0:
		return apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	case e.CostPrice.IsNegative():
		return apperror.NewValidation("costPrice must not be negative").WithDetail("field", "costPrice")
	}
	return nil
}
