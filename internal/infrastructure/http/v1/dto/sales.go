package dto

import (
	"batterystock/internal/core/types"
	"batterystock/internal/domain/invoice"
)

// TransferRequest is the body of POST /transfers.
type TransferRequest struct {
	VariantID       string `json:"variantId" binding:"required"`
	FromWarehouseID string `json:"fromWarehouseId" binding:"required"`
	ToWarehouseID   string `json:"toWarehouseId" binding:"required"`
	Quantity        int64  `json:"quantity" binding:"required,gt=0"`
}

// InvoiceLineRequest is one line of an invoice request.
type InvoiceLineRequest struct {
	VariantID string      `json:"variantId" binding:"required"`
	Quantity  int64       `json:"quantity" binding:"required,gt=0"`
	UnitPrice types.Money `json:"unitPrice"`
}

// CreateInvoiceRequest is the body of POST /invoices.
type CreateInvoiceRequest struct {
	WarehouseID  string               `json:"warehouseId" binding:"required"`
	CustomerName string               `json:"customerName"`
	Lines        []InvoiceLineRequest `json:"lines" binding:"required,min=1,dive"`
	PaidAmount   types.Money          `json:"paidAmount"`
}

// ToEntity converts the request to an invoice.
func (r *CreateInvoiceRequest) ToEntity() *invoice.Invoice {
	lines := make([]invoice.Line, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = invoice.Line{VariantID: l.VariantID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return &invoice.Invoice{
		WarehouseID:  r.WarehouseID,
		CustomerName: r.CustomerName,
		Lines:        lines,
		PaidAmount:   r.PaidAmount,
	}
}
