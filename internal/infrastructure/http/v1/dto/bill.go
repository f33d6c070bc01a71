package dto

import (
	"time"

	"batterystock/internal/core/types"
	"batterystock/internal/domain/bill"
)

// CreateBillRequest is the body of POST /bills.
type CreateBillRequest struct {
	SupplierID string      `json:"supplierId" binding:"required"`
	Reference  string      `json:"reference"`
	Amount     types.Money `json:"amount"`
	DueDate    time.Time   `json:"dueDate" binding:"required"`
}

// ToInput converts the request to service input.
func (r *CreateBillRequest) ToInput() bill.CreateInput {
	return bill.CreateInput{
		SupplierID: r.SupplierID,
		Reference:  r.Reference,
		Amount:     r.Amount,
		DueDate:    r.DueDate,
	}
}

// PaymentRequest is the body of POST /bills/:id/payments.
type PaymentRequest struct {
	Amount types.Money `json:"amount"`
	PaidAt *time.Time  `json:"paidAt"`
}

// StatusRequest is the body of PUT /bills/:id/status.
type StatusRequest struct {
	Status bill.Status `json:"status" binding:"required"`
}
