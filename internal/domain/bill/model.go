// Package bill tracks supplier bills and their payments.
//
// Status is written by the service when a payment is recorded
// (UNPAID/PARTIAL/PAID) and by callers through SetStatus (OVERDUE). Whether
// a bill is actually overdue is a separate fact derived from the due date;
// see IsOverdue.
package bill

import (
	"time"

	"batterystock/internal/core/apperror"
	"batterystock/internal/core/types"
)

// Status of a bill.
type Status string

const (
	StatusUnpaid  Status = "UNPAID"
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
	StatusOverdue Status = "OVERDUE"
)

// Valid reports a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnpaid, StatusPartial, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// Payment is one installment paid against a bill.
type Payment struct {
	Amount types.Money `json:"amount" bson:"amount"`
	PaidAt time.Time   `json:"paidAt" bson:"paidAt"`
	PaidBy string      `json:"paidBy,omitempty" bson:"paidBy"`
}

// Bill is an amount owed to a supplier by a due date.
type Bill struct {
	ID         string      `json:"id" bson:"_id" db:"id"`
	SupplierID string      `json:"supplierId" bson:"supplierId" db:"supplier_id"`
	Reference  string      `json:"reference,omitempty" bson:"reference" db:"reference"`
	Amount     types.Money `json:"amount" bson:"amount" db:"amount"`
	PaidAmount types.Money `json:"paidAmount" bson:"paidAmount" db:"paid_amount"`
	DueDate    time.Time   `json:"dueDate" bson:"dueDate" db:"due_date"`
	Status     Status      `json:"status" bson:"status" db:"status"`
	Payments   []Payment   `json:"payments" bson:"payments" db:"payments"`
	CreatedAt  time.Time   `json:"createdAt" bson:"createdAt" db:"created_at"`
	Version    int64       `json:"version" bson:"version" db:"version"`
}

// Validate checks required fields.
func (b *Bill) Validate() error {
	switch {
	case b.SupplierID == "":
		return apperror.NewValidation("supplierId is required").WithDetail("field", "supplierId")
	case !b.Amount.IsPositive():
		return apperror.NewValidation("amount must be positive").WithDetail("field", "amount")
	case b.DueDate.IsZero():
		return apperror.NewValidation("dueDate is required").WithDetail("field", "dueDate")
	}
	return nil
}

// Outstanding is amount - paidAmount.
func (b *Bill) Outstanding() types.Money {
	return b.Amount.Sub(b.PaidAmount)
}

// FullyPaid reports paidAmount >= amount.
func (b *Bill) FullyPaid() bool {
	return b.PaidAmount.GreaterThanOrEqual(b.Amount)
}

// DaysUntilDue counts calendar days (UTC) from now to the due date.
// Negative once the due date has passed.
func (b *Bill) DaysUntilDue(now time.Time) int {
	return daysBetween(now, b.DueDate)
}

// IsOverdue reports an unpaid bill whose due date is in the past.
func (b *Bill) IsOverdue(now time.Time) bool {
	return !b.FullyPaid() && b.DaysUntilDue(now) < 0
}

// DueWithin reports an unpaid bill due in at most days days (overdue
// bills included).
func (b *Bill) DueWithin(now time.Time, days int) bool {
	return !b.FullyPaid() && b.DaysUntilDue(now) <= days
}

func daysBetween(from, to time.Time) int {
	f := from.UTC()
	t := to.UTC()
	fd := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	td := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(td.Sub(fd).Hours() / 24)
}

// statusAfterPayment derives the payment status from the amounts.
func statusAfterPayment(b *Bill) Status {
	switch {
	case b.FullyPaid():
		return StatusPaid
	case b.PaidAmount.IsPositive():
		return StatusPartial
	default:
		return StatusUnpaid
	}
}
