// Package supplier holds suppliers and their running debit/credit totals.
package supplier

import (
	"strings"
	"time"

	"batterystock/internal/core/apperror"
	"batterystock/internal/core/types"
)

// Supplier is a vendor of stock. TotalDebit accumulates the value of
// approved stock entries, TotalCredit the bill payments made to it.
type Supplier struct {
	ID    string `json:"id" bson:"_id" db:"id"`
	Name  string `json:"name" bson:"name" db:"name"`
	Phone string `json:"phone,omitempty" bson:"phone" db:"phone"`

	TotalDebit  types.Money `json:"totalDebit" bson:"totalDebit" db:"total_debit"`
	TotalCredit types.Money `json:"totalCredit" bson:"totalCredit" db:"total_credit"`

	YearlyTargetAmount types.Money `json:"yearlyTargetAmount" bson:"yearlyTargetAmount" db:"yearly_target_amount"`
	YearlyTargetYear   int         `json:"yearlyTargetYear,omitempty" bson:"yearlyTargetYear" db:"yearly_target_year"`

	Version   int64     `json:"version" bson:"version" db:"version"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt" db:"updated_at"`
}

// Balance is the amount still owed to the supplier.
func (s *Supplier) Balance() types.Money {
	return s.TotalDebit.Sub(s.TotalCredit)
}

// Validate checks required fields.
func (s *Supplier) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return apperror.NewValidation("supplier name is required").WithDetail("field", "name")
	}
	if s.YearlyTargetAmount.IsNegative() {
		return apperror.NewValidation("yearlyTargetAmount must not be negative").WithDetail("field", "yearlyTargetAmount")
	}
	return nil
}

// BalanceUpdate carries the totals to write. Nil fields are not written.
type BalanceUpdate struct {
	TotalDebit  *types.Money
	TotalCredit *types.Money
}

// Empty reports an update with nothing to write.
func (u BalanceUpdate) Empty() bool {
	return u.TotalDebit == nil && u.TotalCredit == nil
}
