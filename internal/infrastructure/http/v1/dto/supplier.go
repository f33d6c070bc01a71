package dto

import (
	"batterystock/internal/core/types"
	"batterystock/internal/domain/supplier"
)

// CreateSupplierRequest is the body of POST /suppliers.
type CreateSupplierRequest struct {
	Name               string      `json:"name" binding:"required"`
	Phone              string      `json:"phone"`
	YearlyTargetAmount types.Money `json:"yearlyTargetAmount"`
	YearlyTargetYear   int         `json:"yearlyTargetYear"`
}

// ToEntity converts the request to a supplier.
func (r *CreateSupplierRequest) ToEntity() *supplier.Supplier {
	return &supplier.Supplier{
		Name:               r.Name,
		Phone:              r.Phone,
		YearlyTargetAmount: r.YearlyTargetAmount,
		YearlyTargetYear:   r.YearlyTargetYear,
	}
}

// SupplierResponse adds the derived balance to a supplier.
type SupplierResponse struct {
	*supplier.Supplier
	Balance types.Money `json:"balance"`
}

// FromSupplier builds the response for s.
func FromSupplier(s *supplier.Supplier) SupplierResponse {
	return SupplierResponse{Supplier: s, Balance: s.Balance()}
}
