// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// LineTotal returns quantity * unitPrice.
func LineTotal(quantity int64, unitPrice Money) Money {
	return unitPrice.Mul(decimal.NewFromInt(quantity))
}

// RoundMoney rounds to cents using banker's rounding.
func RoundMoney(m Money) Money {
	return m.RoundBank(2)
}
