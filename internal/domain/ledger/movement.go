package ledger

import (
	"context"
	"time"
)

// Reason classifies a stock movement.
type Reason string

const (
	ReasonEntry       Reason = "entry"
	ReasonReturn      Reason = "return"
	ReasonTransferOut Reason = "transfer_out"
	ReasonTransferIn  Reason = "transfer_in"
	ReasonSale        Reason = "sale"
	ReasonAdjustment  Reason = "adjustment"
)

// Movement is one append-only stock ledger row written next to every stock
// mutation. The stock watcher subscribes to these rows.
type Movement struct {
	ID           string    `json:"id" bson:"_id" db:"id"`
	VariantID    string    `json:"variantId" bson:"variantId" db:"variant_id"`
	WarehouseID  string    `json:"warehouseId" bson:"warehouseId" db:"warehouse_id"`
	Delta        int64     `json:"delta" bson:"delta" db:"delta"`
	BalanceAfter int64     `json:"balanceAfter" bson:"balanceAfter" db:"balance_after"`
	Reason       Reason    `json:"reason" bson:"reason" db:"reason"`
	Reference    string    `json:"reference,omitempty" bson:"reference" db:"reference"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt" db:"created_at"`
}

// MovementFilter narrows movement listings. Empty fields match everything.
type MovementFilter struct {
	VariantID   string
	WarehouseID string
	Reference   string
	Limit       int
}

// MovementRepository persists stock movements.
type MovementRepository interface {
	Append(ctx context.Context, m *Movement) error

	// List returns movements matching filter, oldest first.
	List(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// Sum adds up the deltas of movements per warehouse.
func Sum(movements []Movement) map[string]int64 {
	out := make(map[string]int64)
	for _, m := range movements {
		out[m.WarehouseID] += m.Delta
	}
	return out
}
