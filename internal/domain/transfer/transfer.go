// Package transfer moves stock between warehouses.
package transfer

import (
	"context"
	"fmt"
	"time"

	"batterystock/internal/core/apperror"
	appctx "batterystock/internal/core/context"
	"batterystock/internal/core/id"
	"batterystock/internal/core/tx"
	"batterystock/internal/domain/inventory"
	"batterystock/internal/domain/ledger"
	"batterystock/pkg/logger"
)

// Transfer is a completed stock move.
type Transfer struct {
	ID              string    `json:"id" bson:"_id" db:"id"`
	VariantID       string    `json:"variantId" bson:"variantId" db:"variant_id"`
	FromWarehouseID string    `json:"fromWarehouseId" bson:"fromWarehouseId" db:"from_warehouse_id"`
	ToWarehouseID   string    `json:"toWarehouseId" bson:"toWarehouseId" db:"to_warehouse_id"`
	Quantity        int64     `json:"quantity" bson:"quantity" db:"quantity"`
	CreatedBy       string    `json:"createdBy,omitempty" bson:"createdBy" db:"created_by"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt" db:"created_at"`
}

// Validate checks the request shape.
func (t *Transfer) Validate() error {
	switch {
	case t.VariantID == "":
		return apperror.NewValidation("variantId is required").WithDetail("field", "variantId")
	case t.FromWarehouseID == "" || t.ToWarehouseID == "":
		return apperror.NewValidation("both warehouses are required")
	case t.FromWarehouseID == t.ToWarehouseID:
		return apperror.NewValidation("source and destination warehouse must differ")
	case t.Quantity <= 0:
		return apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}
	return nil
}

// Repository persists transfers.
type Repository interface {
	Create(ctx context.Context, t *Transfer) error
}

// Options tune the service.
type Options struct {
	// AllowNegativeStock skips the availability check on the source.
	AllowNegativeStock bool
}

// Service runs transfers.
type Service struct {
	txm        tx.Manager
	repo       Repository
	ledger     *ledger.Updater
	variants   inventory.VariantRepository
	warehouses inventory.WarehouseRepository
	opts       Options
	now        func() time.Time
}

// NewService creates a transfer service.
func NewService(
	txm tx.Manager,
	repo Repository,
	updater *ledger.Updater,
	variants inventory.VariantRepository,
	warehouses inventory.WarehouseRepository,
	opts Options,
) *Service {
	return &Service{
		txm:        txm,
		repo:       repo,
		ledger:     updater,
		variants:   variants,
		warehouses: warehouses,
		opts:       opts,
		now:        time.Now,
	}
}

// Transfer moves quantity of a variant from one warehouse to another. Both
// legs land in one transaction, so the variant's total stock is unchanged.
func (s *Service) Transfer(ctx context.Context, variantID, fromID, toID string, quantity int64) (*Transfer, error) {
	t := &Transfer{
		VariantID:       variantID,
		FromWarehouseID: fromID,
		ToWarehouseID:   toID,
		Quantity:        quantity,
		CreatedBy:       appctx.GetUserID(ctx),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	for _, wh := range []string{fromID, toID} {
		if _, err := s.warehouses.Get(ctx, wh); err != nil {
			return nil, err
		}
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		v, err := s.variants.Get(ctx, variantID)
		if err != nil {
			return err
		}
		if available := v.Quantity(fromID); !s.opts.AllowNegativeStock && available < quantity {
			return apperror.NewInsufficientStock(variantID, fromID, quantity, available)
		}

		t.ID = id.New()
		t.CreatedAt = s.now().UTC()
		if err := s.repo.Create(ctx, t); err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}
		if _, err := s.ledger.ApplyMovement(ctx, ledger.Movement{
			VariantID: variantID, WarehouseID: fromID, Delta: -quantity,
			Reason: ledger.ReasonTransferOut, Reference: t.ID,
		}); err != nil {
			return err
		}
		_, err = s.ledger.ApplyMovement(ctx, ledger.Movement{
			VariantID: variantID, WarehouseID: toID, Delta: quantity,
			Reason: ledger.ReasonTransferIn, Reference: t.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock transferred",
		"transfer_id", t.ID, "variant_id", variantID, "from", fromID, "to", toID, "quantity", quantity)
	return t, nil
}
