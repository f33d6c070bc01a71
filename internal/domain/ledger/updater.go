// Package ledger applies stock quantity and supplier balance deltas inside
// the caller's transaction.
//
// The Updater never opens or retries transactions itself: every method
// expects ctx to carry a transaction started by tx.Manager, and any
// read/write failure (including a version conflict) is returned so the
// enclosing transaction aborts and the manager can re-run it.
package ledger

import (
	"context"
	"fmt"
	"time"

	"batterystock/internal/core/apperror"
	"batterystock/internal/core/id"
	"batterystock/internal/core/types"
	"batterystock/internal/domain/inventory"
	"batterystock/internal/domain/supplier"
	"batterystock/pkg/logger"
)

// Updater is the balance ledger.
type Updater struct {
	variants  inventory.VariantRepository
	suppliers supplier.Repository
	movements MovementRepository
	now       func() time.Time
}

// NewUpdater creates a ledger updater.
func NewUpdater(variants inventory.VariantRepository, suppliers supplier.Repository, movements MovementRepository) *Updater {
	return &Updater{
		variants:  variants,
		suppliers: suppliers,
		movements: movements,
		now:       time.Now,
	}
}

// UpdateVariantStock adds delta to the variant's stock at warehouseID.
// An empty variantID, a zero delta or a missing variant is a no-op.
// Negative results are allowed.
func (u *Updater) UpdateVariantStock(ctx context.Context, variantID, warehouseID string, delta int64) error {
	_, err := u.ApplyMovement(ctx, Movement{
		VariantID:   variantID,
		WarehouseID: warehouseID,
		Delta:       delta,
		Reason:      ReasonAdjustment,
	})
	return err
}

// ApplyMovement is UpdateVariantStock with a reason and reference. It
// writes back the full stock map of the variant and appends the movement
// with its resulting balance. The returned movement is nil when nothing was
// applied.
func (u *Updater) ApplyMovement(ctx context.Context, m Movement) (*Movement, error) {
	if m.VariantID == "" || m.Delta == 0 {
		return nil, nil
	}
	if m.WarehouseID == "" {
		return nil, apperror.NewValidation("warehouseId is required").WithDetail("variant_id", m.VariantID)
	}

	v, err := u.variants.Get(ctx, m.VariantID)
	if err != nil {
		if apperror.IsNotFound(err) {
			logger.Debug(ctx, "stock update skipped, variant missing", "variant_id", m.VariantID)
			return nil, nil
		}
		return nil, fmt.Errorf("read variant %s: %w", m.VariantID, err)
	}

	levels := v.CloneLevels()
	newQty := levels[m.WarehouseID] + m.Delta
	levels[m.WarehouseID] = newQty

	if err := u.variants.UpdateStockLevels(ctx, v.ID, levels, v.Version); err != nil {
		return nil, fmt.Errorf("write stock levels %s: %w", v.ID, err)
	}

	m.ID = id.New()
	m.BalanceAfter = newQty
	if m.Reason == "" {
		m.Reason = ReasonAdjustment
	}
	m.CreatedAt = u.now().UTC()
	if err := u.movements.Append(ctx, &m); err != nil {
		return nil, fmt.Errorf("append movement: %w", err)
	}
	return &m, nil
}

// UpdateSupplierBalance adds the non-zero deltas to the supplier totals.
// Zero deltas, an empty supplierID or a missing supplier perform no writes.
func (u *Updater) UpdateSupplierBalance(ctx context.Context, supplierID string, debitDelta, creditDelta types.Money) error {
	if supplierID == "" || (debitDelta.IsZero() && creditDelta.IsZero()) {
		return nil
	}

	s, err := u.suppliers.Get(ctx, supplierID)
	if err != nil {
		if apperror.IsNotFound(err) {
			logger.Debug(ctx, "balance update skipped, supplier missing", "supplier_id", supplierID)
			return nil
		}
		return fmt.Errorf("read supplier %s: %w", supplierID, err)
	}

	var upd supplier.BalanceUpdate
	if !debitDelta.IsZero() {
		debit := s.TotalDebit.Add(debitDelta)
		upd.TotalDebit = &debit
	}
	if !creditDelta.IsZero() {
		credit := s.TotalCredit.Add(creditDelta)
		upd.TotalCredit = &credit
	}

	if err := u.suppliers.UpdateBalance(ctx, s.ID, upd, s.Version); err != nil {
		return fmt.Errorf("write supplier balance %s: %w", s.ID, err)
	}
	return nil
}

// History returns the movements of one variant, optionally one warehouse.
func (u *Updater) History(ctx context.Context, variantID, warehouseID string, limit int) ([]Movement, error) {
	return u.movements.List(ctx, MovementFilter{VariantID: variantID, WarehouseID: warehouseID, Limit: limit})
}
