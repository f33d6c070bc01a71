package stockentry

import (
	"context"
	"fmt"
	"time"

	"batterystock/internal/core/apperror"
	appctx "batterystock/internal/core/context"
	"batterystock/internal/core/id"
	"batterystock/internal/core/tx"
	"batterystock/internal/core/types"
	"batterystock/internal/domain/inventory"
	"batterystock/internal/domain/ledger"
	"batterystock/internal/domain/supplier"
	"batterystock/pkg/logger"
)

// Service implements the stock entry lifecycle.
type Service struct {
	txm        tx.Manager
	repo       Repository
	ledger     *ledger.Updater
	variants   inventory.VariantRepository
	warehouses inventory.WarehouseRepository
	suppliers  supplier.Repository
	now        func() time.Time
}

// NewService creates a stock entry service.
func NewService(
	txm tx.Manager,
	repo Repository,
	updater *ledger.Updater,
	variants inventory.VariantRepository,
	warehouses inventory.WarehouseRepository,
	suppliers supplier.Repository,
) *Service {
	return &Service{
		txm:        txm,
		repo:       repo,
		ledger:     updater,
		variants:   variants,
		warehouses: warehouses,
		suppliers:  suppliers,
		now:        time.Now,
	}
}

// CreateInput describes a new entry.
type CreateInput struct {
	ProductVariantID string
	WarehouseID      string
	SupplierID       string
	Quantity         int64
	CostPrice        types.Money
	Notes            string
	// Approve creates the entry approved. Requires the admin role.
	Approve bool
}

// Create records a stock entry. Pending entries do not touch stock.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Entry, error) {
	e := &Entry{
		ID:               id.New(),
		ProductVariantID: in.ProductVariantID,
		WarehouseID:      in.WarehouseID,
		SupplierID:       in.SupplierID,
		Quantity:         in.Quantity,
		CostPrice:        in.CostPrice,
		Notes:            in.Notes,
		Status:           StatusPending,
		CreatedBy:        appctx.GetUserID(ctx),
		CreatedAt:        s.now().UTC(),
		Version:          1,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if in.Approve && !appctx.IsAdmin(ctx) {
		return nil, apperror.NewForbidden("only admins can approve stock entries")
	}
	if err := s.checkReferences(ctx, e); err != nil {
		return nil, err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		entry := *e
		if in.Approve {
			markApproved(&entry, appctx.GetUserID(ctx), s.now().UTC())
		}
		if err := s.repo.Create(ctx, &entry); err != nil {
			return fmt.Errorf("create stock entry: %w", err)
		}
		if in.Approve {
			if err := s.applyStockIn(ctx, &entry); err != nil {
				return err
			}
		}
		*e = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock entry created",
		"entry_id", e.ID, "variant_id", e.ProductVariantID, "warehouse_id", e.WarehouseID,
		"quantity", e.Quantity, "status", e.Status)
	return e, nil
}

// Approve moves a pending entry's quantity into stock and debits the
// supplier with its value, atomically. Approving twice fails with
// ENTRY_ALREADY_APPROVED and applies nothing.
func (s *Service) Approve(ctx context.Context, entryID string) (*Entry, error) {
	if !appctx.IsAdmin(ctx) {
		return nil, apperror.NewForbidden("only admins can approve stock entries")
	}

	var out *Entry
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		e, err := s.repo.Get(ctx, entryID)
		if err != nil {
			return err
		}
		if !e.Pending() {
			return apperror.NewBusinessRule(apperror.CodeEntryApproved, "stock entry is already approved").
				WithDetail("entry_id", e.ID)
		}

		markApproved(e, appctx.GetUserID(ctx), s.now().UTC())
		if err := s.repo.Update(ctx, e, e.Version); err != nil {
			return err
		}
		if err := s.applyStockIn(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock entry approved", "entry_id", out.ID, "quantity", out.Quantity)
	return out, nil
}

// ReturnInput describes goods sent back to the supplier.
type ReturnInput struct {
	Quantity int64
	Date     *time.Time
	// ReverseStock takes the returned quantity out of stock and reduces the
	// supplier debit by its cost. Without it only the return is recorded.
	ReverseStock bool
}

// Return records a (partial) return of an approved entry.
func (s *Service) Return(ctx context.Context, entryID string, in ReturnInput) (*Entry, error) {
	if in.Quantity <= 0 {
		return nil, apperror.NewValidation("return quantity must be positive").WithDetail("field", "quantity")
	}

	var out *Entry
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		e, err := s.repo.Get(ctx, entryID)
		if err != nil {
			return err
		}
		if e.Status != StatusApproved {
			return apperror.NewBusinessRule(apperror.CodeEntryNotApproved, "only approved entries can be returned").
				WithDetail("entry_id", e.ID)
		}
		if e.ReturnedQuantity+in.Quantity > e.Quantity {
			return apperror.NewBusinessRule(apperror.CodeReturnExceedsQuantity, "return exceeds received quantity").
				WithDetail("entry_id", e.ID).
				WithDetail("received", e.Quantity).
				WithDetail("returned", e.ReturnedQuantity).
				WithDetail("requested", in.Quantity)
		}

		date := s.now().UTC()
		if in.Date != nil {
			date = in.Date.UTC()
		}
		e.ReturnedQuantity += in.Quantity
		e.ReturnDate = &date
		if err := s.repo.Update(ctx, e, e.Version); err != nil {
			return err
		}

		if in.ReverseStock {
			if _, err := s.ledger.ApplyMovement(ctx, ledger.Movement{
				VariantID:   e.ProductVariantID,
				WarehouseID: e.WarehouseID,
				Delta:       -in.Quantity,
				Reason:      ledger.ReasonReturn,
				Reference:   e.ID,
			}); err != nil {
				return err
			}
			refund := types.LineTotal(in.Quantity, e.CostPrice).Neg()
			if err := s.ledger.UpdateSupplierBalance(ctx, e.SupplierID, refund, types.Zero()); err != nil {
				return err
			}
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock entry return recorded",
		"entry_id", out.ID, "quantity", in.Quantity, "reverse_stock", in.ReverseStock)
	return out, nil
}

// Get returns an entry or NotFound.
func (s *Service) Get(ctx context.Context, entryID string) (*Entry, error) {
	return s.repo.Get(ctx, entryID)
}

// ListPending returns entries awaiting approval.
func (s *Service) ListPending(ctx context.Context) ([]Entry, error) {
	return s.repo.List(ctx, Filter{Status: StatusPending})
}

func (s *Service) applyStockIn(ctx context.Context, e *Entry) error {
	if _, err := s.ledger.ApplyMovement(ctx, ledger.Movement{
		VariantID:   e.ProductVariantID,
		WarehouseID: e.WarehouseID,
		Delta:       e.Quantity,
		Reason:      ledger.ReasonEntry,
		Reference:   e.ID,
	}); err != nil {
		return err
	}
	return s.ledger.UpdateSupplierBalance(ctx, e.SupplierID, e.Value(), types.Zero())
}

func (s *Service) checkReferences(ctx context.Context, e *Entry) error {
	v, err := s.variants.Get(ctx, e.ProductVariantID)
	if err != nil {
		return err
	}
	if v.Archived {
		return apperror.NewBusinessRule(apperror.CodeVariantArchived, "variant is archived").
			WithDetail("variant_id", v.ID)
	}
	if _, err := s.warehouses.Get(ctx, e.WarehouseID); err != nil {
		return err
	}
	if _, err := s.suppliers.Get(ctx, e.SupplierID); err != nil {
		return err
	}
	return nil
}

func markApproved(e *Entry, by string, at time.Time) {
	e.Status = StatusApproved
	e.ApprovedBy = by
	e.ApprovedAt = &at
}
