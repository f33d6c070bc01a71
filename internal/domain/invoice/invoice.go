// Package invoice records sales. Creating an invoice takes every line's
// quantity out of the invoice warehouse.
package invoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"batterystock/internal/core/apperror"
	appctx "batterystock/internal/core/context"
	"batterystock/internal/core/id"
	"batterystock/internal/core/tx"
	"batterystock/internal/core/types"
	"batterystock/internal/domain/inventory"
	"batterystock/internal/domain/ledger"
	"batterystock/pkg/logger"
)

// Line is one sold variant.
type Line struct {
	VariantID string      `json:"variantId" bson:"variantId"`
	Quantity  int64       `json:"quantity" bson:"quantity"`
	UnitPrice types.Money `json:"unitPrice" bson:"unitPrice"`
}

// Invoice is a sale to a customer.
type Invoice struct {
	ID           string      `json:"id" bson:"_id" db:"id"`
	WarehouseID  string      `json:"warehouseId" bson:"warehouseId" db:"warehouse_id"`
	CustomerName string      `json:"customerName,omitempty" bson:"customerName" db:"customer_name"`
	Lines        []Line      `json:"lines" bson:"lines" db:"lines"`
	Total        types.Money `json:"total" bson:"total" db:"total"`
	PaidAmount   types.Money `json:"paidAmount" bson:"paidAmount" db:"paid_amount"`
	CreatedBy    string      `json:"createdBy,omitempty" bson:"createdBy" db:"created_by"`
	CreatedAt    time.Time   `json:"createdAt" bson:"createdAt" db:"created_at"`
}

// Validate checks the invoice and its lines.
func (inv *Invoice) Validate() error {
	if inv.WarehouseID == "" {
		return apperror.NewValidation("warehouseId is required").WithDetail("field", "warehouseId")
	}
	if len(inv.Lines) == 0 {
		return apperror.NewValidation("invoice must have at least one line").WithDetail("field", "lines")
	}
	for i, l := range inv.Lines {
		if l.VariantID == "" || l.Quantity <= 0 || l.UnitPrice.IsNegative() {
			return apperror.NewValidation("invalid invoice line").WithDetail("line", i)
		}
	}
	if inv.PaidAmount.IsNegative() {
		return apperror.NewValidation("paidAmount must not be negative").WithDetail("field", "paidAmount")
	}
	return nil
}

// ComputeTotal sums the lines.
func (inv *Invoice) ComputeTotal() types.Money {
	total := types.Zero()
	for _, l := range inv.Lines {
		total = total.Add(types.LineTotal(l.Quantity, l.UnitPrice))
	}
	return total
}

// Repository persists invoices.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
}

// Options tune the service.
type Options struct {
	AllowNegativeStock bool
}

// Service creates invoices.
type Service struct {
	txm        tx.Manager
	repo       Repository
	ledger     *ledger.Updater
	variants   inventory.VariantRepository
	warehouses inventory.WarehouseRepository
	opts       Options
	now        func() time.Time
}

// NewService creates an invoice service.
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

// Create stores the invoice and decrements stock per line in one
// transaction. Lines for the same variant are checked against their
// combined quantity.
func (s *Service) Create(ctx context.Context, inv *Invoice) error {
	inv.CustomerName = strings.TrimSpace(inv.CustomerName)
	if err := inv.Validate(); err != nil {
		return err
	}
	if _, err := s.warehouses.Get(ctx, inv.WarehouseID); err != nil {
		return err
	}
	inv.Total = inv.ComputeTotal()
	if inv.PaidAmount.GreaterThan(inv.Total) {
		return apperror.NewValidation("paidAmount exceeds invoice total").WithDetail("field", "paidAmount")
	}

	requested := make(map[string]int64)
	for _, l := range inv.Lines {
		requested[l.VariantID] += l.Quantity
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for variantID, qty := range requested {
			v, err := s.variants.Get(ctx, variantID)
			if err != nil {
				return err
			}
			if v.Archived {
				return apperror.NewBusinessRule(apperror.CodeVariantArchived, "variant is archived").
					WithDetail("variant_id", v.ID)
			}
			if available := v.Quantity(inv.WarehouseID); !s.opts.AllowNegativeStock && available < qty {
				return apperror.NewInsufficientStock(variantID, inv.WarehouseID, qty, available)
			}
		}

		inv.ID = id.New()
		inv.CreatedBy = appctx.GetUserID(ctx)
		inv.CreatedAt = s.now().UTC()
		if err := s.repo.Create(ctx, inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		for _, l := range inv.Lines {
			if _, err := s.ledger.ApplyMovement(ctx, ledger.Movement{
				VariantID:   l.VariantID,
				WarehouseID: inv.WarehouseID,
				Delta:       -l.Quantity,
				Reason:      ledger.ReasonSale,
				Reference:   inv.ID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "invoice created", "invoice_id", inv.ID, "lines", len(inv.Lines), "total", inv.Total.String())
	return nil
}

// Get returns an invoice or NotFound.
func (s *Service) Get(ctx context.Context, invoiceID string) (*Invoice, error) {
	return s.repo.Get(ctx, invoiceID)
}
