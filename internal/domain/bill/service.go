package bill

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
	"batterystock/internal/domain/ledger"
	"batterystock/internal/domain/supplier"
	"batterystock/pkg/logger"
)

// Service manages bills and payments.
type Service struct {
	txm       tx.Manager
	repo      Repository
	ledger    *ledger.Updater
	suppliers supplier.Repository
	now       func() time.Time
}

// NewService creates a bill service.
func NewService(txm tx.Manager, repo Repository, updater *ledger.Updater, suppliers supplier.Repository) *Service {
	return &Service{txm: txm, repo: repo, ledger: updater, suppliers: suppliers, now: time.Now}
}

// CreateInput describes a new bill.
type CreateInput struct {
	SupplierID string
	Reference  string
	Amount     types.Money
	DueDate    time.Time
}

// Create records an unpaid bill. The supplier balance is not touched.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Bill, error) {
	b := &Bill{
		ID:         id.New(),
		SupplierID: in.SupplierID,
		Reference:  strings.TrimSpace(in.Reference),
		Amount:     in.Amount,
		PaidAmount: types.Zero(),
		DueDate:    in.DueDate.UTC(),
		Status:     StatusUnpaid,
		Payments:   []Payment{},
		CreatedAt:  s.now().UTC(),
		Version:    1,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.suppliers.Get(ctx, b.SupplierID); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create bill: %w", err)
	}
	logger.Info(ctx, "bill created", "bill_id", b.ID, "supplier_id", b.SupplierID, "amount", b.Amount.String())
	return b, nil
}

// RecordPayment adds a payment to the bill and credits the supplier with
// the same amount in one transaction. Paying more than is outstanding
// fails with BILL_OVERPAID.
func (s *Service) RecordPayment(ctx context.Context, billID string, amount types.Money, paidAt *time.Time) (*Bill, error) {
	if !amount.IsPositive() {
		return nil, apperror.NewValidation("payment amount must be positive").WithDetail("field", "amount")
	}

	var out *Bill
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.Get(ctx, billID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(b.Outstanding()) {
			return apperror.NewBusinessRule(apperror.CodeBillOverpaid, "payment exceeds outstanding amount").
				WithDetail("bill_id", b.ID).
				WithDetail("outstanding", b.Outstanding().String())
		}

		when := s.now().UTC()
		if paidAt != nil {
			when = paidAt.UTC()
		}
		b.PaidAmount = b.PaidAmount.Add(amount)
		b.Payments = append(b.Payments, Payment{Amount: amount, PaidAt: when, PaidBy: appctx.GetUserID(ctx)})
		b.Status = statusAfterPayment(b)

		if err := s.repo.Update(ctx, b, b.Version); err != nil {
			return err
		}
		if err := s.ledger.UpdateSupplierBalance(ctx, b.SupplierID, types.Zero(), amount); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "bill payment recorded", "bill_id", out.ID, "amount", amount.String(), "status", out.Status)
	return out, nil
}

// SetStatus overrides the status. PAID is accepted only for fully paid
// bills and the other statuses only for bills that are not.
func (s *Service) SetStatus(ctx context.Context, billID string, status Status) (*Bill, error) {
	if !status.Valid() {
		return nil, apperror.NewValidation("unknown bill status").WithDetail("status", status)
	}

	var out *Bill
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.Get(ctx, billID)
		if err != nil {
			return err
		}
		if (status == StatusPaid) != b.FullyPaid() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "status contradicts paid amount").
				WithDetail("status", status).
				WithDetail("outstanding", b.Outstanding().String())
		}
		b.Status = status
		if err := s.repo.Update(ctx, b, b.Version); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a bill or NotFound.
func (s *Service) Get(ctx context.Context, billID string) (*Bill, error) {
	return s.repo.Get(ctx, billID)
}

// ListUnpaid returns bills with an outstanding amount.
func (s *Service) ListUnpaid(ctx context.Context) ([]Bill, error) {
	return s.repo.List(ctx, Filter{UnpaidOnly: true})
}
