package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"batterystock/internal/core/changefeed"
	"batterystock/internal/domain/bill"
	"batterystock/internal/infrastructure/storage/postgres"
)

// BillRepo implements bill.Repository.
type BillRepo struct {
	table watchedTable[bill.Bill]
}

var _ bill.Repository = (*BillRepo)(nil)

// NewBillRepo creates a bill repository.
func NewBillRepo(txm *postgres.TxManager, recorder *postgres.ChangeRecorder) *BillRepo {
	return &BillRepo{table: newWatchedTable[bill.Bill](txm, recorder, changefeed.Bills, "bill")}
}

func (r *BillRepo) Create(ctx context.Context, b *bill.Bill) error {
	if b.Payments == nil {
		b.Payments = []bill.Payment{}
	}
	return r.table.create(ctx, b.ID, b)
}

func (r *BillRepo) Get(ctx context.Context, id string) (*bill.Bill, error) {
	return r.table.Get(ctx, id)
}

func (r *BillRepo) List(ctx context.Context, filter bill.Filter) ([]bill.Bill, error) {
	return r.table.List(ctx, r.listQuery(filter))
}

func (r *BillRepo) listQuery(filter bill.Filter) squirrel.SelectBuilder {
	q := r.table.Select()
	if filter.SupplierID != "" {
		q = q.Where(squirrel.Eq{"supplier_id": filter.SupplierID})
	}
	if filter.UnpaidOnly {
		q = q.Where("paid_amount < amount")
	}
	return q.OrderBy("due_date", "id")
}

func (r *BillRepo) Update(ctx context.Context, b *bill.Bill, expectedVersion int64) error {
	b.Version = expectedVersion + 1
	if err := r.table.replace(ctx, b.ID, b, expectedVersion); err != nil {
		b.Version = expectedVersion
		return err
	}
	return nil
}

// Snapshot feeds the bills subscription.
func (r *BillRepo) Snapshot(ctx context.Context) ([]changefeed.Event, error) {
	return r.table.snapshot(ctx, func(b *bill.Bill) string { return b.ID })
}
