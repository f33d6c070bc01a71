package catalog_repo

import (
	"context"
	"time"

	"batterystock/internal/domain/supplier"
	"batterystock/internal/infrastructure/storage/postgres"
)

const suppliersTable = "suppliers"

// SupplierRepo implements supplier.Repository.
type SupplierRepo struct {
	table *postgres.Table[supplier.Supplier]
}

var _ supplier.Repository = (*SupplierRepo)(nil)

// NewSupplierRepo creates a supplier repository.
func NewSupplierRepo(txm *postgres.TxManager) *SupplierRepo {
	return &SupplierRepo{table: postgres.NewTable[supplier.Supplier](txm, suppliersTable, "supplier")}
}

func (r *SupplierRepo) Create(ctx context.Context, s *supplier.Supplier) error {
	return r.table.Insert(ctx, s.ID, s)
}

func (r *SupplierRepo) Get(ctx context.Context, id string) (*supplier.Supplier, error) {
	return r.table.Get(ctx, id)
}

func (r *SupplierRepo) UpdateBalance(ctx context.Context, id string, upd supplier.BalanceUpdate, expectedVersion int64) error {
	return r.table.UpdateVersioned(ctx, id, expectedVersion, balanceColumns(upd))
}

// balanceColumns sets only the totals present in upd.
func balanceColumns(upd supplier.BalanceUpdate) map[string]any {
	set := map[string]any{"updated_at": time.Now().UTC()}
	if upd.TotalDebit != nil {
		set["total_debit"] = *upd.TotalDebit
	}
	if upd.TotalCredit != nil {
		set["total_credit"] = *upd.TotalCredit
	}
	return set
}
