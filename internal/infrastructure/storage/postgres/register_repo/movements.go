// Package register_repo provides the PostgreSQL stock movement register.
package register_repo

import (
	"context"
	"fmt"
	"slices"

	"github.com/Masterminds/squirrel"

	"batterystock/internal/core/changefeed"
	"batterystock/internal/domain/ledger"
	"batterystock/internal/infrastructure/storage/postgres"
)

const movementsTable = "stock_movements"

// MovementRepo implements ledger.MovementRepository. Every append is
// also written to the change log for the stock watcher.
type MovementRepo struct {
	table    *postgres.Table[ledger.Movement]
	recorder *postgres.ChangeRecorder
}

var _ ledger.MovementRepository = (*MovementRepo)(nil)

// NewMovementRepo creates a movement repository.
func NewMovementRepo(txm *postgres.TxManager, recorder *postgres.ChangeRecorder) *MovementRepo {
	return &MovementRepo{
		table:    postgres.NewTable[ledger.Movement](txm, movementsTable, "movement"),
		recorder: recorder,
	}
}

// Append inserts the movement and logs it in the same transaction.
func (r *MovementRepo) Append(ctx context.Context, m *ledger.Movement) error {
	return r.table.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.table.Insert(ctx, m.ID, m); err != nil {
			return err
		}
		return r.recorder.Record(ctx, changefeed.StockMovements, changefeed.Added, m.ID, m)
	})
}

// List returns matching movements oldest first. With a limit, the most
// recent ones are kept.
func (r *MovementRepo) List(ctx context.Context, filter ledger.MovementFilter) ([]ledger.Movement, error) {
	out, err := r.table.List(ctx, r.listQuery(filter))
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	if filter.Limit > 0 {
		slices.Reverse(out)
	}
	return out, nil
}

func (r *MovementRepo) listQuery(filter ledger.MovementFilter) squirrel.SelectBuilder {
	where := squirrel.Eq{}
	if filter.VariantID != "" {
		where["variant_id"] = filter.VariantID
	}
	if filter.WarehouseID != "" {
		where["warehouse_id"] = filter.WarehouseID
	}
	if filter.Reference != "" {
		where["reference"] = filter.Reference
	}

	q := r.table.Select()
	if len(where) > 0 {
		q = q.Where(where)
	}
	if filter.Limit > 0 {
		return q.OrderBy("created_at DESC", "id DESC").Limit(uint64(filter.Limit))
	}
	return q.OrderBy("created_at", "id")
}
