package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"batterystock/internal/core/changefeed"
	"batterystock/internal/domain/stockentry"
	"batterystock/internal/infrastructure/storage/postgres"
)

// StockEntryRepo implements stockentry.Repository.
type StockEntryRepo struct {
	table watchedTable[stockentry.Entry]
}

var _ stockentry.Repository = (*StockEntryRepo)(nil)

// NewStockEntryRepo creates a stock entry repository.
func NewStockEntryRepo(txm *postgres.TxManager, recorder *postgres.ChangeRecorder) *StockEntryRepo {
	return &StockEntryRepo{table: newWatchedTable[stockentry.Entry](txm, recorder, changefeed.StockEntries, "stock entry")}
}

func (r *StockEntryRepo) Create(ctx context.Context, e *stockentry.Entry) error {
	return r.table.create(ctx, e.ID, e)
}

func (r *StockEntryRepo) Get(ctx context.Context, id string) (*stockentry.Entry, error) {
	return r.table.Get(ctx, id)
}

func (r *StockEntryRepo) List(ctx context.Context, filter stockentry.Filter) ([]stockentry.Entry, error) {
	return r.table.List(ctx, r.listQuery(filter))
}

func (r *StockEntryRepo) listQuery(filter stockentry.Filter) squirrel.SelectBuilder {
	q := r.table.Select()
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(filter.Status)})
	}
	return q.OrderBy("created_at", "id")
}

func (r *StockEntryRepo) Update(ctx context.Context, e *stockentry.Entry, expectedVersion int64) error {
	e.Version = expectedVersion + 1
	if err := r.table.replace(ctx, e.ID, e, expectedVersion); err != nil {
		e.Version = expectedVersion
		return err
	}
	return nil
}

// Snapshot feeds the stock entries subscription.
func (r *StockEntryRepo) Snapshot(ctx context.Context) ([]changefeed.Event, error) {
	return r.table.snapshot(ctx, func(e *stockentry.Entry) string { return e.ID })
}
