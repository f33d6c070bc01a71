package document_repo

import (
	"context"

	"batterystock/internal/domain/invoice"
	"batterystock/internal/domain/transfer"
	"batterystock/internal/infrastructure/storage/postgres"
)

// TransferRepo implements transfer.Repository.
type TransferRepo struct {
	table *postgres.Table[transfer.Transfer]
}

var _ transfer.Repository = (*TransferRepo)(nil)

// NewTransferRepo creates a transfer repository.
func NewTransferRepo(txm *postgres.TxManager) *TransferRepo {
	return &TransferRepo{table: postgres.NewTable[transfer.Transfer](txm, "transfers", "transfer")}
}

func (r *TransferRepo) Create(ctx context.Context, t *transfer.Transfer) error {
	return r.table.Insert(ctx, t.ID, t)
}

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct {
	table *postgres.Table[invoice.Invoice]
}

var _ invoice.Repository = (*InvoiceRepo)(nil)

// NewInvoiceRepo creates an invoice repository.
func NewInvoiceRepo(txm *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{table: postgres.NewTable[invoice.Invoice](txm, "invoices", "invoice")}
}

func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	return r.table.Insert(ctx, inv.ID, inv)
}

func (r *InvoiceRepo) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.table.Get(ctx, id)
}
