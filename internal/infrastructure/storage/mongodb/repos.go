package mongodb

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"batterystock/internal/domain/bill"
	"batterystock/internal/domain/inventory"
	"batterystock/internal/domain/invoice"
	"batterystock/internal/domain/ledger"
	"batterystock/internal/domain/stockentry"
	"batterystock/internal/domain/supplier"
	"batterystock/internal/domain/transfer"
)

// setFields renders doc as a $set document without the keys in except.
func setFields(doc any, except ...string) (bson.M, error) {
	raw, err := bson.MarshalWithRegistry(Registry(), doc)
	if err != nil {
		return nil, fmt.Errorf("marshal update: %w", err)
	}
	var m bson.M
	if err := bson.UnmarshalWithRegistry(Registry(), raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal update: %w", err)
	}
	for _, k := range except {
		delete(m, k)
	}
	return m, nil
}

// WarehouseRepo implements inventory.WarehouseRepository.
type WarehouseRepo struct{ c collection[inventory.Warehouse] }

var _ inventory.WarehouseRepository = WarehouseRepo{}

func NewWarehouseRepo(c *Client) WarehouseRepo {
	return WarehouseRepo{newCollection[inventory.Warehouse](c.database, collWarehouses, "warehouse")}
}

func (r WarehouseRepo) Create(ctx context.Context, w *inventory.Warehouse) error {
	return r.c.insert(ctx, w.ID, w)
}

func (r WarehouseRepo) Get(ctx context.Context, id string) (*inventory.Warehouse, error) {
	return r.c.get(ctx, id)
}

func (r WarehouseRepo) List(ctx context.Context) ([]inventory.Warehouse, error) {
	return r.c.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
}

// ProductRepo implements inventory.ProductRepository.
type ProductRepo struct{ c collection[inventory.Product] }

var _ inventory.ProductRepository = ProductRepo{}

func NewProductRepo(c *Client) ProductRepo {
	return ProductRepo{newCollection[inventory.Product](c.database, collProducts, "product")}
}

func (r ProductRepo) Create(ctx context.Context, p *inventory.Product) error {
	return r.c.insert(ctx, p.ID, p)
}

func (r ProductRepo) Get(ctx context.Context, id string) (*inventory.Product, error) {
	return r.c.get(ctx, id)
}

// VariantRepo implements inventory.VariantRepository.
type VariantRepo struct{ c collection[inventory.Variant] }

var _ inventory.VariantRepository = VariantRepo{}

func NewVariantRepo(c *Client) VariantRepo {
	return VariantRepo{newCollection[inventory.Variant](c.database, collVariants, "variant")}
}

func (r VariantRepo) Create(ctx context.Context, v *inventory.Variant) error {
	return r.c.insert(ctx, v.ID, v)
}

func (r VariantRepo) Get(ctx context.Context, id string) (*inventory.Variant, error) {
	return r.c.get(ctx, id)
}

func (r VariantRepo) List(ctx context.Context, f inventory.VariantFilter) ([]inventory.Variant, error) {
	return r.c.find(ctx, variantFilter(f), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func variantFilter(f inventory.VariantFilter) bson.M {
	filter := bson.M{}
	if f.ProductID != "" {
		filter["productId"] = f.ProductID
	}
	if !f.IncludeArchived {
		filter["archived"] = bson.M{"$ne": true}
	}
	return filter
}

func (r VariantRepo) UpdateStockLevels(ctx context.Context, id string, levels map[string]int64, expectedVersion int64) error {
	if levels == nil {
		levels = map[string]int64{}
	}
	return r.c.updateVersioned(ctx, id, expectedVersion, bson.M{
		"stockLevels": maps.Clone(levels),
		"updatedAt":   time.Now().UTC(),
	})
}

func (r VariantRepo) Update(ctx context.Context, v *inventory.Variant, expectedVersion int64) error {
	set, err := setFields(v, "_id", "stockLevels", "version", "createdAt")
	if err != nil {
		return err
	}
	if err := r.c.updateVersioned(ctx, v.ID, expectedVersion, set); err != nil {
		return err
	}
	v.Version = expectedVersion + 1
	return nil
}

// SupplierRepo implements supplier.Repository.
type SupplierRepo struct{ c collection[supplier.Supplier] }

var _ supplier.Repository = SupplierRepo{}

func NewSupplierRepo(c *Client) SupplierRepo {
	return SupplierRepo{newCollection[supplier.Supplier](c.database, collSuppliers, "supplier")}
}

func (r SupplierRepo) Create(ctx context.Context, s *supplier.Supplier) error {
	return r.c.insert(ctx, s.ID, s)
}

func (r SupplierRepo) Get(ctx context.Context, id string) (*supplier.Supplier, error) {
	return r.c.get(ctx, id)
}

func (r SupplierRepo) UpdateBalance(ctx context.Context, id string, upd supplier.BalanceUpdate, expectedVersion int64) error {
	return r.c.updateVersioned(ctx, id, expectedVersion, balanceSet(upd, time.Now().UTC()))
}

func balanceSet(upd supplier.BalanceUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if upd.TotalDebit != nil {
		set["totalDebit"] = *upd.TotalDebit
	}
	if upd.TotalCredit != nil {
		set["totalCredit"] = *upd.TotalCredit
	}
	return set
}

// MovementRepo implements ledger.MovementRepository.
type MovementRepo struct{ c collection[ledger.Movement] }

var _ ledger.MovementRepository = MovementRepo{}

func NewMovementRepo(c *Client) MovementRepo {
	return MovementRepo{newCollection[ledger.Movement](c.database, collMovements, "movement")}
}

func (r MovementRepo) Append(ctx context.Context, m *ledger.Movement) error {
	return r.c.insert(ctx, m.ID, m)
}

// List returns the matching movements oldest first. With a limit the
// newest Limit rows are kept.
func (r MovementRepo) List(ctx context.Context, f ledger.MovementFilter) ([]ledger.Movement, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if f.Limit > 0 {
		opts.SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).SetLimit(int64(f.Limit))
	}
	out, err := r.c.find(ctx, movementFilter(f), opts)
	if err != nil {
		return nil, err
	}
	if f.Limit > 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func movementFilter(f ledger.MovementFilter) bson.M {
	filter := bson.M{}
	if f.VariantID != "" {
		filter["variantId"] = f.VariantID
	}
	if f.WarehouseID != "" {
		filter["warehouseId"] = f.WarehouseID
	}
	if f.Reference != "" {
		filter["reference"] = f.Reference
	}
	return filter
}

// EntryRepo implements stockentry.Repository.
type EntryRepo struct{ c collection[stockentry.Entry] }

var _ stockentry.Repository = EntryRepo{}

func NewEntryRepo(c *Client) EntryRepo {
	return EntryRepo{newCollection[stockentry.Entry](c.database, collEntries, "stock entry")}
}

func (r EntryRepo) Create(ctx context.Context, e *stockentry.Entry) error {
	return r.c.insert(ctx, e.ID, e)
}

func (r EntryRepo) Get(ctx context.Context, id string) (*stockentry.Entry, error) {
	return r.c.get(ctx, id)
}

func (r EntryRepo) List(ctx context.Context, f stockentry.Filter) ([]stockentry.Entry, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return r.c.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (r EntryRepo) Update(ctx context.Context, e *stockentry.Entry, expectedVersion int64) error {
	next := *e
	next.Version = expectedVersion + 1
	if err := r.c.replaceVersioned(ctx, e.ID, expectedVersion, &next); err != nil {
		return err
	}
	e.Version = next.Version
	return nil
}

// BillRepo implements bill.Repository.
type BillRepo struct{ c collection[bill.Bill] }

var _ bill.Repository = BillRepo{}

func NewBillRepo(c *Client) BillRepo {
	return BillRepo{newCollection[bill.Bill](c.database, collBills, "bill")}
}

func (r BillRepo) Create(ctx context.Context, b *bill.Bill) error {
	if b.Payments == nil {
		b.Payments = []bill.Payment{}
	}
	return r.c.insert(ctx, b.ID, b)
}

func (r BillRepo) Get(ctx context.Context, id string) (*bill.Bill, error) {
	return r.c.get(ctx, id)
}

func (r BillRepo) List(ctx context.Context, f bill.Filter) ([]bill.Bill, error) {
	return r.c.find(ctx, billFilter(f), options.Find().SetSort(bson.D{{Key: "dueDate", Value: 1}}))
}

func billFilter(f bill.Filter) bson.M {
	filter := bson.M{}
	if f.SupplierID != "" {
		filter["supplierId"] = f.SupplierID
	}
	if f.UnpaidOnly {
		filter["$expr"] = bson.M{"$lt": bson.A{"$paidAmount", "$amount"}}
	}
	return filter
}

func (r BillRepo) Update(ctx context.Context, b *bill.Bill, expectedVersion int64) error {
	next := *b
	next.Version = expectedVersion + 1
	if err := r.c.replaceVersioned(ctx, b.ID, expectedVersion, &next); err != nil {
		return err
	}
	b.Version = next.Version
	return nil
}

// TransferRepo implements transfer.Repository.
type TransferRepo struct{ c collection[transfer.Transfer] }

var _ transfer.Repository = TransferRepo{}

func NewTransferRepo(c *Client) TransferRepo {
	return TransferRepo{newCollection[transfer.Transfer](c.database, collTransfers, "transfer")}
}

func (r TransferRepo) Create(ctx context.Context, t *transfer.Transfer) error {
	return r.c.insert(ctx, t.ID, t)
}

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct{ c collection[invoice.Invoice] }

var _ invoice.Repository = InvoiceRepo{}

func NewInvoiceRepo(c *Client) InvoiceRepo {
	return InvoiceRepo{newCollection[invoice.Invoice](c.database, collInvoices, "invoice")}
}

func (r InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	return r.c.insert(ctx, inv.ID, inv)
}

func (r InvoiceRepo) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.c.get(ctx, id)
}
