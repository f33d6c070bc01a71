package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"batterystock/internal/core/apperror"
	"batterystock/internal/domain/bill"
	"batterystock/internal/domain/inventory"
	"batterystock/internal/domain/invoice"
	"batterystock/internal/domain/ledger"
	"batterystock/internal/domain/stockentry"
	"batterystock/internal/domain/supplier"
	"batterystock/internal/domain/transfer"
)

// docs is the typed view of one collection.
type docs[T any] struct {
	s      *Store
	coll   string
	entity string
}

func (d docs[T]) get(ctx context.Context, id string) (*T, error) {
	var out *T
	err := d.s.do(ctx, func(t *txn) error {
		body, ok := t.get(d.coll, id)
		if !ok {
			return apperror.NewNotFound(d.entity, id)
		}
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return fmt.Errorf("decode %s/%s: %w", d.coll, id, err)
		}
		out = &v
		return nil
	})
	return out, err
}

func (d docs[T]) insert(ctx context.Context, id string, doc *T) error {
	if id == "" {
		return apperror.NewValidation(d.entity + " id is required")
	}
	return d.s.do(ctx, func(t *txn) error {
		if _, exists := t.get(d.coll, id); exists {
			return apperror.NewDuplicate(d.entity, "id", id)
		}
		return t.put(d.coll, id, doc)
	})
}

// update loads the stored document, lets mutate check and change it, and
// writes it back.
func (d docs[T]) update(ctx context.Context, id string, mutate func(cur *T) error) error {
	return d.s.do(ctx, func(t *txn) error {
		body, ok := t.get(d.coll, id)
		if !ok {
			return apperror.NewNotFound(d.entity, id)
		}
		var cur T
		if err := json.Unmarshal(body, &cur); err != nil {
			return fmt.Errorf("decode %s/%s: %w", d.coll, id, err)
		}
		if err := mutate(&cur); err != nil {
			return err
		}
		return t.put(d.coll, id, &cur)
	})
}

func (d docs[T]) list(ctx context.Context, keep func(*T) bool) ([]T, error) {
	var out []T
	err := d.s.do(ctx, func(t *txn) error {
		all, err := decodeAll[T](t.scan(d.coll))
		if err != nil {
			return err
		}
		out = make([]T, 0, len(all))
		for i := range all {
			if keep == nil || keep(&all[i]) {
				out = append(out, all[i])
			}
		}
		return nil
	})
	return out, err
}

func checkVersion(entity, id string, stored, expected int64) error {
	if stored != expected {
		return apperror.NewConcurrentModification(entity, id).
			WithDetail("expected_version", expected).
			WithDetail("stored_version", stored)
	}
	return nil
}

// --- inventory ---

// WarehouseRepo implements inventory.WarehouseRepository.
type WarehouseRepo struct{ d docs[inventory.Warehouse] }

var _ inventory.WarehouseRepository = WarehouseRepo{}

func NewWarehouseRepo(s *Store) WarehouseRepo {
	return WarehouseRepo{docs[inventory.Warehouse]{s, collWarehouses, "warehouse"}}
}

func (r WarehouseRepo) Create(ctx context.Context, w *inventory.Warehouse) error {
	return r.d.insert(ctx, w.ID, w)
}

func (r WarehouseRepo) Get(ctx context.Context, id string) (*inventory.Warehouse, error) {
	return r.d.get(ctx, id)
}

func (r WarehouseRepo) List(ctx context.Context) ([]inventory.Warehouse, error) {
	return r.d.list(ctx, nil)
}

// ProductRepo implements inventory.ProductRepository.
type ProductRepo struct{ d docs[inventory.Product] }

var _ inventory.ProductRepository = ProductRepo{}

func NewProductRepo(s *Store) ProductRepo {
	return ProductRepo{docs[inventory.Product]{s, collProducts, "product"}}
}

func (r ProductRepo) Create(ctx context.Context, p *inventory.Product) error {
	return r.d.insert(ctx, p.ID, p)
}

func (r ProductRepo) Get(ctx context.Context, id string) (*inventory.Product, error) {
	return r.d.get(ctx, id)
}

// VariantRepo implements inventory.VariantRepository.
type VariantRepo struct{ d docs[inventory.Variant] }

var _ inventory.VariantRepository = VariantRepo{}

func NewVariantRepo(s *Store) VariantRepo {
	return VariantRepo{docs[inventory.Variant]{s, collVariants, "variant"}}
}

func (r VariantRepo) Create(ctx context.Context, v *inventory.Variant) error {
	return r.d.insert(ctx, v.ID, v)
}

func (r VariantRepo) Get(ctx context.Context, id string) (*inventory.Variant, error) {
	return r.d.get(ctx, id)
}

func (r VariantRepo) List(ctx context.Context, f inventory.VariantFilter) ([]inventory.Variant, error) {
	return r.d.list(ctx, func(v *inventory.Variant) bool {
		if f.ProductID != "" && v.ProductID != f.ProductID {
			return false
		}
		return f.IncludeArchived || !v.Archived
	})
}

func (r VariantRepo) UpdateStockLevels(ctx context.Context, id string, levels map[string]int64, expectedVersion int64) error {
	return r.d.update(ctx, id, func(cur *inventory.Variant) error {
		if err := checkVersion("variant", id, cur.Version, expectedVersion); err != nil {
			return err
		}
		cur.StockLevels = maps.Clone(levels)
		cur.Version++
		cur.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r VariantRepo) Update(ctx context.Context, v *inventory.Variant, expectedVersion int64) error {
	return r.d.update(ctx, v.ID, func(cur *inventory.Variant) error {
		if err := checkVersion("variant", v.ID, cur.Version, expectedVersion); err != nil {
			return err
		}
		levels := cur.StockLevels
		*cur = *v
		cur.StockLevels = levels
		cur.Version = expectedVersion + 1
		v.Version = cur.Version
		return nil
	})
}

// --- supplier ---

// SupplierRepo implements supplier.Repository.
type SupplierRepo struct{ d docs[supplier.Supplier] }

var _ supplier.Repository = SupplierRepo{}

func NewSupplierRepo(s *Store) SupplierRepo {
	return SupplierRepo{docs[supplier.Supplier]{s, collSuppliers, "supplier"}}
}

func (r SupplierRepo) Create(ctx context.Context, s *supplier.Supplier) error {
	return r.d.insert(ctx, s.ID, s)
}

func (r SupplierRepo) Get(ctx context.Context, id string) (*supplier.Supplier, error) {
	return r.d.get(ctx, id)
}

func (r SupplierRepo) UpdateBalance(ctx context.Context, id string, upd supplier.BalanceUpdate, expectedVersion int64) error {
	return r.d.update(ctx, id, func(cur *supplier.Supplier) error {
		if err := checkVersion("supplier", id, cur.Version, expectedVersion); err != nil {
			return err
		}
		if upd.TotalDebit != nil {
			cur.TotalDebit = *upd.TotalDebit
		}
		if upd.TotalCredit != nil {
			cur.TotalCredit = *upd.TotalCredit
		}
		cur.Version++
		cur.UpdatedAt = time.Now().UTC()
		return nil
	})
}

// --- ledger ---

// MovementRepo implements ledger.MovementRepository.
type MovementRepo struct{ d docs[ledger.Movement] }

var _ ledger.MovementRepository = MovementRepo{}

func NewMovementRepo(s *Store) MovementRepo {
	return MovementRepo{docs[ledger.Movement]{s, collMovements, "movement"}}
}

func (r MovementRepo) Append(ctx context.Context, m *ledger.Movement) error {
	return r.d.insert(ctx, m.ID, m)
}

func (r MovementRepo) List(ctx context.Context, f ledger.MovementFilter) ([]ledger.Movement, error) {
	out, err := r.d.list(ctx, func(m *ledger.Movement) bool {
		return (f.VariantID == "" || m.VariantID == f.VariantID) &&
			(f.WarehouseID == "" || m.WarehouseID == f.WarehouseID) &&
			(f.Reference == "" || m.Reference == f.Reference)
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b ledger.Movement) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}

// --- stock entries ---

// EntryRepo implements stockentry.Repository.
type EntryRepo struct{ d docs[stockentry.Entry] }

var _ stockentry.Repository = EntryRepo{}

func NewEntryRepo(s *Store) EntryRepo {
	return EntryRepo{docs[stockentry.Entry]{s, collEntries, "stock entry"}}
}

func (r EntryRepo) Create(ctx context.Context, e *stockentry.Entry) error {
	return r.d.insert(ctx, e.ID, e)
}

func (r EntryRepo) Get(ctx context.Context, id string) (*stockentry.Entry, error) {
	return r.d.get(ctx, id)
}

func (r EntryRepo) List(ctx context.Context, f stockentry.Filter) ([]stockentry.Entry, error) {
	out, err := r.d.list(ctx, func(e *stockentry.Entry) bool {
		return f.Status == "" || e.Status == f.Status
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b stockentry.Entry) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r EntryRepo) Update(ctx context.Context, e *stockentry.Entry, expectedVersion int64) error {
	return r.d.update(ctx, e.ID, func(cur *stockentry.Entry) error {
		if err := checkVersion("stock entry", e.ID, cur.Version, expectedVersion); err != nil {
			return err
		}
		*cur = *e
		cur.Version = expectedVersion + 1
		e.Version = cur.Version
		return nil
	})
}

// --- bills ---

// BillRepo implements bill.Repository.
type BillRepo struct{ d docs[bill.Bill] }

var _ bill.Repository = BillRepo{}

func NewBillRepo(s *Store) BillRepo {
	return BillRepo{docs[bill.Bill]{s, collBills, "bill"}}
}

func (r BillRepo) Create(ctx context.Context, b *bill.Bill) error {
	return r.d.insert(ctx, b.ID, b)
}

func (r BillRepo) Get(ctx context.Context, id string) (*bill.Bill, error) {
	return r.d.get(ctx, id)
}

func (r BillRepo) List(ctx context.Context, f bill.Filter) ([]bill.Bill, error) {
	out, err := r.d.list(ctx, func(b *bill.Bill) bool {
		if f.SupplierID != "" && b.SupplierID != f.SupplierID {
			return false
		}
		return !f.UnpaidOnly || !b.FullyPaid()
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b bill.Bill) int { return a.DueDate.Compare(b.DueDate) })
	return out, nil
}

func (r BillRepo) Update(ctx context.Context, b *bill.Bill, expectedVersion int64) error {
	return r.d.update(ctx, b.ID, func(cur *bill.Bill) error {
		if err := checkVersion("bill", b.ID, cur.Version, expectedVersion); err != nil {
			return err
		}
		*cur = *b
		cur.Version = expectedVersion + 1
		b.Version = cur.Version
		return nil
	})
}

// --- transfers and invoices ---

// TransferRepo implements transfer.Repository.
type TransferRepo struct{ d docs[transfer.Transfer] }

var _ transfer.Repository = TransferRepo{}

func NewTransferRepo(s *Store) TransferRepo {
	return TransferRepo{docs[transfer.Transfer]{s, collTransfers, "transfer"}}
}

func (r TransferRepo) Create(ctx context.Context, t *transfer.Transfer) error {
	return r.d.insert(ctx, t.ID, t)
}

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct{ d docs[invoice.Invoice] }

var _ invoice.Repository = InvoiceRepo{}

func NewInvoiceRepo(s *Store) InvoiceRepo {
	return InvoiceRepo{docs[invoice.Invoice]{s, collInvoices, "invoice"}}
}

func (r InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	return r.d.insert(ctx, inv.ID, inv)
}

func (r InvoiceRepo) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.d.get(ctx, id)
}
