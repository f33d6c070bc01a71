package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"batterystock/internal/core/apperror"
	"batterystock/internal/core/id"
	"batterystock/internal/core/tx"
)

// Service provides catalog operations. Stock levels are never written
// here; they change only through the ledger.
type Service struct {
	txm        tx.Manager
	warehouses WarehouseRepository
	products   ProductRepository
	variants   VariantRepository
	now        func() time.Time
}

// NewService creates an inventory service.
func NewService(txm tx.Manager, warehouses WarehouseRepository, products ProductRepository, variants VariantRepository) *Service {
	return &Service{
		txm:        txm,
		warehouses: warehouses,
		products:   products,
		variants:   variants,
		now:        time.Now,
	}
}

// CreateWarehouse registers a warehouse.
func (s *Service) CreateWarehouse(ctx context.Context, name string) (*Warehouse, error) {
	w := &Warehouse{ID: id.New(), Name: strings.TrimSpace(name), CreatedAt: s.now().UTC()}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := s.warehouses.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create warehouse: %w", err)
	}
	return w, nil
}

// ListWarehouses returns all warehouses.
func (s *Service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	return s.warehouses.List(ctx)
}

// GetWarehouse returns a warehouse or NotFound.
func (s *Service) GetWarehouse(ctx context.Context, warehouseID string) (*Warehouse, error) {
	return s.warehouses.Get(ctx, warehouseID)
}

// CreateProduct registers a product.
func (s *Service) CreateProduct(ctx context.Context, p *Product) error {
	p.ID = id.New()
	p.Name = strings.TrimSpace(p.Name)
	p.CreatedAt = s.now().UTC()
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.products.Create(ctx, p); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// GetProduct returns a product or NotFound.
func (s *Service) GetProduct(ctx context.Context, productID string) (*Product, error) {
	return s.products.Get(ctx, productID)
}

// CreateVariant registers a variant with empty stock.
func (s *Service) CreateVariant(ctx context.Context, v *Variant) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if _, err := s.products.Get(ctx, v.ProductID); err != nil {
		return err
	}
	if err := s.checkWarehouses(ctx, v.MinQuantities); err != nil {
		return err
	}

	now := s.now().UTC()
	v.ID = id.New()
	v.StockLevels = map[string]int64{}
	if v.MinQuantities == nil {
		v.MinQuantities = map[string]int64{}
	}
	v.Archived = false
	v.Version = 1
	v.CreatedAt = now
	v.UpdatedAt = now

	if err := s.variants.Create(ctx, v); err != nil {
		return fmt.Errorf("create variant: %w", err)
	}
	return nil
}

// GetVariant returns a variant or NotFound.
func (s *Service) GetVariant(ctx context.Context, variantID string) (*Variant, error) {
	return s.variants.Get(ctx, variantID)
}

// ListVariants lists variants.
func (s *Service) ListVariants(ctx context.Context, filter VariantFilter) ([]Variant, error) {
	return s.variants.List(ctx, filter)
}

// Thresholds is the low-stock configuration of a variant.
type Thresholds struct {
	MinQuantity   int64
	MinQuantities map[string]int64
}

// SetThresholds replaces the global and per-warehouse minimums.
func (s *Service) SetThresholds(ctx context.Context, variantID string, th Thresholds) (*Variant, error) {
	if err := s.checkWarehouses(ctx, th.MinQuantities); err != nil {
		return nil, err
	}
	return s.modify(ctx, variantID, func(v *Variant) error {
		v.MinQuantity = th.MinQuantity
		v.MinQuantities = th.MinQuantities
		if v.MinQuantities == nil {
			v.MinQuantities = map[string]int64{}
		}
		return v.Validate()
	})
}

// Archive hides a variant from low-stock evaluation. Archiving twice is
// not an error.
func (s *Service) Archive(ctx context.Context, variantID string) (*Variant, error) {
	return s.modify(ctx, variantID, func(v *Variant) error {
		v.Archived = true
		return nil
	})
}

// LowStock lists every (variant, warehouse) pair at or below its threshold.
func (s *Service) LowStock(ctx context.Context) ([]StockLevel, error) {
	variants, err := s.variants.List(ctx, VariantFilter{})
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	warehouses, err := s.warehouses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	return LowLevels(variants, warehouses), nil
}

func (s *Service) modify(ctx context.Context, variantID string, mutate func(v *Variant) error) (*Variant, error) {
	var out *Variant
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		v, err := s.variants.Get(ctx, variantID)
		if err != nil {
			return err
		}
		if err := mutate(v); err != nil {
			return err
		}
		v.UpdatedAt = s.now().UTC()
		if err := s.variants.Update(ctx, v, v.Version); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) checkWarehouses(ctx context.Context, keyed map[string]int64) error {
	for wh := range keyed {
		if _, err := s.warehouses.Get(ctx, wh); err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewValidation("unknown warehouse in minQuantities").WithDetail("warehouse_id", wh)
			}
			return err
		}
	}
	return nil
}
