package watch

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"batterystock/internal/core/apperror"
	"batterystock/internal/core/changefeed"
	"batterystock/internal/domain/inventory"
	"batterystock/internal/domain/ledger"
	"batterystock/pkg/logger"
)

var tracer = otel.Tracer("batterystock/watch")

const stockWatcherName = "stock"

// StockKey identifies one (variant, warehouse) pair.
type StockKey struct {
	VariantID   string
	WarehouseID string
}

func (k StockKey) String() string {
	return k.VariantID + "@" + k.WarehouseID
}

// StockWatcher runs the low-stock state machine. A key is Breached while
// it is in the breached set: entering the set emits one notification,
// leaving it is silent.
type StockWatcher struct {
	variants   inventory.VariantRepository
	products   inventory.ProductRepository
	warehouses inventory.WarehouseRepository
	emitter    emitter
	recorder   Recorder
	log        *logger.Logger

	breached *NotifiedSet[StockKey]
}

// NewStockWatcher creates a stock watcher with an empty breached set.
func NewStockWatcher(
	variants inventory.VariantRepository,
	products inventory.ProductRepository,
	warehouses inventory.WarehouseRepository,
	em emitter,
	log *logger.Logger,
) *StockWatcher {
	return &StockWatcher{
		variants:   variants,
		products:   products,
		warehouses: warehouses,
		emitter:    em,
		recorder:   em.recorder,
		log:        log.WithComponent("stock-watch"),
		breached:   NewNotifiedSet[StockKey](),
	}
}

// Breached exposes the breached set.
func (w *StockWatcher) Breached() *NotifiedSet[StockKey] {
	return w.breached
}

// Check re-evaluates a single key against the store. Any read error
// aborts the check and leaves the key in its previous state.
func (w *StockWatcher) Check(ctx context.Context, key StockKey) (err error) {
	ctx, span := tracer.Start(ctx, "watch.stock.check", trace.WithAttributes(
		attribute.String("variant_id", key.VariantID),
		attribute.String("warehouse_id", key.WarehouseID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	v, err := w.variants.Get(ctx, key.VariantID)
	if err != nil {
		if apperror.IsNotFound(err) {
			w.breached.Unmark(key)
			return nil
		}
		return fmt.Errorf("read variant: %w", err)
	}

	lvl := v.Level(key.WarehouseID)
	if v.Archived || !lvl.Low() {
		// Breached -> Normal, or the key became exempt.
		w.breached.Unmark(key)
		return nil
	}
	if w.breached.Has(key) {
		return nil
	}

	n, active, err := w.describe(ctx, v, lvl)
	if err != nil {
		return err
	}
	if !active {
		w.breached.Unmark(key)
		return nil
	}
	if !w.breached.Mark(key) {
		return nil
	}
	w.emitter.emit(ctx, n)
	return nil
}

// CheckAndLog runs Check and reports a failure to the log and recorder.
func (w *StockWatcher) CheckAndLog(ctx context.Context, key StockKey) {
	if err := w.Check(ctx, key); err != nil {
		w.recorder.CheckFailed(stockWatcherName)
		w.log.WithContext(ctx).Warnw("low-stock check failed",
			"variant_id", key.VariantID, "warehouse_id", key.WarehouseID, "error", err)
	}
	w.recorder.NotifiedKeys(stockWatcherName, w.breached.Len())
}

// Keys extracts the keys touched by a batch of movement events. Initial
// batches yield no keys; the session reconciles on them.
func (w *StockWatcher) Keys(ctx context.Context, batch changefeed.Batch) []StockKey {
	if batch.Initial {
		return nil
	}
	var out []StockKey
	seen := make(map[StockKey]struct{})
	for _, ev := range batch.Events {
		if ev.Kind != changefeed.Added {
			continue
		}
		var m ledger.Movement
		if err := ev.Decode(&m); err != nil {
			w.recorder.CheckFailed(stockWatcherName)
			w.log.WithContext(ctx).Warnw("undecodable movement event", "document_id", ev.DocumentID, "error", err)
			continue
		}
		key := StockKey{VariantID: m.VariantID, WarehouseID: m.WarehouseID}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// Sweep evaluates every non-archived variant in every active warehouse
// and seeds the breached set from scratch without per-key alerts. When
// announce is set and something is breached, one summary notification
// carries the count. It returns the number of breached keys.
func (w *StockWatcher) Sweep(ctx context.Context, announce bool) (int, error) {
	levels, err := w.lowLevels(ctx)
	if err != nil {
		return 0, err
	}

	keys := make([]StockKey, 0, len(levels))
	for _, l := range levels {
		keys = append(keys, StockKey{VariantID: l.VariantID, WarehouseID: l.WarehouseID})
	}
	w.breached.Replace(keys)
	w.recorder.NotifiedKeys(stockWatcherName, len(keys))

	if announce && len(keys) > 0 {
		w.emitter.emit(ctx, Notification{
			Kind:  KindLowStockSummary,
			Title: "Low stock",
			Body:  plural(len(keys), "item", "items") + " at or below the minimum stock level",
		})
	}
	w.log.WithContext(ctx).Infow("stock reconciliation sweep complete", "breached", len(keys))
	return len(keys), nil
}

// Candidates lists the keys a periodic safety-net sweep should re-check:
// everything low in the store plus everything currently breached. Each one
// goes through Check, so new breaches alert individually and recoveries
// are confirmed against a fresh read.
func (w *StockWatcher) Candidates(ctx context.Context) ([]StockKey, error) {
	levels, err := w.lowLevels(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[StockKey]struct{}, len(levels))
	for _, l := range levels {
		set[StockKey{VariantID: l.VariantID, WarehouseID: l.WarehouseID}] = struct{}{}
	}
	for _, k := range w.breached.Keys() {
		set[k] = struct{}{}
	}
	out := make([]StockKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out, nil
}

func (w *StockWatcher) lowLevels(ctx context.Context) ([]inventory.StockLevel, error) {
	variants, err := w.variants.List(ctx, inventory.VariantFilter{})
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	warehouses, err := w.warehouses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	return inventory.LowLevels(variants, warehouses), nil
}

// describe words the alert. active is false for archived warehouses.
func (w *StockWatcher) describe(ctx context.Context, v *inventory.Variant, lvl inventory.StockLevel) (n Notification, active bool, err error) {
	wh, err := w.warehouses.Get(ctx, lvl.WarehouseID)
	if err != nil {
		return n, false, fmt.Errorf("read warehouse %s: %w", lvl.WarehouseID, err)
	}
	if wh.Archived {
		return n, false, nil
	}
	p, err := w.products.Get(ctx, v.ProductID)
	if err != nil {
		return n, false, fmt.Errorf("read product %s: %w", v.ProductID, err)
	}
	return Notification{
		Kind:  KindLowStock,
		Key:   StockKey{VariantID: v.ID, WarehouseID: lvl.WarehouseID}.String(),
		Title: fmt.Sprintf("Low stock: %s %dAh", p.Name, v.Capacity),
		Body:  fmt.Sprintf("%s has %d left (minimum %d)", wh.Name, lvl.Quantity, lvl.Threshold),
	}, true, nil
}
