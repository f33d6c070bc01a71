package watch

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"batterystock/internal/core/apperror"
	"batterystock/internal/core/changefeed"
	"batterystock/internal/domain/inventory"
	"batterystock/pkg/logger"
)

type fakeCatalog struct {
	mu         sync.Mutex
	variants   map[string]*inventory.Variant
	products   map[string]*inventory.Product
	warehouses map[string]*inventory.Warehouse

	productErr  error
	variantErr  error
	variantGets int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		variants:   map[string]*inventory.Variant{},
		products:   map[string]*inventory.Product{"p1": {ID: "p1", Name: "Volta"}},
		warehouses: map[string]*inventory.Warehouse{"wh1": {ID: "wh1", Name: "Main"}, "wh2": {ID: "wh2", Name: "Annex"}},
	}
}

func (c *fakeCatalog) put(v inventory.Variant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v.ProductID == "" {
		v.ProductID = "p1"
	}
	if v.Capacity == 0 {
		v.Capacity = 60
	}
	c.variants[v.ID] = &v
}

func (c *fakeCatalog) setQty(variantID, warehouseID string, qty int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.variants[variantID]
	if v.StockLevels == nil {
		v.StockLevels = map[string]int64{}
	}
	v.StockLevels[warehouseID] = qty
}

func (c *fakeCatalog) setProductErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.productErr = err
}

// variant repository

type fakeVariantRepo struct {
	inventory.VariantRepository
	c *fakeCatalog
}

func (r fakeVariantRepo) Get(_ context.Context, id string) (*inventory.Variant, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	r.c.variantGets++
	if r.c.variantErr != nil {
		return nil, r.c.variantErr
	}
	v, ok := r.c.variants[id]
	if !ok {
		return nil, apperror.NewNotFound("variant", id)
	}
	cp := *v
	cp.StockLevels = maps.Clone(v.StockLevels)
	cp.MinQuantities = maps.Clone(v.MinQuantities)
	return &cp, nil
}

func (r fakeVariantRepo) List(_ context.Context, filter inventory.VariantFilter) ([]inventory.Variant, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if r.c.variantErr != nil {
		return nil, r.c.variantErr
	}
	var out []inventory.Variant
	for _, v := range r.c.variants {
		if v.Archived && !filter.IncludeArchived {
			continue
		}
		cp := *v
		cp.StockLevels = maps.Clone(v.StockLevels)
		out = append(out, cp)
	}
	return out, nil
}

type fakeProductRepo struct {
	inventory.ProductRepository
	c *fakeCatalog
}

func (r fakeProductRepo) Get(_ context.Context, id string) (*inventory.Product, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if r.c.productErr != nil {
		return nil, r.c.productErr
	}
	p, ok := r.c.products[id]
	if !ok {
		return nil, apperror.NewNotFound("product", id)
	}
	cp := *p
	return &cp, nil
}

type fakeWarehouseRepo struct {
	inventory.WarehouseRepository
	c *fakeCatalog
}

func (r fakeWarehouseRepo) Get(_ context.Context, id string) (*inventory.Warehouse, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	w, ok := r.c.warehouses[id]
	if !ok {
		return nil, apperror.NewNotFound("warehouse", id)
	}
	cp := *w
	return &cp, nil
}

func (r fakeWarehouseRepo) List(context.Context) ([]inventory.Warehouse, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []inventory.Warehouse
	for _, w := range r.c.warehouses {
		out = append(out, *w)
	}
	return out, nil
}

// notifier

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
}

func (n *recordingNotifier) ofKind(kind Kind) []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notification
	for _, s := range n.sent {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testEmitter(n Notifier, clock func() time.Time) emitter {
	if clock == nil {
		clock = time.Now
	}
	return emitter{notifier: n, recorder: nopRecorder{}, now: clock}
}

func newTestStockWatcher(c *fakeCatalog, n Notifier) *StockWatcher {
	return NewStockWatcher(fakeVariantRepo{c: c}, fakeProductRepo{c: c}, fakeWarehouseRepo{c: c}, testEmitter(n, nil), logger.Nop())
}

// change feed

type fakeFeed struct {
	mu        sync.Mutex
	subs      map[changefeed.Collection]chan changefeed.Batch
	snapshots map[changefeed.Collection][]changefeed.Event
	opened    chan changefeed.Collection
	// onAttach runs once a subscription is registered, before its Initial batch.
	onAttach func(coll changefeed.Collection)
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		subs:      map[changefeed.Collection]chan changefeed.Batch{},
		snapshots: map[changefeed.Collection][]changefeed.Event{},
		opened:    make(chan changefeed.Collection, 32),
	}
}

func (f *fakeFeed) Watch(ctx context.Context, coll changefeed.Collection, h changefeed.Handler) error {
	ch := make(chan changefeed.Batch, 16)
	f.mu.Lock()
	f.subs[coll] = ch
	snap := f.snapshots[coll]
	onAttach := f.onAttach
	f.mu.Unlock()

	if onAttach != nil {
		onAttach(coll)
	}
	h(ctx, changefeed.Batch{Initial: true, Events: snap})
	f.opened <- coll

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-ch:
			if !ok {
				return errFeedFault
			}
			h(ctx, b)
		}
	}
}

func (f *fakeFeed) push(coll changefeed.Collection, events ...changefeed.Event) {
	f.mu.Lock()
	ch := f.subs[coll]
	f.mu.Unlock()
	ch <- changefeed.Batch{Events: events}
}

func (f *fakeFeed) fault(coll changefeed.Collection) {
	f.mu.Lock()
	ch := f.subs[coll]
	delete(f.subs, coll)
	f.mu.Unlock()
	close(ch)
}

func (f *fakeFeed) setSnapshot(coll changefeed.Collection, events ...changefeed.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[coll] = events
}

var errFeedFault = errors.New("listener fault")

func mustEvent(kind changefeed.Kind, coll changefeed.Collection, id string, doc any) changefeed.Event {
	ev, err := changefeed.DocumentEvent(kind, coll, id, doc)
	if err != nil {
		panic(err)
	}
	return ev
}
