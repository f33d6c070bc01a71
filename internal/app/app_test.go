package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batterystock/internal/config"
	"batterystock/internal/core/changefeed"
	appctx "batterystock/internal/core/context"
	"batterystock/internal/core/types"
	"batterystock/internal/domain/bill"
	"batterystock/internal/domain/inventory"
	"batterystock/internal/domain/invoice"
	"batterystock/internal/domain/stockentry"
	"batterystock/internal/domain/supplier"
	"batterystock/internal/domain/watch"
	"batterystock/internal/infrastructure/notify"
	"batterystock/internal/infrastructure/storage/memory"
	"batterystock/pkg/logger"
)

// attachedFeed reports every subscription whose snapshot was delivered.
type attachedFeed struct {
	changefeed.Feed
	attached chan changefeed.Collection
}

func (f attachedFeed) Watch(ctx context.Context, coll changefeed.Collection, h changefeed.Handler) error {
	return f.Feed.Watch(ctx, coll, func(ctx context.Context, b changefeed.Batch) {
		h(ctx, b)
		if b.Initial {
			f.attached <- coll
		}
	})
}

type inbox struct {
	mu    sync.Mutex
	notes []watch.Notification
}

func (in *inbox) Notify(_ context.Context, n watch.Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.notes = append(in.notes, n)
}

func (in *inbox) ofKind(kind watch.Kind) []watch.Notification {
	in.mu.Lock()
	defer in.mu.Unlock()
	var out []watch.Notification
	for _, n := range in.notes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func adminCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u1", IsAdmin: true, Roles: []string{appctx.RoleAdmin}})
}

func TestEndToEnd_MemoryStore(t *testing.T) {
	ctx := adminCtx()
	st := NewMemoryStore(memory.Options{Logger: logger.Nop()})
	svc := NewServices(st, config.AppConfig{})

	wh, err := svc.Inventory.CreateWarehouse(ctx, "Main")
	require.NoError(t, err)
	p := &inventory.Product{Name: "Volta AGM"}
	require.NoError(t, svc.Inventory.CreateProduct(ctx, p))
	v := &inventory.Variant{ProductID: p.ID, Capacity: 100, MinQuantity: 5}
	require.NoError(t, svc.Inventory.CreateVariant(ctx, v))
	sup := &supplier.Supplier{Name: "Acme Batteries"}
	require.NoError(t, svc.Suppliers.Create(ctx, sup))

	feed := attachedFeed{Feed: st.Feed, attached: make(chan changefeed.Collection, 3)}
	st.Feed = feed

	box := &inbox{}
	wcfg := config.WatchConfig{BillDueWindowDays: 7, CheckConcurrency: 2, ResubscribeDelay: time.Millisecond}
	session := NewSession(st, wcfg, box, nil, logger.Nop())
	require.NoError(t, session.Start(context.Background()))
	defer session.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-feed.attached:
		case <-time.After(2 * time.Second):
			t.Fatal("subscriptions did not attach")
		}
	}

	// Empty stock is at the minimum: one rollup, no per-key alert.
	require.Len(t, box.ofKind(watch.KindLowStockSummary), 1)

	entry, err := svc.Entries.Create(ctx, stockentry.CreateInput{
		ProductVariantID: v.ID, WarehouseID: wh.ID, SupplierID: sup.ID,
		Quantity: 10, CostPrice: types.MustMoney("40"),
	})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return len(box.ofKind(watch.KindApprovalPending)) == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err = svc.Entries.Approve(ctx, entry.ID)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return session.Stock.Breached().Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, svc.Invoices.Create(ctx, &invoice.Invoice{
		WarehouseID: wh.ID,
		Lines:       []invoice.Line{{VariantID: v.ID, Quantity: 7, UnitPrice: types.MustMoney("55")}},
	}))
	assert.Eventually(t, func() bool { return len(box.ofKind(watch.KindLowStock)) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, box.ofKind(watch.KindLowStock)[0].Body, "Main has 3 left (minimum 5)")

	stored, err := svc.Suppliers.Get(ctx, sup.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalDebit.Equal(types.MustMoney("400")))

	b, err := svc.Bills.Create(ctx, bill.CreateInput{
		SupplierID: sup.ID, Reference: "INV-77", Amount: types.MustMoney("400"),
		DueDate: time.Now().Add(72 * time.Hour),
	})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return len(box.ofKind(watch.KindBillDueSoon)) == 1 }, 2*time.Second, 5*time.Millisecond)

	paid, err := svc.Bills.RecordPayment(ctx, b.ID, types.MustMoney("400"), nil)
	require.NoError(t, err)
	assert.True(t, paid.FullyPaid())

	stored, err = svc.Suppliers.Get(ctx, sup.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance().IsZero())
	assert.Len(t, box.ofKind(watch.KindBillDueSoon), 1)
}

func TestNewNotifier_ConfiguredSinks(t *testing.T) {
	n, closer := NewNotifier(config.NotifyConfig{Sinks: []string{config.SinkLog}}, logger.Nop())
	assert.NotNil(t, n)
	assert.NoError(t, closer.Close())

	n, _ = NewNotifier(config.NotifyConfig{
		Sinks:        []string{config.SinkLog, config.SinkKafka},
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "alerts",
	}, logger.Nop())
	sinks, ok := n.(notify.Multi)
	require.True(t, ok)
	assert.Len(t, sinks, 2)
}

func TestOpenStore_Memory(t *testing.T) {
	var retries int
	st, err := OpenStore(context.Background(), config.StoreConfig{Driver: config.DriverMemory, TxMaxRetries: 3},
		func(string) func(error) { return func(error) { retries++ } }, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, config.DriverMemory, st.Backend)
	assert.NoError(t, st.Ping(context.Background()))
	assert.NoError(t, st.Close(context.Background()))
	assert.Nil(t, st.Maintain)
	assert.Zero(t, retries)

	_, err = OpenStore(context.Background(), config.StoreConfig{Driver: "sqlite"}, nil, logger.Nop())
	assert.Error(t, err)
}

func TestRetryPolicy(t *testing.T) {
	p := RetryPolicy(config.StoreConfig{TxMaxRetries: 2})
	assert.Equal(t, 2, p.MaxRetries)
	assert.Positive(t, p.InitialInterval)
}
