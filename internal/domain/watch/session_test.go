package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batterystock/internal/core/changefeed"
	"batterystock/internal/domain/inventory"
	"batterystock/internal/domain/ledger"
	"batterystock/pkg/logger"
)

type sessionHarness struct {
	catalog  *fakeCatalog
	feed     *fakeFeed
	notifier *recordingNotifier
	session  *Session
}

func newSessionHarness() *sessionHarness {
	h := &sessionHarness{
		catalog:  newFakeCatalog(),
		feed:     newFakeFeed(),
		notifier: &recordingNotifier{},
	}
	clock := &fixedClock{now: billNow}
	h.session = NewSession(Config{
		BillDueWindowDays: 7,
		CheckConcurrency:  2,
		ResubscribeDelay:  time.Millisecond,
	}, Deps{
		Feed:       h.feed,
		Variants:   fakeVariantRepo{c: h.catalog},
		Products:   fakeProductRepo{c: h.catalog},
		Warehouses: fakeWarehouseRepo{c: h.catalog},
		Notifier:   h.notifier,
		Logger:     logger.Nop(),
		Now:        clock.Now,
	})
	return h
}

func (h *sessionHarness) waitOpened(t *testing.T, colls ...changefeed.Collection) {
	t.Helper()
	want := map[changefeed.Collection]int{}
	for _, c := range colls {
		want[c]++
	}
	deadline := time.After(2 * time.Second)
	for len(want) > 0 {
		select {
		case c := <-h.feed.opened:
			if want[c]--; want[c] <= 0 {
				delete(want, c)
			}
		case <-deadline:
			t.Fatalf("subscriptions not opened: %v", want)
		}
	}
}

func allCollections() []changefeed.Collection {
	return []changefeed.Collection{changefeed.StockMovements, changefeed.Bills, changefeed.StockEntries}
}

func TestSession_SweepThenTargetedAlerts(t *testing.T) {
	h := newSessionHarness()
	h.catalog.put(inventory.Variant{ID: "v1", MinQuantity: 5, StockLevels: map[string]int64{"wh1": 2, "wh2": 10}})

	require.NoError(t, h.session.Start(context.Background()))
	defer h.session.Stop()
	h.waitOpened(t, allCollections()...)

	summary := h.notifier.ofKind(KindLowStockSummary)
	require.Len(t, summary, 1)
	assert.Equal(t, "1 item at or below the minimum stock level", summary[0].Body)
	assert.Empty(t, h.notifier.ofKind(KindLowStock))

	h.catalog.setQty("v1", "wh2", 3)
	h.feed.push(changefeed.StockMovements, mustEvent(changefeed.Added, changefeed.StockMovements, "m1",
		ledger.Movement{ID: "m1", VariantID: "v1", WarehouseID: "wh2", Delta: -7, BalanceAfter: 3, Reason: ledger.ReasonSale}))

	assert.Eventually(t, func() bool {
		return len(h.notifier.ofKind(KindLowStock)) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, h.session.Stock.Breached().Has(StockKey{"v1", "wh2"}))
}

func TestSession_StopClearsAndRestartStartsOver(t *testing.T) {
	h := newSessionHarness()
	h.catalog.put(inventory.Variant{ID: "v1", MinQuantity: 5, StockLevels: map[string]int64{"wh1": 2, "wh2": 1}})
	ctx := context.Background()

	require.NoError(t, h.session.Start(ctx))
	assert.ErrorIs(t, h.session.Start(ctx), ErrSessionRunning)
	h.waitOpened(t, allCollections()...)
	h.session.Stop()

	assert.False(t, h.session.Running())
	assert.Zero(t, h.session.Stock.Breached().Len())
	assert.Zero(t, h.session.Bills.Notified().Len())

	require.NoError(t, h.session.Start(ctx))
	defer h.session.Stop()
	h.waitOpened(t, allCollections()...)

	assert.Len(t, h.notifier.ofKind(KindLowStockSummary), 2)
	assert.Equal(t, 2, h.session.Stock.Breached().Len())
}

func TestSession_ResubscribeDoesNotRepeatSummary(t *testing.T) {
	h := newSessionHarness()
	h.feed.setSnapshot(changefeed.Bills, mustEvent(changefeed.Added, changefeed.Bills, "b1", testBill("b1", 2, "40", "0")))

	require.NoError(t, h.session.Start(context.Background()))
	defer h.session.Stop()
	h.waitOpened(t, allCollections()...)
	require.Len(t, h.notifier.ofKind(KindBillSummary), 1)

	h.feed.fault(changefeed.Bills)
	h.waitOpened(t, changefeed.Bills)

	h.feed.push(changefeed.Bills, mustEvent(changefeed.Added, changefeed.Bills, "b2", testBill("b2", 1, "15", "0")))
	assert.Eventually(t, func() bool {
		return len(h.notifier.ofKind(KindBillDueSoon)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Len(t, h.notifier.ofKind(KindBillSummary), 1)
	assert.ElementsMatch(t, []string{"b1", "b2"}, h.session.Bills.Notified().Keys())
}

func TestSession_ResubscribeReconcilesMissedBreaches(t *testing.T) {
	h := newSessionHarness()
	h.catalog.put(inventory.Variant{ID: "v1", MinQuantity: 5, StockLevels: map[string]int64{"wh1": 2, "wh2": 10}})

	require.NoError(t, h.session.Start(context.Background()))
	defer h.session.Stop()
	h.waitOpened(t, allCollections()...)
	require.Len(t, h.notifier.ofKind(KindLowStockSummary), 1)

	// The movement for this commit is lost with the subscription.
	h.catalog.setQty("v1", "wh2", 1)
	h.feed.fault(changefeed.StockMovements)
	h.waitOpened(t, changefeed.StockMovements)

	assert.Eventually(t, func() bool {
		return len(h.notifier.ofKind(KindLowStock)) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool {
		return len(h.notifier.ofKind(KindLowStock)) > 1
	}, 50*time.Millisecond, 5*time.Millisecond)

	alerts := h.notifier.ofKind(KindLowStock)
	assert.Contains(t, alerts[0].Body, "Annex")
	assert.Len(t, h.notifier.ofKind(KindLowStockSummary), 1)
	assert.ElementsMatch(t, []StockKey{{"v1", "wh1"}, {"v1", "wh2"}}, h.session.Stock.Breached().Keys())
}

func TestSession_SeedSweepRunsOnAttach(t *testing.T) {
	h := newSessionHarness()
	h.catalog.put(inventory.Variant{ID: "v1", MinQuantity: 5, StockLevels: map[string]int64{"wh1": 1}})
	h.feed.onAttach = func(coll changefeed.Collection) {
		if coll == changefeed.StockMovements {
			h.catalog.setQty("v1", "wh1", 20)
		}
	}

	require.NoError(t, h.session.Start(context.Background()))
	defer h.session.Stop()
	h.waitOpened(t, allCollections()...)

	assert.Empty(t, h.notifier.ofKind(KindLowStockSummary))
	assert.Zero(t, h.session.Stock.Breached().Len())
	assert.Empty(t, h.notifier.ofKind(KindLowStock))
}

func TestSession_StopOnStoppedIsNoop(t *testing.T) {
	h := newSessionHarness()
	h.session.Stop()
	assert.False(t, h.session.Running())
}
