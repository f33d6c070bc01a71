package watch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batterystock/internal/core/changefeed"
	"batterystock/internal/domain/inventory"
	"batterystock/internal/domain/ledger"
)

func TestStockWatcher_OneNotificationPerBreachEpisode(t *testing.T) {
	c := newFakeCatalog()
	c.put(inventory.Variant{ID: "v1", MinQuantity: 5})
	n := &recordingNotifier{}
	w := newTestStockWatcher(c, n)
	key := StockKey{VariantID: "v1", WarehouseID: "wh1"}

	for _, qty := range []int64{10, 4, 3, 6, 2} {
		c.setQty("v1", "wh1", qty)
		require.NoError(t, w.Check(context.Background(), key))
	}

	alerts := n.ofKind(KindLowStock)
	require.Len(t, alerts, 2)
	assert.Contains(t, alerts[0].Body, "4 left")
	assert.Contains(t, alerts[1].Body, "2 left")
	assert.Equal(t, "v1@wh1", alerts[0].Key)
	assert.Equal(t, "Low stock: Volta 60Ah", alerts[0].Title)
	assert.True(t, w.Breached().Has(key))
}

func TestStockWatcher_ExemptThresholdNeverBreaches(t *testing.T) {
	tests := []struct {
		name    string
		variant inventory.Variant
	}{
		{"no minimum", inventory.Variant{ID: "v1"}},
		{"negative minimum", inventory.Variant{ID: "v1", MinQuantity: -1}},
		{"override to zero", inventory.Variant{ID: "v1", MinQuantity: 5, MinQuantities: map[string]int64{"wh1": 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeCatalog()
			c.put(tt.variant)
			n := &recordingNotifier{}
			w := newTestStockWatcher(c, n)

			for _, qty := range []int64{5, 0, -3, 0} {
				c.setQty("v1", "wh1", qty)
				require.NoError(t, w.Check(context.Background(), StockKey{"v1", "wh1"}))
			}
			assert.Zero(t, n.count())
		})
	}
}

func TestStockWatcher_PerWarehouseOverride(t *testing.T) {
	c := newFakeCatalog()
	c.put(inventory.Variant{ID: "v1", MinQuantity: 2, MinQuantities: map[string]int64{"wh2": 10}})
	c.setQty("v1", "wh1", 5)
	c.setQty("v1", "wh2", 5)
	n := &recordingNotifier{}
	w := newTestStockWatcher(c, n)

	require.NoError(t, w.Check(context.Background(), StockKey{"v1", "wh1"}))
	require.NoError(t, w.Check(context.Background(), StockKey{"v1", "wh2"}))

	alerts := n.ofKind(KindLowStock)
	require.Len(t, alerts, 1)
	assert.Equal(t, "v1@wh2", alerts[0].Key)
	assert.Contains(t, alerts[0].Body, "Annex has 5 left (minimum 10)")
}

func TestStockWatcher_ArchivedExcluded(t *testing.T) {
	c := newFakeCatalog()
	c.put(inventory.Variant{ID: "v1", MinQuantity: 10, Archived: true, StockLevels: map[string]int64{"wh1": 0}})
	n := &recordingNotifier{}
	w := newTestStockWatcher(c, n)

	require.NoError(t, w.Check(context.Background(), StockKey{"v1", "wh1"}))
	count, err := w.Sweep(context.Background(), true)

	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, n.count())
}

func TestStockWatcher_ArchivingClearsBreach(t *testing.T) {
	c := newFakeCatalog()
	c.put(inventory.Variant{ID: "v1", MinQuantity: 10, StockLevels: map[string]int64{"wh1": 1}})
	n := &recordingNotifier{}
	w := newTestStockWatcher(c, n)
	key := StockKey{"v1", "wh1"}

	require.NoError(t, w.Check(context.Background(), key))
	require.True(t, w.Breached().Has(key))

	c.variants["v1"].Archived = true
	require.NoError(t, w.Check(context.Background(), key))
	assert.False(t, w.Breached().Has(key))
	assert.Len(t, n.ofKind(KindLowStock), 1)
}

func TestStockWatcher_StartupSweepSeedsSilently(t *testing.T) {
	c := newFakeCatalog()
	c.put(inventory.Variant{ID: "A", MinQuantity: 5, StockLevels: map[string]int64{"wh1": 2}})
	c.put(inventory.Variant{ID: "B", MinQuantity: 3, StockLevels: map[string]int64{"wh1": 8}})
	delete(c.warehouses, "wh2")
	n := &recordingNotifier{}
	w := newTestStockWatcher(c, n)

	count, err := w.Sweep(context.Background(), true)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.ElementsMatch(t, []StockKey{{"A", "wh1"}}, w.Breached().Keys())
	summaries := n.ofKind(KindLowStockSummary)
	require.Len(t, summaries, 1)
	assert.Contains(t, summaries[0].Body, "1 item at or below")
	assert.Empty(t, n.ofKind(KindLowStock))

	// Already covered by the sweep: no individual alert.
	require.NoError(t, w.Check(context.Background(), StockKey{"A", "wh1"}))
	assert.Empty(t, n.ofKind(KindLowStock))
}

func TestStockWatcher_SweepWithoutBreachesIsQuiet(t *testing.T) {
	c := newFakeCatalog()
	c.put(inventory.Variant{ID: "B", MinQuantity: 3, StockLevels: map[string]int64{"wh1": 8, "wh2": 9}})
	n := &recordingNotifier{}
	w := newTestStockWatcher(c, n)

	count, err := w.Sweep(context.Background(), true)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, n.count())
}

func TestStockWatcher_FetchErrorAbortsOnlyThatCheck(t *testing.T) {
	c := newFakeCatalog()
	c.put(inventory.Variant{ID: "v1", MinQuantity: 5, StockLevels: map[string]int64{"wh1": 1}})
	n := &recordingNotifier{}
	w := newTestStockWatcher(c, n)
	key := StockKey{"v1", "wh1"}

	c.setProductErr(errors.New("timeout"))
	err := w.Check(context.Background(), key)
	assert.Error(t, err)
	assert.False(t, w.Breached().Has(key))
	assert.Zero(t, n.count())

	c.setProductErr(nil)
	require.NoError(t, w.Check(context.Background(), key))
	assert.Len(t, n.ofKind(KindLowStock), 1)
}

func TestStockWatcher_MissingVariantClearsKey(t *testing.T) {
	c := newFakeCatalog()
	w := newTestStockWatcher(c, &recordingNotifier{})
	key := StockKey{"gone", "wh1"}
	w.Breached().Mark(key)

	require.NoError(t, w.Check(context.Background(), key))
	assert.False(t, w.Breached().Has(key))
}

func TestStockWatcher_ConcurrentChecksNotifyOnce(t *testing.T) {
	c := newFakeCatalog()
	c.put(inventory.Variant{ID: "v1", MinQuantity: 5, StockLevels: map[string]int64{"wh1": 0}})
	n := &recordingNotifier{}
	w := newTestStockWatcher(c, n)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Check(context.Background(), StockKey{"v1", "wh1"})
		}()
	}
	wg.Wait()

	assert.Len(t, n.ofKind(KindLowStock), 1)
}

func TestStockWatcher_Keys(t *testing.T) {
	w := newTestStockWatcher(newFakeCatalog(), &recordingNotifier{})
	batch := changefeed.Batch{Events: []changefeed.Event{
		mustEvent(changefeed.Added, changefeed.StockMovements, "m1", ledger.Movement{ID: "m1", VariantID: "v1", WarehouseID: "wh1", Delta: -1}),
		mustEvent(changefeed.Added, changefeed.StockMovements, "m2", ledger.Movement{ID: "m2", VariantID: "v1", WarehouseID: "wh1", Delta: -2}),
		mustEvent(changefeed.Added, changefeed.StockMovements, "m3", ledger.Movement{ID: "m3", VariantID: "v2", WarehouseID: "wh1", Delta: 4}),
		mustEvent(changefeed.Modified, changefeed.StockMovements, "m4", ledger.Movement{ID: "m4", VariantID: "v3", WarehouseID: "wh1"}),
		changefeed.JSONEvent(changefeed.Added, changefeed.StockMovements, "m5", []byte("{bad")),
	}}

	keys := w.Keys(context.Background(), batch)
	assert.Equal(t, []StockKey{{"v1", "wh1"}, {"v2", "wh1"}}, keys)

	batch.Initial = true
	assert.Nil(t, w.Keys(context.Background(), batch))
}

func TestStockWatcher_CandidatesIncludeBreachedKeys(t *testing.T) {
	c := newFakeCatalog()
	c.put(inventory.Variant{ID: "v1", MinQuantity: 5, StockLevels: map[string]int64{"wh1": 1, "wh2": 9}})
	w := newTestStockWatcher(c, &recordingNotifier{})
	w.Breached().Mark(StockKey{"v1", "wh2"})

	keys, err := w.Candidates(context.Background())

	require.NoError(t, err)
	assert.ElementsMatch(t, []StockKey{{"v1", "wh1"}, {"v1", "wh2"}}, keys)
}
