package watch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batterystock/internal/core/changefeed"
	"batterystock/internal/domain/stockentry"
	"batterystock/pkg/logger"
)

func entryEvent(kind changefeed.Kind, id string, status stockentry.Status) changefeed.Event {
	return mustEvent(kind, changefeed.StockEntries, id, stockentry.Entry{
		ID: id, ProductVariantID: "v1", WarehouseID: "wh1", SupplierID: "s1", Quantity: 4, Status: status,
	})
}

func TestApprovalWatcher_AlertsOncePerPendingEntry(t *testing.T) {
	n := &recordingNotifier{}
	w := NewApprovalWatcher(testEmitter(n, nil), logger.Nop())
	ctx := context.Background()
	w.HandleBatch(ctx, changefeed.Batch{Initial: true})

	w.HandleBatch(ctx, changefeed.Batch{Events: []changefeed.Event{entryEvent(changefeed.Added, "e1", stockentry.StatusPending)}})
	w.HandleBatch(ctx, changefeed.Batch{Events: []changefeed.Event{entryEvent(changefeed.Modified, "e1", stockentry.StatusPending)}})

	alerts := n.ofKind(KindApprovalPending)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Body, "4 units received into warehouse wh1")

	w.HandleBatch(ctx, changefeed.Batch{Events: []changefeed.Event{entryEvent(changefeed.Modified, "e1", stockentry.StatusApproved)}})
	assert.False(t, w.Notified().Has("e1"))
	assert.Equal(t, 1, n.count())
}

func TestApprovalWatcher_FirstAttachSummary(t *testing.T) {
	n := &recordingNotifier{}
	w := NewApprovalWatcher(testEmitter(n, nil), logger.Nop())

	w.HandleBatch(context.Background(), changefeed.Batch{Initial: true, Events: []changefeed.Event{
		entryEvent(changefeed.Added, "e1", stockentry.StatusPending),
		entryEvent(changefeed.Added, "e2", stockentry.StatusPending),
		entryEvent(changefeed.Added, "e3", stockentry.StatusApproved),
	}})

	summary := n.ofKind(KindApprovalSummary)
	require.Len(t, summary, 1)
	assert.Equal(t, "2 stock entries waiting for approval", summary[0].Body)
	assert.Empty(t, n.ofKind(KindApprovalPending))
	assert.ElementsMatch(t, []string{"e1", "e2"}, w.Notified().Keys())
}

func TestApprovalWatcher_ResubscribeDoesNotRepeat(t *testing.T) {
	n := &recordingNotifier{}
	w := NewApprovalWatcher(testEmitter(n, nil), logger.Nop())
	ctx := context.Background()
	snap := changefeed.Batch{Initial: true, Events: []changefeed.Event{entryEvent(changefeed.Added, "e1", stockentry.StatusPending)}}

	w.HandleBatch(ctx, snap)
	snap.Events = append(snap.Events, entryEvent(changefeed.Added, "e2", stockentry.StatusPending))
	w.HandleBatch(ctx, snap)

	assert.Len(t, n.ofKind(KindApprovalSummary), 1)
	pending := n.ofKind(KindApprovalPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "e2", pending[0].Key)
}
