package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batterystock/internal/core/changefeed"
	"batterystock/internal/core/types"
	"batterystock/internal/domain/bill"
	"batterystock/pkg/logger"
)

var billNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newTestBillWatcher(n Notifier) (*BillWatcher, *fixedClock) {
	clock := &fixedClock{now: billNow}
	return NewBillWatcher(7, testEmitter(n, clock.Now), logger.Nop()), clock
}

func testBill(id string, dueInDays int, amount, paid string) bill.Bill {
	return bill.Bill{
		ID:         id,
		SupplierID: "s1",
		Reference:  "INV-" + id,
		Amount:     types.MustMoney(amount),
		PaidAmount: types.MustMoney(paid),
		DueDate:    billNow.AddDate(0, 0, dueInDays),
		Status:     bill.StatusUnpaid,
	}
}

func billBatch(kind changefeed.Kind, bills ...bill.Bill) changefeed.Batch {
	var events []changefeed.Event
	for _, b := range bills {
		events = append(events, mustEvent(kind, changefeed.Bills, b.ID, b))
	}
	return changefeed.Batch{Events: events}
}

func attachEmpty(w *BillWatcher) {
	w.HandleBatch(context.Background(), changefeed.Batch{Initial: true})
}

func TestBillWatcher_DueSoonAlertsOnceThenPaidNeverAgain(t *testing.T) {
	n := &recordingNotifier{}
	w, clock := newTestBillWatcher(n)
	attachEmpty(w)
	ctx := context.Background()

	b := testBill("b1", 3, "100", "0")
	w.HandleBatch(ctx, billBatch(changefeed.Added, b))
	w.HandleBatch(ctx, billBatch(changefeed.Modified, b))

	alerts := n.ofKind(KindBillDueSoon)
	require.Len(t, alerts, 1)
	assert.Equal(t, "b1", alerts[0].Key)
	assert.Contains(t, alerts[0].Body, "due in 3 days")
	assert.Contains(t, alerts[0].Body, "100.00 outstanding")

	b.PaidAmount = b.Amount
	b.Status = bill.StatusPaid
	w.HandleBatch(ctx, billBatch(changefeed.Modified, b))
	assert.False(t, w.Notified().Has("b1"))

	clock.Advance(10 * 24 * time.Hour)
	w.Rescan(ctx)
	w.HandleBatch(ctx, billBatch(changefeed.Modified, b))

	assert.Equal(t, 1, n.count())
}

func TestBillWatcher_OverdueWording(t *testing.T) {
	n := &recordingNotifier{}
	w, _ := newTestBillWatcher(n)
	attachEmpty(w)

	w.HandleBatch(context.Background(), billBatch(changefeed.Added, testBill("b1", -2, "50", "20")))

	alerts := n.ofKind(KindBillOverdue)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Body, "overdue by 2 days, 30.00 outstanding")
}

func TestBillWatcher_OutsideWindowAlertsOnRescan(t *testing.T) {
	n := &recordingNotifier{}
	w, clock := newTestBillWatcher(n)
	attachEmpty(w)
	ctx := context.Background()

	w.HandleBatch(ctx, billBatch(changefeed.Added, testBill("b1", 9, "100", "0")))
	assert.Zero(t, n.count())

	clock.Advance(2 * 24 * time.Hour)
	w.Rescan(ctx)
	w.Rescan(ctx)

	assert.Len(t, n.ofKind(KindBillDueSoon), 1)
}

func TestBillWatcher_FirstAttachAggregates(t *testing.T) {
	n := &recordingNotifier{}
	w, _ := newTestBillWatcher(n)
	ctx := context.Background()

	snapshot := billBatch(changefeed.Added,
		testBill("over1", -1, "10", "0"),
		testBill("over2", -5, "10", "5"),
		testBill("soon", 3, "10", "0"),
		testBill("later", 6, "10", "0"),
		testBill("far", 30, "10", "0"),
		testBill("paid", 1, "10", "10"),
	)
	snapshot.Initial = true
	w.HandleBatch(ctx, snapshot)

	require.Equal(t, 1, n.count())
	summary := n.ofKind(KindBillSummary)
	require.Len(t, summary, 1)
	assert.Equal(t, "2 overdue bills, 2 due soon (next in 3 days)", summary[0].Body)
	assert.ElementsMatch(t, []string{"over1", "over2", "soon", "later"}, w.Notified().Keys())

	// Covered by the aggregate: no per-bill repeat.
	w.HandleBatch(ctx, billBatch(changefeed.Modified, testBill("soon", 3, "10", "1")))
	assert.Equal(t, 1, n.count())
}

func TestBillWatcher_ResubscribeSnapshotIsPerItem(t *testing.T) {
	n := &recordingNotifier{}
	w, _ := newTestBillWatcher(n)
	ctx := context.Background()

	first := billBatch(changefeed.Added, testBill("b1", 2, "10", "0"))
	first.Initial = true
	w.HandleBatch(ctx, first)
	require.Len(t, n.ofKind(KindBillSummary), 1)

	// b1 was paid while detached and is absent; b2 is new.
	second := billBatch(changefeed.Added, testBill("b2", 1, "10", "0"))
	second.Initial = true
	w.HandleBatch(ctx, second)

	assert.Len(t, n.ofKind(KindBillSummary), 1)
	assert.Len(t, n.ofKind(KindBillDueSoon), 1)
	assert.ElementsMatch(t, []string{"b2"}, w.Notified().Keys())
}

func TestBillWatcher_RemovedBillForgotten(t *testing.T) {
	n := &recordingNotifier{}
	w, _ := newTestBillWatcher(n)
	attachEmpty(w)
	ctx := context.Background()

	w.HandleBatch(ctx, billBatch(changefeed.Added, testBill("b1", 1, "10", "0")))
	w.HandleBatch(ctx, changefeed.Batch{Events: []changefeed.Event{
		changefeed.JSONEvent(changefeed.Removed, changefeed.Bills, "b1", nil),
	}})

	assert.Zero(t, w.Notified().Len())
	w.Rescan(ctx)
	assert.Equal(t, 1, n.count())
}

func TestBillWatcher_ResetStartsOver(t *testing.T) {
	n := &recordingNotifier{}
	w, _ := newTestBillWatcher(n)
	snap := billBatch(changefeed.Added, testBill("b1", 1, "10", "0"))
	snap.Initial = true

	w.HandleBatch(context.Background(), snap)
	w.Reset()
	w.HandleBatch(context.Background(), snap)

	assert.Len(t, n.ofKind(KindBillSummary), 2)
}
