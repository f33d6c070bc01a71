package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"batterystock/internal/core/changefeed"
	"batterystock/internal/domain/bill"
	"batterystock/pkg/logger"
)

const billWatcherName = "bill"

// DefaultBillDueWindowDays is how far ahead bills are surfaced.
const DefaultBillDueWindowDays = 7

// BillWatcher alerts once per unpaid bill entering the due window. The
// events carry the whole bill, so evaluation needs no store reads and runs
// inline on the subscription.
type BillWatcher struct {
	window  int
	now     func() time.Time
	emitter emitter
	log     *logger.Logger

	notified *NotifiedSet[string]

	mu       sync.Mutex
	unpaid   map[string]bill.Bill // last seen state, re-evaluated by Rescan
	attached bool
}

// NewBillWatcher creates a bill watcher for a window of days.
func NewBillWatcher(windowDays int, em emitter, log *logger.Logger) *BillWatcher {
	if windowDays <= 0 {
		windowDays = DefaultBillDueWindowDays
	}
	return &BillWatcher{
		window:   windowDays,
		now:      em.now,
		emitter:  em,
		log:      log.WithComponent("bill-watch"),
		notified: NewNotifiedSet[string](),
		unpaid:   make(map[string]bill.Bill),
	}
}

// Notified exposes the notified set.
func (w *BillWatcher) Notified() *NotifiedSet[string] {
	return w.notified
}

// HandleBatch consumes one delivery of the bills subscription.
//
// The first snapshot of a session produces one summary alert covering
// every bill already in the window. Later snapshots (after a
// resubscription) and incremental events are evaluated bill by bill.
func (w *BillWatcher) HandleBatch(ctx context.Context, batch changefeed.Batch) {
	w.mu.Lock()
	defer w.mu.Unlock()

	bills := w.decode(ctx, batch.Events)
	if batch.Initial {
		w.resetSeen(bills)
		if !w.attached {
			w.attached = true
			w.summarize(ctx, bills)
			w.emitter.recorder.NotifiedKeys(billWatcherName, w.notified.Len())
			return
		}
	}

	for _, ev := range batch.Events {
		if ev.Kind == changefeed.Removed {
			w.forget(ev.DocumentID)
			continue
		}
		if b, ok := bills[ev.DocumentID]; ok {
			w.evaluate(ctx, &b)
		}
	}
	w.emitter.recorder.NotifiedKeys(billWatcherName, w.notified.Len())
}

// Rescan re-evaluates the last seen state of every unpaid bill so that
// bills drift into the window as days pass.
func (w *BillWatcher) Rescan(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, b := range w.unpaid {
		w.evaluate(ctx, &b)
	}
}

// Reset forgets everything; the next snapshot counts as the first attach.
func (w *BillWatcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notified.Clear()
	w.unpaid = make(map[string]bill.Bill)
	w.attached = false
}

func (w *BillWatcher) evaluate(ctx context.Context, b *bill.Bill) {
	if b.FullyPaid() {
		w.forget(b.ID)
		return
	}
	w.unpaid[b.ID] = *b

	now := w.now()
	if !b.DueWithin(now, w.window) || !w.notified.Mark(b.ID) {
		return
	}
	w.emitter.emit(ctx, billNotification(b, now))
}

func (w *BillWatcher) summarize(ctx context.Context, bills map[string]bill.Bill) {
	now := w.now()
	overdue, upcoming := 0, 0
	minDays := 0
	for _, b := range bills {
		if !b.DueWithin(now, w.window) {
			continue
		}
		w.notified.Mark(b.ID)
		days := b.DaysUntilDue(now)
		if days < 0 {
			overdue++
			continue
		}
		if upcoming == 0 || days < minDays {
			minDays = days
		}
		upcoming++
	}
	if overdue == 0 && upcoming == 0 {
		return
	}

	body := plural(overdue, "overdue bill", "overdue bills")
	if upcoming > 0 {
		body += fmt.Sprintf(", %d due soon (next in %s)", upcoming, dayWord(minDays))
	}
	w.emitter.emit(ctx, Notification{Kind: KindBillSummary, Title: "Bills need attention", Body: body})
}

// resetSeen replaces the last seen state with a fresh snapshot and drops
// marks of bills that left the snapshot (paid or deleted while detached).
func (w *BillWatcher) resetSeen(bills map[string]bill.Bill) {
	w.unpaid = make(map[string]bill.Bill, len(bills))
	for id, b := range bills {
		if !b.FullyPaid() {
			w.unpaid[id] = b
		}
	}
	for _, id := range w.notified.Keys() {
		if _, ok := w.unpaid[id]; !ok {
			w.notified.Unmark(id)
		}
	}
}

func (w *BillWatcher) forget(id string) {
	delete(w.unpaid, id)
	w.notified.Unmark(id)
}

func (w *BillWatcher) decode(ctx context.Context, events []changefeed.Event) map[string]bill.Bill {
	out := make(map[string]bill.Bill, len(events))
	for _, ev := range events {
		if ev.Kind == changefeed.Removed {
			continue
		}
		var b bill.Bill
		if err := ev.Decode(&b); err != nil {
			w.emitter.recorder.CheckFailed(billWatcherName)
			w.log.WithContext(ctx).Warnw("undecodable bill event", "document_id", ev.DocumentID, "error", err)
			continue
		}
		if b.ID == "" {
			b.ID = ev.DocumentID
		}
		out[b.ID] = b
	}
	return out
}

func billNotification(b *bill.Bill, now time.Time) Notification {
	days := b.DaysUntilDue(now)
	label := b.Reference
	if label == "" {
		label = b.ID
	}
	if days < 0 {
		return Notification{
			Kind:  KindBillOverdue,
			Key:   b.ID,
			Title: "Bill overdue",
			Body:  fmt.Sprintf("Bill %s is overdue by %s, %s outstanding", label, dayWord(-days), b.Outstanding().StringFixed(2)),
		}
	}
	when := "in " + dayWord(days)
	if days == 0 {
		when = "today"
	}
	return Notification{
		Kind:  KindBillDueSoon,
		Key:   b.ID,
		Title: "Bill due soon",
		Body:  fmt.Sprintf("Bill %s is due %s, %s outstanding", label, when, b.Outstanding().StringFixed(2)),
	}
}

func dayWord(n int) string {
	return plural(n, "day", "days")
}
