package watch

import (
	"context"
	"fmt"
	"sync"

	"batterystock/internal/core/changefeed"
	"batterystock/internal/domain/stockentry"
	"batterystock/pkg/logger"
)

const approvalWatcherName = "approval"

// ApprovalWatcher alerts once per stock entry awaiting approval.
type ApprovalWatcher struct {
	emitter emitter
	log     *logger.Logger

	notified *NotifiedSet[string]

	mu       sync.Mutex
	attached bool
}

// NewApprovalWatcher creates an approval watcher.
func NewApprovalWatcher(em emitter, log *logger.Logger) *ApprovalWatcher {
	return &ApprovalWatcher{
		emitter:  em,
		log:      log.WithComponent("approval-watch"),
		notified: NewNotifiedSet[string](),
	}
}

// Notified exposes the notified set.
func (w *ApprovalWatcher) Notified() *NotifiedSet[string] {
	return w.notified
}

// HandleBatch consumes one delivery of the stock entries subscription.
func (w *ApprovalWatcher) HandleBatch(ctx context.Context, batch changefeed.Batch) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if batch.Initial {
		pending := make(map[string]struct{})
		for _, ev := range batch.Events {
			if e, ok := w.decode(ctx, ev); ok && e.Pending() {
				pending[e.ID] = struct{}{}
			}
		}
		for _, id := range w.notified.Keys() {
			if _, ok := pending[id]; !ok {
				w.notified.Unmark(id)
			}
		}
		if !w.attached {
			w.attached = true
			w.summarize(ctx, pending)
			w.emitter.recorder.NotifiedKeys(approvalWatcherName, w.notified.Len())
			return
		}
	}

	for _, ev := range batch.Events {
		if ev.Kind == changefeed.Removed {
			w.notified.Unmark(ev.DocumentID)
			continue
		}
		e, ok := w.decode(ctx, ev)
		if !ok {
			continue
		}
		if !e.Pending() {
			w.notified.Unmark(e.ID)
			continue
		}
		if w.notified.Mark(e.ID) {
			w.emitter.emit(ctx, Notification{
				Kind:  KindApprovalPending,
				Key:   e.ID,
				Title: "Stock entry awaiting approval",
				Body:  fmt.Sprintf("%s received into warehouse %s need admin approval", plural(int(e.Quantity), "unit", "units"), e.WarehouseID),
			})
		}
	}
	w.emitter.recorder.NotifiedKeys(approvalWatcherName, w.notified.Len())
}

// Reset forgets everything; the next snapshot counts as the first attach.
func (w *ApprovalWatcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notified.Clear()
	w.attached = false
}

func (w *ApprovalWatcher) summarize(ctx context.Context, pending map[string]struct{}) {
	for id := range pending {
		w.notified.Mark(id)
	}
	if len(pending) == 0 {
		return
	}
	w.emitter.emit(ctx, Notification{
		Kind:  KindApprovalSummary,
		Title: "Stock entries awaiting approval",
		Body:  plural(len(pending), "stock entry", "stock entries") + " waiting for approval",
	})
}

func (w *ApprovalWatcher) decode(ctx context.Context, ev changefeed.Event) (*stockentry.Entry, bool) {
	var e stockentry.Entry
	if err := ev.Decode(&e); err != nil {
		w.emitter.recorder.CheckFailed(approvalWatcherName)
		w.log.WithContext(ctx).Warnw("undecodable stock entry event", "document_id", ev.DocumentID, "error", err)
		return nil, false
	}
	if e.ID == "" {
		e.ID = ev.DocumentID
	}
	return &e, true
}
