// Package watch turns committed store changes into alerts.
//
// Three watchers run inside a Session: the stock watcher (low stock per
// variant and warehouse), the bill watcher (bills due within the window or
// overdue) and the approval watcher (stock entries awaiting approval).
// Each keeps a session-scoped set of keys already alerted so one episode
// produces one notification.
package watch

import (
	"context"
	"strconv"
	"time"

	"batterystock/internal/core/changefeed"
)

// Kind classifies a notification.
type Kind string

const (
	KindLowStock        Kind = "low_stock"
	KindLowStockSummary Kind = "low_stock_summary"
	KindBillDueSoon     Kind = "bill_due_soon"
	KindBillOverdue     Kind = "bill_overdue"
	KindBillSummary     Kind = "bill_summary"
	KindApprovalPending Kind = "approval_pending"
	KindApprovalSummary Kind = "approval_summary"
)

// Notification is one outbound alert.
type Notification struct {
	Kind  Kind      `json:"kind"`
	Key   string    `json:"key,omitempty"`
	Title string    `json:"title"`
	Body  string    `json:"body"`
	At    time.Time `json:"at"`
}

// Notifier delivers alerts. Delivery is best effort: implementations must
// not block the caller for long and report failures only to their logs.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Recorder observes watcher activity for metrics.
type Recorder interface {
	NotificationEmitted(kind string)
	CheckFailed(watcher string)
	EventsReceived(coll changefeed.Collection, initial bool, n int)
	NotifiedKeys(watcher string, n int)
}

type nopRecorder struct{}

func (nopRecorder) NotificationEmitted(string) {}
func (nopRecorder) CheckFailed(string) {}
func (nopRecorder) EventsReceived(changefeed.Collection, bool, int) {}
func (nopRecorder) NotifiedKeys(string, int) {}

// emitter stamps and counts notifications.
type emitter struct {
	notifier Notifier
	recorder Recorder
	now      func() time.Time
}

func (e emitter) emit(ctx context.Context, n Notification) {
	n.At = e.now().UTC()
	e.recorder.NotificationEmitted(string(n.Kind))
	e.notifier.Notify(ctx, n)
}

// plural renders "1 bill" / "3 bills".
func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
