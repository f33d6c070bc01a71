// Package notify holds the alert sinks the watch session delivers to.
package notify

import (
	"context"

	"batterystock/internal/domain/watch"
	"batterystock/pkg/logger"
)

var (
	_ watch.Notifier = (*LogNotifier)(nil)
	_ watch.Notifier = Multi(nil)
)

// LogNotifier writes every alert as a structured log line.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a log sink.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.Default()
	}
	return &LogNotifier{log: log.WithComponent("notify")}
}

// Notify implements watch.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, note watch.Notification) {
	n.log.WithContext(ctx).Infow(note.Title,
		"kind", string(note.Kind),
		"key", note.Key,
		"body", note.Body,
		"at", note.At,
	)
}

// Multi fans an alert out to every sink in order.
type Multi []watch.Notifier

// Notify implements watch.Notifier.
func (m Multi) Notify(ctx context.Context, note watch.Notification) {
	for _, n := range m {
		n.Notify(ctx, note)
	}
}
