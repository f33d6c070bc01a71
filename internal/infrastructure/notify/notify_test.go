package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"batterystock/internal/domain/watch"
	"batterystock/pkg/logger"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func sampleNote() watch.Notification {
	return watch.Notification{
		Kind:  watch.KindLowStock,
		Key:   "v1|wh1",
		Title: "Low stock",
		Body:  "AGM 12V 100Ah in Main: 2 left (minimum 5)",
		At:    time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
	}
}

func TestKafkaNotifier_PublishesJSON(t *testing.T) {
	w := &fakeWriter{}
	n := newKafkaNotifier(w, "alerts", logger.Nop())

	n.Notify(context.Background(), sampleNote())

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "v1|wh1", string(msg.Key))

	var got watch.Notification
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, sampleNote(), got)
	assert.Equal(t, "low_stock", string(msg.Headers[0].Value))
}

func TestKafkaNotifier_SummaryKeyedByKind(t *testing.T) {
	msg, err := encodeMessage(watch.Notification{Kind: watch.KindBillSummary, Title: "Bills"})
	require.NoError(t, err)
	assert.Equal(t, "bill_summary", string(msg.Key))
}

func TestKafkaNotifier_WriteErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := newKafkaNotifier(&fakeWriter{err: errors.New("broker down")}, "alerts", logger.FromZap(zap.New(core)))

	n.Notify(context.Background(), sampleNote())

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "failed to enqueue notification", logs.All()[0].Message)
}

func TestLogNotifierAndMulti(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var seen []watch.Kind
	m := Multi{
		NewLogNotifier(logger.FromZap(zap.New(core))),
		watch.NotifierFunc(func(_ context.Context, n watch.Notification) { seen = append(seen, n.Kind) }),
	}

	m.Notify(context.Background(), sampleNote())

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Low stock", entry.Message)
	assert.Equal(t, "v1|wh1", entry.ContextMap()["key"])
	assert.Equal(t, []watch.Kind{watch.KindLowStock}, seen)
}
