package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"batterystock/internal/domain/watch"
	"batterystock/pkg/logger"
)

var _ watch.Notifier = (*KafkaNotifier)(nil)

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack
}

// DefaultKafkaConfig returns a KafkaConfig with sensible defaults
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "batterystock.notifications",
		BatchSize:    100,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: 1,
	}
}

// messageWriter is the part of kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes alerts as JSON messages keyed by the alert key.
// The writer is asynchronous, so Notify never waits on the broker; delivery
// failures are logged from the writer's completion callback.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
	log    *logger.Logger
}

// NewKafkaNotifier creates a Kafka sink.
func NewKafkaNotifier(cfg KafkaConfig, log *logger.Logger) *KafkaNotifier {
	if log == nil {
		log = logger.Default()
	}
	log = log.WithComponent("notify.kafka")

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Errorw("failed to publish notifications", "count", len(messages), "error", err)
			}
		},
	}
	return newKafkaNotifier(w, cfg.Topic, log)
}

func newKafkaNotifier(w messageWriter, topic string, log *logger.Logger) *KafkaNotifier {
	return &KafkaNotifier{writer: w, topic: topic, log: log}
}

// Notify implements watch.Notifier.
func (n *KafkaNotifier) Notify(ctx context.Context, note watch.Notification) {
	msg, err := encodeMessage(note)
	if err != nil {
		n.log.Errorw("failed to encode notification", "kind", string(note.Kind), "error", err)
		return
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		n.log.Errorw("failed to enqueue notification", "topic", n.topic, "kind", string(note.Kind), "error", err)
	}
}

// Close flushes pending messages.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func encodeMessage(note watch.Notification) (kafka.Message, error) {
	data, err := json.Marshal(note)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal notification: %w", err)
	}
	key := note.Key
	if key == "" {
		key = string(note.Kind)
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(note.Kind)},
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: note.At,
	}, nil
}
