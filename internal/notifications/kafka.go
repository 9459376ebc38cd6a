package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	kgo "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kgo.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// KafkaPublisher forwards domain events to a topic consumed by the external
// notification fan-out.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher builds a publisher for brokers and topic. It returns nil
// when no broker is configured.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil
	}
	return &KafkaPublisher{w: &kgo.Writer{
		Addr:         kgo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kgo.LeastBytes{},
		RequiredAcks: kgo.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

// Name identifies the publisher as an event sink.
func (p *KafkaPublisher) Name() string { return "kafka" }

// Publish writes evt keyed by its type so consumers can partition by kind.
func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	value, err := evt.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kgo.Message{
		Key:   []byte(evt.Type),
		Value: value,
		Time:  evt.OccurredAt,
	}
	return p.w.WriteMessages(ctx, msg)
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	if p == nil {
		return nil
	}
	return p.w.Close()
}
