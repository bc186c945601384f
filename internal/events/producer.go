// Package events publishes message lifecycle events to Kafka for
// downstream consumers (analytics, notification workers). Publishing is
// best-effort and optional: with no brokers configured the producer is
// a no-op.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/growthpro/messaging/internal/models"
)

// Producer wraps a Kafka writer for message events.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer. Returns nil when brokers is empty.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Producer{writer: w}
}

// MessageCreated is the event body published when a message is stored.
type MessageCreated struct {
	ID         string             `json:"id"`
	SenderID   string             `json:"sender_id"`
	Kind       models.MessageKind `json:"kind"`
	Priority   models.Priority    `json:"priority"`
	Recipients int                `json:"recipients"`
	CreatedAt  time.Time          `json:"created_at"`
}

// PublishCreated emits a message.created event keyed by sender.
func (p *Producer) PublishCreated(ctx context.Context, ev MessageCreated) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.SenderID),
		Value: body,
		Time:  time.Now(),
	})
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
