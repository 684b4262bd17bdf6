package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"pricebridge/internal/logger"
)

// WebhookEvent is published after a webhook passes signature verification,
// so the worker can invalidate stale adapter state out of band.
type WebhookEvent struct {
	ID         string    `json:"id"`
	StoreID    string    `json:"store_id"`
	Platform   string    `json:"platform"`
	Topic      string    `json:"topic"`
	ReceivedAt time.Time `json:"received_at"`
}

type Publisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

func NewPublisher(brokers, topic string, log *logger.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Publisher{
		writer: writer,
		logger: log,
	}
}

func (p *Publisher) Publish(ctx context.Context, event WebhookEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.StoreID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Published %s event for store %s", event.Topic, event.StoreID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
