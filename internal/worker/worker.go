package worker

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"pricebridge/internal/config"
	"pricebridge/internal/events"
	"pricebridge/internal/integrations"
	"pricebridge/internal/logger"
)

// Worker consumes verified webhook events and invalidates the matching
// adapter instance so the next resolve rebuilds it with a cold cache.
type Worker struct {
	config   *config.Config
	logger   *logger.Logger
	reader   *kafka.Reader
	registry *integrations.Registry
}

func New(cfg *config.Config, log *logger.Logger, registry *integrations.Registry) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{cfg.KafkaBrokers},
		GroupID:        "pricebridge-worker",
		Topic:          cfg.WebhookTopic,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})

	return &Worker{
		config:   cfg,
		logger:   log,
		reader:   reader,
		registry: registry,
	}
}

func (w *Worker) Start() {
	w.logger.Info("Worker started, listening for webhook events...")

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		message, err := w.reader.ReadMessage(ctx)
		cancel()

		if err != nil {
			w.logger.Error("Failed to read message: %v", err)
			continue
		}

		var event events.WebhookEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			w.logger.Error("Failed to parse event: %v", err)
			continue
		}

		w.process(event)
	}
}

func (w *Worker) process(event events.WebhookEvent) {
	if !invalidatesAdapter(event.Topic) {
		w.logger.Debug("Ignoring %s event for store %s", event.Topic, event.StoreID)
		return
	}

	n := w.registry.Invalidate(event.StoreID, integrations.Platform(event.Platform))
	w.logger.Info("Invalidated %d adapter(s) for store %s after %s", n, event.StoreID, event.Topic)
}

// invalidatesAdapter reports whether a webhook topic concerns product or
// customer data, the only reads the adapters cache.
func invalidatesAdapter(topic string) bool {
	return strings.Contains(topic, "product") || strings.Contains(topic, "customer")
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.reader.Close()
}
