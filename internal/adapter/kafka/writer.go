package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/submission-map/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes layer install events to a Kafka topic.
// It implements pipeline.EventSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the layer event topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishLayerSet writes one event keyed by dataset, so every install of a
// dataset lands on the same partition in order.
func (w *Writer) PublishLayerSet(ctx context.Context, event domain.LayerSetEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write layer event: %w", err)
	}
	w.logger.Debug("layer event published", "dataset", event.Dataset, "event_id", event.ID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a LayerSetEvent into a Kafka message.
func serializeToMessage(event domain.LayerSetEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize layer event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Dataset),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "schema", Value: []byte(event.Schema.String())},
			{Key: "installed_at", Value: []byte(event.InstalledAt.Format(time.RFC3339))},
		},
	}, nil
}
