package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/groundwater-etl/internal/config"
	"github.com/couchcryptid/groundwater-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces recorded-test events to the sink topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic. Events
// are keyed by site code so one site's history stays on one partition.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishBatch serializes and publishes recorded tests in a single
// WriteMessages call.
func (w *Writer) PublishBatch(ctx context.Context, events []domain.RecordedTest) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d recorded tests: %w", len(msgs), err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a RecordedTest into a Kafka message.
func serializeToMessage(event domain.RecordedTest) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize recorded test: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.SiteCode),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "site_code", Value: []byte(event.SiteCode)},
			{Key: "risk_level", Value: []byte(event.RiskLevel)},
			{Key: "recorded_at", Value: []byte(event.Test.RecordedAt.Format(time.RFC3339))},
		},
	}, nil
}
