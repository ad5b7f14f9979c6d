package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// RowProducer publishes raw upload rows to the source topic. Rows are keyed
// by site code so the consumer appends a site's tests in upload order.
type RowProducer struct {
	writer *kafkago.Writer
}

// NewRowProducer creates a producer for topic.
func NewRowProducer(brokers []string, topic string) *RowProducer {
	return &RowProducer{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireAll,
		},
	}
}

// PublishRows writes rows as flat JSON objects in one batch.
func (p *RowProducer) PublishRows(ctx context.Context, rows []domain.RawRow) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(rows))
	for i, row := range rows {
		msg, err := rowMessage(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d rows: %w", len(msgs), err)
	}
	return nil
}

// Close flushes and closes the producer.
func (p *RowProducer) Close() error {
	return p.writer.Close()
}

func rowMessage(row domain.RawRow) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize raw row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(row[domain.ColSiteCode]),
		Value: data,
	}, nil
}
