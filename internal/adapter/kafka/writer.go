package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/climate-ecs-etl/internal/config"
	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces sensitivity estimates to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic. Messages
// are keyed by estimate ID, so hashing keeps every re-estimate of a model on
// one partition in order.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes estimates to the sink topic in a single
// WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, estimates []domain.Estimate) error {
	if len(estimates) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(estimates))
	for i := range estimates {
		msg, err := serializeToMessage(estimates[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write estimates: %w", err)
	}
	w.logger.Debug("wrote estimates", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Estimate into a Kafka message.
func serializeToMessage(est domain.Estimate) (kafkago.Message, error) {
	data, err := json.Marshal(est)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize estimate: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(est.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source_id", Value: []byte(est.SourceID)},
			{Key: "experiment_id", Value: []byte(est.ExperimentID)},
			{Key: "processed_at", Value: []byte(est.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
