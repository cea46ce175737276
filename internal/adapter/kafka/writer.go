package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/snow-drought-index/internal/config"
	"github.com/couchcryptid/snow-drought-index/internal/domain"
)

// Writer produces one message per station result to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSinkTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes station results in a single
// WriteMessages call. Results are keyed by station id so every season of
// a station lands on the same partition.
func (w *Writer) LoadBatch(ctx context.Context, results []domain.StationResult) error {
	if len(results) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(results))
	for i := range results {
		msg, err := serializeToMessage(results[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	w.logger.Debug("published station results", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a StationResult into a Kafka message.
func serializeToMessage(result domain.StationResult) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize station result: %w", err)
	}
	droughts := 0
	for _, s := range result.Seasons {
		if s.Drought {
			droughts++
		}
	}
	return kafkago.Message{
		Key:   []byte(result.Station.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "station_id", Value: []byte(result.Station.ID)},
			{Key: "processed_at", Value: []byte(result.ProcessedAt.Format(time.RFC3339))},
			{Key: "drought_seasons", Value: []byte(strconv.Itoa(droughts))},
		},
	}, nil
}
