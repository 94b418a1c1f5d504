package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/piezo-meteo-etl/internal/config"
	"github.com/couchcryptid/piezo-meteo-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes one message per association to a Kafka topic.
// It implements pipeline.Loader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Load serializes every association of the run and publishes them in a
// single WriteMessages call. Keys are sensor IDs, so a compacted topic keeps
// the latest station for each sensor.
func (w *Writer) Load(ctx context.Context, run domain.Run) error {
	if len(run.Associations) == 0 {
		return nil
	}
	consistent := make(map[string]bool, len(run.Consistent))
	for _, a := range run.Consistent {
		consistent[a.Sensor.ID] = true
	}

	msgs := make([]kafkago.Message, len(run.Associations))
	for i, a := range run.Associations {
		msg, err := serializeToMessage(run, a, consistent[a.Sensor.ID])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d associations: %w", len(msgs), err)
	}
	w.logger.Debug("associations published", "run_id", run.ID, "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an association into a Kafka message carrying
// the run metadata as headers.
func serializeToMessage(run domain.Run, a domain.Association, consistent bool) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize association %s: %w", a.Sensor.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(a.Sensor.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(run.ID)},
			{Key: "generated_at", Value: []byte(run.GeneratedAt.Format(time.RFC3339))},
			{Key: "consistent", Value: []byte(strconv.FormatBool(consistent))},
		},
	}, nil
}
