package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/weather-data-etl/internal/pipeline"
)

// Kafka publishes alerts to a topic, keyed by run ID so compacted topics
// keep the final state of each run.
type Kafka struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

func NewKafka(brokers []string, topic string, logger *slog.Logger) *Kafka {
	if logger == nil {
		logger = slog.Default()
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Kafka{writer: w, logger: logger}
}

func (k *Kafka) Notify(ctx context.Context, report *pipeline.RunReport) error {
	msg, err := serializeToMessage(eventFromReport(report))
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	k.logger.Debug("alert published",
		slog.String("run_id", report.RunID),
		slog.String("topic", k.writer.Topic))
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

// serializeToMessage marshals an alert event into a Kafka message.
func serializeToMessage(event Event) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(event.Status)},
			{Key: "finished_at", Value: []byte(event.FinishedAt.Format(time.RFC3339))},
		},
	}, nil
}
