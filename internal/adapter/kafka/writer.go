package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/traffic-flood-prep/internal/config"
	"github.com/couchcryptid/traffic-flood-prep/internal/domain"
)

// messageWriter is the subset of kafkago.Writer the sink needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes hourly readings to a Kafka topic in fixed-size batches.
// It implements pipeline.HourlySink.
type Writer struct {
	writer    messageWriter
	logger    *slog.Logger
	batchSize int
	attempts  uint
	delay     time.Duration
}

// NewWriter creates a Kafka producer for the configured hourly topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newWriter(w, logger, cfg.BatchSize)
}

func newWriter(w messageWriter, logger *slog.Logger, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Writer{writer: w, logger: logger, batchSize: batchSize, attempts: 5, delay: time.Second}
}

// PublishHourly serializes and publishes readings of one city. Each batch is
// retried with jittered backoff; a batch that still fails aborts the call.
func (w *Writer) PublishHourly(ctx context.Context, readings []domain.HourlyReading) error {
	for start := 0; start < len(readings); start += w.batchSize {
		end := min(start+w.batchSize, len(readings))

		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(readings[i])
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}

		err := retry.Do(
			func() error { return w.writer.WriteMessages(ctx, msgs...) },
			retry.Context(ctx),
			retry.Attempts(w.attempts),
			retry.Delay(w.delay),
			retry.MaxDelay(30*time.Second),
			retry.DelayType(retry.FullJitterBackoffDelay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				w.logger.Warn("retrying hourly batch", "attempt", n+1, "batch_size", len(msgs), "error", err)
			}),
		)
		if err != nil {
			return fmt.Errorf("publish hourly batch at %d: %w", start, err)
		}
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an HourlyReading into a Kafka message keyed by
// city and detector so a detector's hours stay on one partition.
func serializeToMessage(r domain.HourlyReading) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize hourly reading: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.City + "/" + r.DetID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "city", Value: []byte(r.City)},
			{Key: "local_hour", Value: []byte(r.Hour.String())},
		},
	}, nil
}
