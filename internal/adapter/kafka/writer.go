package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/station-quality-service/internal/config"
	"github.com/couchcryptid/station-quality-service/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes finished reports to a Kafka topic.
// It implements pipeline.ReportSink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured report topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaReportTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes a report and writes it keyed by content hash, so reports
// for the same file land on the same partition.
func (w *Writer) Publish(ctx context.Context, report *pipeline.Report) error {
	msg, err := serializeToMessage(report)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write report %s: %w", report.ID, err)
	}
	w.logger.Debug("report published", "report_id", report.ID, "bytes", len(msg.Value))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Report into a Kafka message.
func serializeToMessage(report *pipeline.Report) (kafkago.Message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize report: %w", err)
	}
	headers := []kafkago.Header{
		{Key: "report_id", Value: []byte(report.ID)},
		{Key: "source", Value: []byte(report.Source)},
		{Key: "generated_at", Value: []byte(report.GeneratedAt.Format(time.RFC3339))},
	}
	if rec := report.Quality.Overall.Recommendation; rec != nil {
		headers = append(headers, kafkago.Header{Key: "recommendation", Value: []byte(rec.Level)})
	}
	return kafkago.Message{
		Key:     []byte(report.ContentHash),
		Value:   data,
		Headers: headers,
	}, nil
}
