package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/open-data-elt/internal/domain"
)

// SinkName identifies the raw mirror in ingest reports.
const SinkName = "kafka"

// Writer mirrors raw records to a Kafka topic.
// It implements ingest.RawSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the raw topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Name implements ingest.RawSink.
func (w *Writer) Name() string { return SinkName }

// Append publishes one raw record. The payload is the message value as
// fetched; ingestion metadata travels in headers.
func (w *Writer) Append(ctx context.Context, rec domain.RawRecord) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return &domain.PersistenceError{Sink: SinkName, Err: err}
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return &domain.PersistenceError{Sink: SinkName, Err: err}
	}
	w.logger.Debug("raw record mirrored", "topic", w.writer.Topic, "source", rec.Source)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage maps a RawRecord onto a Kafka message keyed by source,
// so records from one source land on one partition in order.
func serializeToMessage(rec domain.RawRecord) (kafkago.Message, error) {
	if len(rec.Payload) == 0 {
		return kafkago.Message{}, fmt.Errorf("serialize raw record: empty payload")
	}
	headers := []kafkago.Header{
		{Key: "source", Value: []byte(rec.Source)},
		{Key: "ingested_at", Value: []byte(rec.IngestedAt.Format(time.RFC3339Nano))},
	}
	for _, k := range slices.Sorted(maps.Keys(rec.Params)) {
		headers = append(headers, kafkago.Header{Key: "param." + k, Value: []byte(rec.Params[k])})
	}
	return kafkago.Message{
		Key:     []byte(rec.Source),
		Value:   rec.Payload,
		Headers: headers,
	}, nil
}

// DecodeMessage maps a mirrored message back onto the RawRecord it was built from.
func DecodeMessage(msg kafkago.Message) (domain.RawRecord, error) {
	rec := domain.RawRecord{
		Source:  string(msg.Key),
		Payload: msg.Value,
	}
	for _, h := range msg.Headers {
		if k, ok := strings.CutPrefix(h.Key, "param."); ok {
			if rec.Params == nil {
				rec.Params = map[string]string{}
			}
			rec.Params[k] = string(h.Value)
			continue
		}
		switch h.Key {
		case "source":
			rec.Source = string(h.Value)
		case "ingested_at":
			t, err := time.Parse(time.RFC3339Nano, string(h.Value))
			if err != nil {
				return domain.RawRecord{}, fmt.Errorf("parse ingested_at header: %w", err)
			}
			rec.IngestedAt = t
		}
	}
	return rec, nil
}
