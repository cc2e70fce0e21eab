// Package kafka provides the producer and consumer used to announce and react
// to finished index builds, backed by segmentio/kafka-go. Event payloads are
// JSON.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/config"
)

// Event is one message to publish. Key selects the partition and Value is
// JSON-encoded.
type Event struct {
	Key   string
	Value any
}

// Producer publishes JSON-encoded events to a single topic.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Producer{
		writer: w,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish writes event synchronously.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	value, err := Encode(event.Value)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Time:  time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish message", "key", event.Key, "error", err)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("message published", "key", event.Key, "value_size", len(value))
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Encode marshals an event value the way Publish puts it on the wire.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling event value: %w", err)
	}
	return data, nil
}
