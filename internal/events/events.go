// Package events announces published artifacts to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"basiccleaning/internal/config"
)

// ArtifactPublished is emitted once a new artifact version is registered
type ArtifactPublished struct {
	RunID       string    `json:"run_id"`
	JobType     string    `json:"job_type"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Type        string    `json:"type"`
	Digest      string    `json:"digest"`
	URI         string    `json:"uri"`
	RowCount    int       `json:"row_count"`
	PublishedAt time.Time `json:"published_at"`
}

// Notifier delivers artifact events
type Notifier interface {
	Notify(ctx context.Context, event ArtifactPublished) error
	Close() error
}

// NopNotifier drops every event
type NopNotifier struct{}

// Notify does nothing
func (NopNotifier) Notify(context.Context, ArtifactPublished) error { return nil }

// Close does nothing
func (NopNotifier) Close() error { return nil }

// messageWriter is the part of *kafka.Writer the notifier needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes events as JSON messages keyed by artifact name
type KafkaNotifier struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// New returns a Kafka notifier when brokers are configured and a no-op
// notifier otherwise.
func New(cfg config.EventsConfig, logger *slog.Logger) Notifier {
	brokers := cfg.BrokerList()
	if len(brokers) == 0 {
		return NopNotifier{}
	}
	return NewKafkaNotifier(brokers, cfg.Topic, logger)
}

// NewKafkaNotifier creates a notifier writing to topic on the given brokers
func NewKafkaNotifier(brokers []string, topic string, logger *slog.Logger) *KafkaNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: writer, topic: topic, logger: logger}
}

// Notify writes one message and waits for the brokers to acknowledge it
func (n *KafkaNotifier) Notify(ctx context.Context, event ArtifactPublished) error {
	msg, err := buildMessage(event)
	if err != nil {
		return err
	}

	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", n.topic, err)
	}

	n.logger.DebugContext(ctx, "Artifact event published",
		slog.String("topic", n.topic),
		slog.String("artifact", event.Name),
		slog.String("version", event.Version))
	return nil
}

// Close flushes and closes the writer
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func buildMessage(event ArtifactPublished) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.Name),
		Value: value,
		Headers: []kafka.Header{
			{Key: "job_type", Value: []byte(event.JobType)},
			{Key: "run_id", Value: []byte(event.RunID)},
		},
		Time: event.PublishedAt,
	}, nil
}
