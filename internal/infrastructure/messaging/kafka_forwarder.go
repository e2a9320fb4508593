// Package messaging forwards domain events to Kafka and reads them back.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/config"
	"github.com/bhavan/backend/internal/infrastructure/event"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DefaultTopicPrefix is used when no prefix is configured
const DefaultTopicPrefix = "bhavan"

// messageWriter is the subset of *kafka.Writer the forwarder needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarder is a wildcard event handler that copies every domain event
// to the topic <prefix>.<event_type>, keyed by aggregate id.
type KafkaForwarder struct {
	writer       messageWriter
	serializer   *event.EventSerializer
	prefix       string
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewKafkaForwarder creates a forwarder writing to the configured brokers
func NewKafkaForwarder(cfg config.KafkaConfig, serializer *event.EventSerializer, logger *zap.Logger) (*KafkaForwarder, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka forwarder requires at least one broker")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           cfg.WriteTimeout,
	}
	return newKafkaForwarder(writer, serializer, cfg, logger), nil
}

func newKafkaForwarder(w messageWriter, serializer *event.EventSerializer, cfg config.KafkaConfig, logger *zap.Logger) *KafkaForwarder {
	prefix := strings.Trim(cfg.TopicPrefix, ".")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaForwarder{
		writer:       w,
		serializer:   serializer,
		prefix:       prefix,
		writeTimeout: timeout,
		logger:       logger.Named("kafka"),
	}
}

// EventTypes returns nil so the forwarder receives every event
func (f *KafkaForwarder) EventTypes() []string {
	return nil
}

// Handle encodes and writes one event. Write errors are returned so the bus logs them.
func (f *KafkaForwarder) Handle(ctx context.Context, evt shared.DomainEvent) error {
	payload, err := f.serializer.Marshal(evt)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Topic: f.Topic(evt.EventType()),
		Key:   []byte(evt.AggregateID().String()),
		Value: payload,
		Time:  evt.OccurredAt().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.EventType())},
			{Key: "event_id", Value: []byte(evt.EventID().String())},
		},
	}
	if err := f.writer.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", msg.Topic, err)
	}
	f.logger.Debug("event forwarded",
		zap.String("topic", msg.Topic),
		zap.String("event_id", evt.EventID().String()),
	)
	return nil
}

// Topic returns the topic name for an event type
func (f *KafkaForwarder) Topic(eventType string) string {
	return TopicName(f.prefix, eventType)
}

// Close flushes and closes the writer
func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}

// TopicName builds <prefix>.<snake_case event type>
func TopicName(prefix, eventType string) string {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "." + snakeCase(eventType)
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ shared.EventHandler = (*KafkaForwarder)(nil)
