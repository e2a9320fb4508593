package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/event"
	"github.com/segmentio/kafka-go"
)

// Delivery is one decoded event read from Kafka
type Delivery struct {
	Topic     string
	Partition int
	Offset    int64
	Event     shared.DomainEvent
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConsumer reads forwarded events back, for operators tailing topics
type KafkaConsumer struct {
	reader     messageReader
	serializer *event.EventSerializer
}

// NewKafkaConsumer joins groupID and reads the given topics
func NewKafkaConsumer(brokers []string, groupID string, topics []string, serializer *event.EventSerializer) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka consumer requires at least one broker")
	}
	if groupID == "" {
		return nil, errors.New("kafka consumer requires group id")
	}
	if len(topics) == 0 {
		return nil, errors.New("kafka consumer requires at least one topic")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	return &KafkaConsumer{reader: reader, serializer: serializer}, nil
}

// Run decodes messages and passes them to fn until ctx is done or fn fails.
// Messages that fail to decode are passed to onError and skipped.
func (c *KafkaConsumer) Run(ctx context.Context, fn func(Delivery) error, onError func(kafka.Message, error)) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("kafka: read: %w", err)
		}
		evt, err := c.serializer.Unmarshal(msg.Value)
		if err != nil {
			if onError != nil {
				onError(msg, err)
			}
			continue
		}
		if err := fn(Delivery{Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset, Event: evt}); err != nil {
			return err
		}
	}
}

// Close leaves the consumer group
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
