package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bhavan/backend/internal/domain/lead"
	"github.com/bhavan/backend/internal/infrastructure/config"
	"github.com/bhavan/backend/internal/infrastructure/event"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeReader struct {
	messages []kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) Close() error { return nil }

func newSerializer() *event.EventSerializer {
	s := event.NewEventSerializer()
	event.RegisterAllEvents(s)
	return s
}

func leadEvent() *lead.LeadSubmittedEvent {
	l := &lead.Lead{FormType: lead.FormContact, AffiliateID: "AFF_1"}
	l.ID = uuid.New()
	return lead.NewLeadSubmittedEvent(l)
}

func TestTopicName(t *testing.T) {
	assert.Equal(t, "bhavan.lead_submitted", TopicName("bhavan", "LeadSubmitted"))
	assert.Equal(t, "prod.service_request_status_changed", TopicName("prod", "ServiceRequestStatusChanged"))
	assert.Equal(t, "bhavan.payment_completed", TopicName("", "PaymentCompleted"))
}

func TestNewKafkaForwarder_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaForwarder(config.KafkaConfig{}, newSerializer(), zap.NewNop())
	assert.Error(t, err)
}

func TestKafkaForwarder_Handle(t *testing.T) {
	t.Run("writes keyed message to prefixed topic", func(t *testing.T) {
		w := &fakeWriter{}
		f := newKafkaForwarder(w, newSerializer(), config.KafkaConfig{TopicPrefix: "staging."}, zap.NewNop())
		evt := leadEvent()

		require.NoError(t, f.Handle(context.Background(), evt))
		require.Len(t, w.messages, 1)
		msg := w.messages[0]
		assert.Equal(t, "staging.lead_submitted", msg.Topic)
		assert.Equal(t, evt.AggregateID().String(), string(msg.Key))
		assert.Equal(t, "LeadSubmitted", string(msg.Headers[0].Value))
		assert.Nil(t, f.EventTypes())

		decoded, err := newSerializer().Unmarshal(msg.Value)
		require.NoError(t, err)
		assert.Equal(t, evt.EventID(), decoded.EventID())
	})

	t.Run("write failure is returned", func(t *testing.T) {
		w := &fakeWriter{err: errors.New("broker unavailable")}
		f := newKafkaForwarder(w, newSerializer(), config.KafkaConfig{}, zap.NewNop())

		err := f.Handle(context.Background(), leadEvent())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bhavan.lead_submitted")
	})

	t.Run("canceled request context still writes", func(t *testing.T) {
		w := &fakeWriter{}
		f := newKafkaForwarder(w, newSerializer(), config.KafkaConfig{}, zap.NewNop())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.NoError(t, f.Handle(ctx, leadEvent()))
		require.NoError(t, f.Close())
		assert.True(t, w.closed)
	})
}

func TestKafkaConsumer_Run(t *testing.T) {
	serializer := newSerializer()
	evt := leadEvent()
	payload, err := serializer.Marshal(evt)
	require.NoError(t, err)

	reader := &fakeReader{messages: []kafka.Message{
		{Topic: "bhavan.unknown", Value: []byte(`{"type":"Nope","payload":{}}`)},
		{Topic: "bhavan.lead_submitted", Offset: 7, Value: payload},
	}}
	c := &KafkaConsumer{reader: reader, serializer: serializer}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var got []Delivery
	var skipped int
	err = c.Run(ctx, func(d Delivery) error {
		got = append(got, d)
		return nil
	}, func(kafka.Message, error) { skipped++ })

	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].Offset)
	assert.Equal(t, evt.EventID(), got[0].Event.EventID())
}

func TestKafkaConsumer_StopsOnHandlerError(t *testing.T) {
	serializer := newSerializer()
	payload, err := serializer.Marshal(leadEvent())
	require.NoError(t, err)
	c := &KafkaConsumer{reader: &fakeReader{messages: []kafka.Message{{Value: payload}}}, serializer: serializer}

	err = c.Run(context.Background(), func(Delivery) error { return errors.New("stop") }, nil)
	assert.EqualError(t, err, "stop")
}
