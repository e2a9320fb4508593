package shared

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, events ...DomainEvent) error {
	return m.Called(ctx, events).Error(0)
}

func recordedAggregate(types ...string) *BaseAggregateRoot {
	agg := NewBaseAggregateRoot()
	for _, t := range types {
		ev := NewBaseDomainEvent(t, "ServiceRequest", agg.ID)
		agg.RecordEvent(&ev)
	}
	return &agg
}

func TestPublishAndClear(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes pending events in order", func(t *testing.T) {
		agg := recordedAggregate("ServiceRequestCreated", "PaymentCompleted")
		pub := new(mockPublisher)
		pub.On("Publish", ctx, mock.MatchedBy(func(events []DomainEvent) bool {
			return len(events) == 2 &&
				events[0].EventType() == "ServiceRequestCreated" &&
				events[1].EventType() == "PaymentCompleted"
		})).Return(nil).Once()

		require.NoError(t, PublishAndClear(ctx, pub, agg))
		pub.AssertExpectations(t)
		assert.Empty(t, agg.PendingEvents())
	})

	t.Run("clears events when publishing fails", func(t *testing.T) {
		agg := recordedAggregate("PaymentFailed")
		pub := new(mockPublisher)
		pub.On("Publish", ctx, mock.Anything).Return(errors.New("bus stopped")).Once()

		assert.EqualError(t, PublishAndClear(ctx, pub, agg), "bus stopped")
		assert.Empty(t, agg.PendingEvents())
	})

	t.Run("nothing pending skips the publisher", func(t *testing.T) {
		pub := new(mockPublisher)
		require.NoError(t, PublishAndClear(ctx, pub, recordedAggregate()))
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("nil publisher only clears", func(t *testing.T) {
		agg := recordedAggregate("LeadSubmitted")
		require.NoError(t, PublishAndClear(ctx, nil, agg))
		assert.Empty(t, agg.PendingEvents())
	})
}
