package referral

import (
	"context"
	"errors"
	"testing"

	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockReferralEventRepository is a mock implementation of attribution.ReferralEventRepository
type MockReferralEventRepository struct {
	mock.Mock
}

func (m *MockReferralEventRepository) Save(ctx context.Context, event *attribution.ReferralEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockReferralEventRepository) FindAll(ctx context.Context, filter shared.Filter) ([]attribution.ReferralEvent, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]attribution.ReferralEvent), args.Get(1).(int64), args.Error(2)
}

func (m *MockReferralEventRepository) Summarize(ctx context.Context, affiliate attribution.AffiliateID) (*attribution.Summary, error) {
	args := m.Called(ctx, affiliate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*attribution.Summary), args.Error(1)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func TestReferralService_RecordEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("stores and publishes", func(t *testing.T) {
		repo := new(MockReferralEventRepository)
		pub := new(MockEventPublisher)
		var saved *attribution.ReferralEvent
		repo.On("Save", ctx, mock.Anything).Run(func(args mock.Arguments) {
			saved = args.Get(1).(*attribution.ReferralEvent)
		}).Return(nil)
		pub.On("Publish", ctx, mock.MatchedBy(func(events []shared.DomainEvent) bool {
			return len(events) == 1 && events[0].EventType() == attribution.EventTypeReferralRecorded
		})).Return(nil)

		result, err := NewReferralService(repo, pub, zap.NewNop()).RecordEvent(ctx, RecordEventRequest{
			AffiliateID: "influencer_1",
			Type:        "click",
			Path:        "/properties/goa",
			Metadata:    map[string]string{"campaign": "diwali"},
		}, "")
		require.NoError(t, err)
		assert.True(t, result.Recorded)
		assert.Equal(t, saved.ID, *result.ID)
		assert.Equal(t, attribution.EventClick, saved.Type)
		assert.Equal(t, "diwali", saved.Metadata["campaign"])
		pub.AssertExpectations(t)
	})

	t.Run("uses the URL affiliate when body has none", func(t *testing.T) {
		repo := new(MockReferralEventRepository)
		repo.On("Save", ctx, mock.MatchedBy(func(e *attribution.ReferralEvent) bool {
			return e.AffiliateID == "from_url"
		})).Return(nil)

		result, err := NewReferralService(repo, nil, zap.NewNop()).RecordEvent(ctx, RecordEventRequest{Type: "signup"}, "from_url")
		require.NoError(t, err)
		assert.True(t, result.Recorded)
		repo.AssertExpectations(t)
	})

	t.Run("sentinel is acknowledged but not stored", func(t *testing.T) {
		repo := new(MockReferralEventRepository)
		result, err := NewReferralService(repo, nil, zap.NewNop()).RecordEvent(ctx, RecordEventRequest{
			AffiliateID: "NO_AFFILIATE_ID",
			Type:        "click",
		}, "")
		require.NoError(t, err)
		assert.False(t, result.Recorded)
		assert.Nil(t, result.ID)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewReferralService(new(MockReferralEventRepository), nil, zap.NewNop()).
			RecordEvent(ctx, RecordEventRequest{AffiliateID: "a1", Type: "view"}, "")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestReferralService_Conversions(t *testing.T) {
	ctx := context.Background()
	repo := new(MockReferralEventRepository)
	repo.On("Save", ctx, mock.MatchedBy(func(e *attribution.ReferralEvent) bool {
		return e.Type == attribution.EventPayment && e.ReferenceNumber == "BHV-1001" && e.Amount.Equal(decimal.NewFromInt(4999))
	})).Return(nil).Once()
	repo.On("Save", ctx, mock.MatchedBy(func(e *attribution.ReferralEvent) bool {
		return e.Type == attribution.EventContact && e.Metadata["form_type"] == "contact"
	})).Return(nil).Once()
	svc := NewReferralService(repo, nil, zap.NewNop())

	require.NoError(t, svc.RecordConversion(ctx, Conversion{
		AffiliateID: "partner", ReferenceNumber: "BHV-1001", Amount: decimal.NewFromInt(4999), Currency: "INR",
	}))
	require.NoError(t, svc.RecordContact(ctx, "partner", "/contact", map[string]string{"form_type": "contact"}))
	assert.ErrorIs(t, svc.RecordConversion(ctx, Conversion{AffiliateID: "NO_AFFILIATE_ID"}), attribution.ErrNoAttribution)
	repo.AssertExpectations(t)
}

func TestReferralService_Summary(t *testing.T) {
	ctx := context.Background()

	t.Run("returns counts for every type", func(t *testing.T) {
		repo := new(MockReferralEventRepository)
		summary := attribution.NewSummary("partner")
		summary.Counts[attribution.EventClick] = 10
		summary.Counts[attribution.EventPayment] = 2
		summary.ConvertedAmount = decimal.NewFromInt(9998)
		repo.On("Summarize", ctx, attribution.AffiliateID("partner")).Return(summary, nil)

		resp, err := NewReferralService(repo, nil, zap.NewNop()).Summary(ctx, "partner")
		require.NoError(t, err)
		assert.Equal(t, int64(12), resp.Total)
		assert.Equal(t, int64(0), resp.Counts["signup"])
		assert.True(t, resp.ConvertedAmount.Equal(decimal.NewFromInt(9998)))
	})

	t.Run("sentinel and invalid ids are rejected", func(t *testing.T) {
		svc := NewReferralService(new(MockReferralEventRepository), nil, zap.NewNop())
		_, err := svc.Summary(ctx, "NO_AFFILIATE_ID")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, err = svc.Summary(ctx, "")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("repository errors pass through", func(t *testing.T) {
		repo := new(MockReferralEventRepository)
		boom := errors.New("db down")
		repo.On("Summarize", ctx, mock.Anything).Return(nil, boom)
		_, err := NewReferralService(repo, nil, zap.NewNop()).Summary(ctx, "partner")
		assert.ErrorIs(t, err, boom)
	})
}

func TestReferralService_ListEvents(t *testing.T) {
	ctx := context.Background()
	repo := new(MockReferralEventRepository)
	event, err := attribution.NewReferralEvent("partner", attribution.EventClick, "/")
	require.NoError(t, err)
	repo.On("FindAll", ctx, mock.MatchedBy(func(f shared.Filter) bool {
		return f.OrderBy == "occurred_at" && f.Filters["type"] == "click"
	})).Return([]attribution.ReferralEvent{*event}, int64(1), nil)

	page, err := NewReferralService(repo, nil, zap.NewNop()).ListEvents(ctx, ListEventsQuery{Type: "click"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "partner", page.Items[0].AffiliateID)
}
