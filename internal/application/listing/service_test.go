package listing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bhavan/backend/internal/domain/listing"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockListingRepository is a mock implementation of listing.Repository
type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) Save(ctx context.Context, l *listing.Listing) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.Listing), args.Error(1)
}

func (m *MockListingRepository) FindAll(ctx context.Context, filter shared.Filter) ([]listing.Listing, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]listing.Listing), args.Get(1).(int64), args.Error(2)
}

// MockImageStore is a mock implementation of listing.ImageStore
type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) PresignUpload(ctx context.Context, key, contentType string) (listing.PresignedURL, error) {
	args := m.Called(ctx, key, contentType)
	return args.Get(0).(listing.PresignedURL), args.Error(1)
}

func (m *MockImageStore) PresignDownload(ctx context.Context, key string) (listing.PresignedURL, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(listing.PresignedURL), args.Error(1)
}

func (m *MockImageStore) StatImage(ctx context.Context, key string) (listing.ImageObject, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(listing.ImageObject), args.Error(1)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func validSubmission() SubmitListingRequest {
	return SubmitListingRequest{
		Broker:       BrokerInput{Name: "Meera Shah", Email: "meera@brokers.in", Phone: "9820012345"},
		Title:        "Sea-facing villa in Assagao",
		PropertyType: "Villa",
		City:         "Goa",
		Price:        decimal.NewFromInt(42000000),
		TotalShares:  8,
		Images:       []ImageInput{{StorageKey: "listings/abc/front.jpg", ContentType: "image/jpeg"}},
	}
}

func pendingListing(t *testing.T) *listing.Listing {
	t.Helper()
	l, err := listing.NewListing(listing.NewListingParams{
		Broker:       listing.Broker{Name: "Meera", Email: "meera@brokers.in"},
		Title:        "Plot",
		PropertyType: listing.PropertyPlot,
		City:         "Pune",
		Price:        decimal.NewFromInt(100),
		Images:       []listing.Image{{StorageKey: "listings/k/a.png", ContentType: "image/png"}},
	})
	require.NoError(t, err)
	l.ClearDomainEvents()
	return l
}

func TestListingService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("stores pending and publishes", func(t *testing.T) {
		repo := new(MockListingRepository)
		pub := new(MockEventPublisher)
		var saved *listing.Listing
		repo.On("Save", ctx, mock.Anything).Run(func(args mock.Arguments) { saved = args.Get(1).(*listing.Listing) }).Return(nil)
		pub.On("Publish", ctx, mock.MatchedBy(func(events []shared.DomainEvent) bool {
			return len(events) == 1 && events[0].EventType() == listing.EventTypeListingSubmitted
		})).Return(nil)

		images := new(MockImageStore)
		images.On("StatImage", ctx, "listings/abc/front.jpg").
			Return(listing.ImageObject{ContentType: "Image/JPEG", Size: 4096}, nil)

		svc := NewListingService(repo, images, pub, 0, zap.NewNop())
		result, err := svc.Submit(ctx, validSubmission(), "agent_9")
		require.NoError(t, err)
		assert.Equal(t, "pending", result.Status)
		assert.Equal(t, listing.PropertyVilla, saved.PropertyType)
		assert.Equal(t, "agent_9", saved.AffiliateID)
		assert.Equal(t, "INR", saved.Currency)
		assert.Equal(t, "image/jpeg", saved.Images[0].ContentType)
		pub.AssertExpectations(t)
		images.AssertExpectations(t)
	})

	t.Run("images must match what was uploaded", func(t *testing.T) {
		tests := []struct {
			name string
			obj  listing.ImageObject
			err  error
		}{
			{"not uploaded", listing.ImageObject{}, listing.ErrImageNotFound},
			{"stored as html", listing.ImageObject{ContentType: "text/html", Size: 100}, nil},
			{"stored oversize", listing.ImageObject{ContentType: "image/jpeg", Size: listing.MaxImageBytes + 1}, nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				repo := new(MockListingRepository)
				images := new(MockImageStore)
				images.On("StatImage", ctx, "listings/abc/front.jpg").Return(tt.obj, tt.err)

				_, err := NewListingService(repo, images, nil, 0, zap.NewNop()).Submit(ctx, validSubmission(), "")
				assert.ErrorIs(t, err, shared.ErrInvalidInput)
				repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("images need configured storage", func(t *testing.T) {
		repo := new(MockListingRepository)
		_, err := NewListingService(repo, storage.DisabledStorage{}, nil, 0, zap.NewNop()).Submit(ctx, validSubmission(), "")
		assert.ErrorIs(t, err, listing.ErrStorageNotConfigured)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)

		repo.On("Save", ctx, mock.Anything).Return(nil)
		req := validSubmission()
		req.Images = nil
		_, err = NewListingService(repo, storage.DisabledStorage{}, nil, 0, zap.NewNop()).Submit(ctx, req, "")
		assert.NoError(t, err)
	})

	t.Run("foreign image keys are rejected", func(t *testing.T) {
		repo := new(MockListingRepository)
		req := validSubmission()
		req.Images = []ImageInput{{StorageKey: "other-bucket/secret.jpg"}}

		_, err := NewListingService(repo, storage.DisabledStorage{}, nil, 0, zap.NewNop()).Submit(ctx, req, "")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestListingService_InitiateImageUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("presigns a put under the listing prefix", func(t *testing.T) {
		images := new(MockImageStore)
		expires := time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC)
		images.On("PresignUpload", ctx, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "listings/") && strings.HasSuffix(key, "/living-room.png")
		}), "image/png").Return(listing.PresignedURL{
			URL: "https://s3.example/put", Method: "PUT", ExpiresAt: expires,
			Headers: map[string]string{"Content-Type": "image/png"},
		}, nil)

		svc := NewListingService(new(MockListingRepository), images, nil, 0, zap.NewNop())
		resp, err := svc.InitiateImageUpload(ctx, ImageUploadRequest{FileName: "Living Room.png", ContentType: "image/png", Size: 2048})
		require.NoError(t, err)
		assert.Equal(t, "https://s3.example/put", resp.UploadURL)
		assert.Equal(t, "PUT", resp.Method)
		assert.Equal(t, expires, resp.ExpiresAt)
		assert.Equal(t, map[string]string{"Content-Type": "image/png"}, resp.Headers)
		assert.True(t, strings.HasPrefix(resp.StorageKey, listing.ImageKeyPrefix))
	})

	t.Run("rejects disallowed types and oversize files before signing", func(t *testing.T) {
		images := new(MockImageStore)
		svc := NewListingService(new(MockListingRepository), images, nil, 0, zap.NewNop())

		_, err := svc.InitiateImageUpload(ctx, ImageUploadRequest{FileName: "a.gif", ContentType: "image/gif", Size: 10})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, err = svc.InitiateImageUpload(ctx, ImageUploadRequest{FileName: "a.jpg", ContentType: "image/jpeg", Size: listing.MaxImageBytes + 1})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		images.AssertNotCalled(t, "PresignUpload", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("storage not configured", func(t *testing.T) {
		svc := NewListingService(new(MockListingRepository), storage.DisabledStorage{}, nil, 0, zap.NewNop())
		_, err := svc.InitiateImageUpload(ctx, ImageUploadRequest{FileName: "a.jpg", ContentType: "image/jpeg", Size: 10})
		assert.ErrorIs(t, err, listing.ErrStorageNotConfigured)
	})
}

func TestListingService_PublicReads(t *testing.T) {
	ctx := context.Background()
	approved := pendingListing(t)
	require.NoError(t, approved.Approve(uuid.New(), time.Now()))
	pending := pendingListing(t)

	images := new(MockImageStore)
	images.On("PresignDownload", ctx, "listings/k/a.png").Return(listing.PresignedURL{URL: "https://s3.example/get"}, nil)
	repo := new(MockListingRepository)
	repo.On("FindAll", ctx, mock.MatchedBy(func(f shared.Filter) bool {
		return f.Filters["status"] == "approved" && f.Filters["city"] == "Pune" && f.Filters["property_type"] == "plot"
	})).Return([]listing.Listing{*approved}, int64(1), nil)
	repo.On("FindByID", ctx, approved.ID).Return(approved, nil)
	repo.On("FindByID", ctx, pending.ID).Return(pending, nil)

	svc := NewListingService(repo, images, nil, 0, zap.NewNop())

	page, err := svc.ListApproved(ctx, PublicListQuery{City: "Pune", PropertyType: "Plot"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Len(t, page.Items[0].Images, 1)
	assert.Equal(t, "https://s3.example/get", page.Items[0].Images[0].URL)

	got, err := svc.GetApproved(ctx, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, approved.ID, got.ID)

	_, err = svc.GetApproved(ctx, pending.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListingService_Review(t *testing.T) {
	ctx := context.Background()
	admin := uuid.New()

	t.Run("approve", func(t *testing.T) {
		l := pendingListing(t)
		repo := new(MockListingRepository)
		pub := new(MockEventPublisher)
		repo.On("FindByID", ctx, l.ID).Return(l, nil)
		repo.On("Save", ctx, l).Return(nil)
		pub.On("Publish", ctx, mock.Anything).Return(nil)

		resp, err := NewListingService(repo, storage.DisabledStorage{}, pub, 0, zap.NewNop()).Approve(ctx, l.ID, admin)
		require.NoError(t, err)
		assert.Equal(t, "approved", resp.Status)
		assert.Equal(t, &admin, resp.ReviewedBy)
		assert.Empty(t, resp.Images[0].URL)
	})

	t.Run("reject needs a reason", func(t *testing.T) {
		l := pendingListing(t)
		repo := new(MockListingRepository)
		repo.On("FindByID", ctx, l.ID).Return(l, nil)

		_, err := NewListingService(repo, storage.DisabledStorage{}, nil, 0, zap.NewNop()).Reject(ctx, l.ID, admin, RejectListingRequest{Reason: " "})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("reviewing twice is invalid state", func(t *testing.T) {
		l := pendingListing(t)
		require.NoError(t, l.Reject(admin, "Missing documents", time.Now()))
		repo := new(MockListingRepository)
		repo.On("FindByID", ctx, l.ID).Return(l, nil)

		_, err := NewListingService(repo, storage.DisabledStorage{}, nil, 0, zap.NewNop()).Approve(ctx, l.ID, admin)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("list rejects unknown status", func(t *testing.T) {
		_, err := NewListingService(new(MockListingRepository), storage.DisabledStorage{}, nil, 0, zap.NewNop()).
			List(ctx, AdminListQuery{Status: "archived"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("presign failures leave the url empty", func(t *testing.T) {
		l := pendingListing(t)
		images := new(MockImageStore)
		images.On("PresignDownload", ctx, mock.Anything).Return(listing.PresignedURL{}, errors.New("expired credentials"))
		repo := new(MockListingRepository)
		repo.On("FindAll", ctx, mock.Anything).Return([]listing.Listing{*l}, int64(1), nil)

		page, err := NewListingService(repo, images, nil, 0, zap.NewNop()).List(ctx, AdminListQuery{Status: "pending"})
		require.NoError(t, err)
		assert.Equal(t, "pending", page.Items[0].Status)
		assert.Empty(t, page.Items[0].Images[0].URL)
	})
}
