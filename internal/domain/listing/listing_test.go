package listing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() NewListingParams {
	return NewListingParams{
		Broker:       Broker{Name: "Kiran Estates", Email: "Kiran@Estates.in", Phone: "9876543210"},
		Title:        "Sea-view villa in Assagao",
		PropertyType: PropertyVilla,
		City:         "Goa",
		Price:        decimal.NewFromInt(25000000),
		TotalShares:  8,
		Images: []Image{
			{StorageKey: "listings/a/front.jpg", ContentType: "image/jpeg"},
			{StorageKey: "listings/a/front.jpg", ContentType: "image/jpeg"},
			{StorageKey: "listings/a/pool.png", ContentType: "image/png"},
		},
	}
}

func TestNewListing(t *testing.T) {
	t.Run("creates a pending listing", func(t *testing.T) {
		l, err := NewListing(validParams())
		require.NoError(t, err)
		assert.Equal(t, StatusPending, l.Status)
		assert.Equal(t, "kiran@estates.in", l.Broker.Email)
		assert.Equal(t, "INR", l.Currency)
		require.Len(t, l.Images, 2)
		assert.Equal(t, 1, l.Images[1].Position)
		assert.False(t, l.IsPublic())
		require.Len(t, l.PendingEvents(), 1)
		assert.Equal(t, EventTypeListingSubmitted, l.PendingEvents()[0].EventType())
	})

	t.Run("rejects foreign image keys", func(t *testing.T) {
		p := validParams()
		p.Images = []Image{{StorageKey: "other/x.jpg"}}
		_, err := NewListing(p)
		assert.Error(t, err)
		p.Images = []Image{{StorageKey: "listings/../secrets"}}
		_, err = NewListing(p)
		assert.Error(t, err)
	})

	t.Run("validates required fields", func(t *testing.T) {
		for name, mutate := range map[string]func(*NewListingParams){
			"broker": func(p *NewListingParams) { p.Broker.Name = "" },
			"email":  func(p *NewListingParams) { p.Broker.Email = "x" },
			"title":  func(p *NewListingParams) { p.Title = " " },
			"type":   func(p *NewListingParams) { p.PropertyType = "castle" },
			"city":   func(p *NewListingParams) { p.City = "" },
			"price":  func(p *NewListingParams) { p.Price = decimal.Zero },
			"shares": func(p *NewListingParams) { p.TotalShares = -1 },
		} {
			t.Run(name, func(t *testing.T) {
				p := validParams()
				mutate(&p)
				_, err := NewListing(p)
				assert.Error(t, err)
			})
		}
	})
}

func TestReview(t *testing.T) {
	admin := uuid.New()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("approve", func(t *testing.T) {
		l, err := NewListing(validParams())
		require.NoError(t, err)
		require.NoError(t, l.Approve(admin, at))
		assert.True(t, l.IsPublic())
		assert.Equal(t, admin, *l.ReviewedBy)
		assert.Error(t, l.Approve(admin, at))
		assert.Error(t, l.Reject(admin, "late", at))
	})

	t.Run("reject requires a reason", func(t *testing.T) {
		l, err := NewListing(validParams())
		require.NoError(t, err)
		assert.Error(t, l.Reject(admin, " ", at))
		require.NoError(t, l.Reject(admin, "Missing title deed", at))
		assert.Equal(t, StatusRejected, l.Status)
		assert.Equal(t, "Missing title deed", l.RejectionReason)
		events := l.PendingEvents()
		assert.Equal(t, EventTypeListingRejected, events[len(events)-1].EventType())
	})
}
