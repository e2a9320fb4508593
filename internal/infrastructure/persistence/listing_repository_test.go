package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/bhavan/backend/internal/domain/listing"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestListing(t *testing.T, city string) *listing.Listing {
	t.Helper()
	l, err := listing.NewListing(listing.NewListingParams{
		Broker:       listing.Broker{Name: "Meera", Email: "meera@brokers.in", Phone: "9876500000"},
		Title:        "Sea-facing villa share",
		PropertyType: listing.PropertyVilla,
		City:         city,
		Price:        decimal.NewFromInt(2500000),
		TotalShares:  8,
		Images: []listing.Image{
			{StorageKey: "listings/a/front.jpg", ContentType: "image/jpeg", Position: 0},
			{StorageKey: "listings/a/pool.png", ContentType: "image/png", Position: 1},
		},
	})
	require.NoError(t, err)
	return l
}

func TestGormListingRepository(t *testing.T) {
	repo := NewGormListingRepository(setupTestDB(t))
	ctx := context.Background()

	goa := newTestListing(t, "Goa")
	pune := newTestListing(t, "Pune")
	require.NoError(t, repo.Save(ctx, goa))
	require.NoError(t, repo.Save(ctx, pune))

	t.Run("round trips images in order", func(t *testing.T) {
		found, err := repo.FindByID(ctx, goa.ID)
		require.NoError(t, err)
		require.Len(t, found.Images, 2)
		assert.Equal(t, "listings/a/front.jpg", found.Images[0].StorageKey)
		assert.Equal(t, listing.StatusPending, found.Status)
	})

	t.Run("review persists and filters by status", func(t *testing.T) {
		admin := uuid.New()
		require.NoError(t, goa.Approve(admin, time.Now().UTC()))
		require.NoError(t, repo.Save(ctx, goa))

		f := shared.DefaultFilter()
		f.Filters["status"] = string(listing.StatusApproved)
		items, total, err := repo.FindAll(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, goa.ID, items[0].ID)
		require.NotNil(t, items[0].ReviewedBy)
		assert.Equal(t, admin, *items[0].ReviewedBy)
		assert.Len(t, items[0].Images, 2)
	})

	t.Run("saving again does not duplicate images", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, goa))
		found, err := repo.FindByID(ctx, goa.ID)
		require.NoError(t, err)
		assert.Len(t, found.Images, 2)
	})
}
