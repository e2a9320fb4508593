package attribution

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReferralEvent(t *testing.T) {
	t.Run("creates event for a real affiliate", func(t *testing.T) {
		e, err := NewReferralEvent("partner123", EventClick, " /properties ")
		require.NoError(t, err)
		assert.Equal(t, AffiliateID("partner123"), e.AffiliateID)
		assert.Equal(t, EventClick, e.Type)
		assert.Equal(t, "/properties", e.Path)
		assert.True(t, e.Amount.IsZero())
		assert.False(t, e.OccurredAt.IsZero())
	})

	t.Run("sentinel is not attributable", func(t *testing.T) {
		_, err := NewReferralEvent(NoAffiliateID, EventClick, "/")
		assert.True(t, errors.Is(err, ErrNoAttribution))
		_, err = NewReferralEvent("", EventClick, "/")
		assert.True(t, errors.Is(err, ErrNoAttribution))
	})

	t.Run("rejects unknown type and malformed id", func(t *testing.T) {
		_, err := NewReferralEvent("partner123", EventType("view"), "/")
		require.Error(t, err)
		_, err = NewReferralEvent("bad id", EventClick, "/")
		require.Error(t, err)
	})

	t.Run("truncates long paths", func(t *testing.T) {
		e, err := NewReferralEvent("p1", EventClick, "/"+strings.Repeat("a", 600))
		require.NoError(t, err)
		assert.Len(t, e.Path, maxPathLength)
	})

	t.Run("records conversion details", func(t *testing.T) {
		e, err := NewReferralEvent("p1", EventPayment, "")
		require.NoError(t, err)
		e.WithConversion("BHV-1001", decimal.NewFromInt(4999), "INR")
		assert.Equal(t, "BHV-1001", e.ReferenceNumber)
		assert.True(t, e.Amount.Equal(decimal.NewFromInt(4999)))
	})
}

func TestSummary(t *testing.T) {
	s := NewSummary("p1")
	assert.Len(t, s.Counts, 4)
	s.Counts[EventClick] = 10
	s.Counts[EventPayment] = 2
	assert.Equal(t, int64(12), s.Total())
}
