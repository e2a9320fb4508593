package whatsapp

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "919876543210", NormalizePhone("98765 43210", "91"))
	assert.Equal(t, "919876543210", NormalizePhone("+91 98765-43210", "91"))
	assert.Equal(t, "919876543210", NormalizePhone("09876543210", "+91"))
	assert.Equal(t, "14155550123", NormalizePhone("0014155550123", "91"))
}

func TestLink(t *testing.T) {
	t.Run("encodes the message", func(t *testing.T) {
		link := Link("919876543210", "Hi & hello?")
		u, err := url.Parse(link)
		require.NoError(t, err)
		assert.Equal(t, "wa.me", u.Host)
		assert.Equal(t, "/919876543210", u.Path)
		assert.Equal(t, "Hi & hello?", u.Query().Get("text"))
	})

	t.Run("omits empty text", func(t *testing.T) {
		assert.Equal(t, "https://wa.me/919876543210", Link("+91 98765 43210", "  "))
	})

	t.Run("linker normalizes the business number", func(t *testing.T) {
		l := NewLinker("98765 43210", "")
		assert.Equal(t, "https://wa.me/919876543210?text=Hello", l.Link("Hello"))
	})
}

func TestTemplates(t *testing.T) {
	assert.Contains(t, PropertyEnquiry("Sea-view villa", "Goa"), `"Sea-view villa" in Goa`)
	assert.Contains(t, ServiceEnquiry("Sale Deed Review", "BHV-1001"), "(reference BHV-1001)")
	assert.NotContains(t, ServiceEnquiry("Sale Deed Review", ""), "reference")
	assert.Equal(t, GeneralEnquiry(), WithReferral(GeneralEnquiry(), ""))
	assert.Contains(t, WithReferral(GeneralEnquiry(), "partner123"), "Ref: partner123")
	assert.Contains(t, ListingSubmitted("Kiran"), "this is Kiran")
}
