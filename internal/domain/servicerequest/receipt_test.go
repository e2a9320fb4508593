package servicerequest

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedRequest(t *testing.T) *ServiceRequest {
	t.Helper()
	r := newTestRequest(t)
	created := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	r.CreatedAt = created
	r.UpdatedAt = created
	tier := uuid.MustParse("6f1c1a38-2f75-4a8e-9f76-3f1f6f0a3a11")
	r.TierID = &tier
	r.TierName = "Premium"
	r.Customer.Requirements = "Review sale deed\nfor a Goa villa share"
	require.NoError(t, r.MarkPaymentCompleted("pi_3Nabc", created.Add(15*time.Minute)))
	return r
}

func TestGenerateReceipt(t *testing.T) {
	r := fixedRequest(t)

	t.Run("is deterministic", func(t *testing.T) {
		first := GenerateReceipt(r)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, GenerateReceipt(r))
		}
	})

	t.Run("contains labeled sections in order", func(t *testing.T) {
		text := GenerateReceipt(r)
		last := -1
		for _, heading := range []string{"CUSTOMER INFORMATION", "SERVICE DETAILS", "PAYMENT INFORMATION", "CURRENT STATUS"} {
			idx := strings.Index(text, heading)
			require.GreaterOrEqual(t, idx, 0, heading)
			assert.Greater(t, idx, last, heading)
			last = idx
		}
	})

	t.Run("renders record fields", func(t *testing.T) {
		text := GenerateReceipt(r)
		assert.Contains(t, text, "Reference Number:  BHV-1001")
		assert.Contains(t, text, "Request Date:      14 Feb 2026, 09:30 UTC")
		assert.Contains(t, text, "Name:              Asha Rao")
		assert.Contains(t, text, "Package:           Premium")
		assert.Contains(t, text, "Requirements:      Review sale deed for a Goa villa share")
		assert.Contains(t, text, "Amount:            INR 4,999.00")
		assert.Contains(t, text, "Payment Status:    Completed")
		assert.Contains(t, text, "Transaction ID:    pi_3Nabc")
		assert.Contains(t, text, "Paid On:           14 Feb 2026, 09:45 UTC")
		assert.Contains(t, text, "Status:            Paid")
	})

	t.Run("pending payment shows placeholders", func(t *testing.T) {
		p := newTestRequest(t)
		text := GenerateReceipt(p)
		assert.Contains(t, text, "Transaction ID:    N/A")
		assert.Contains(t, text, "Paid On:           N/A")
		assert.Contains(t, text, "Payment Status:    Pending")
	})
}

func TestReceiptFileName(t *testing.T) {
	assert.Equal(t, "bhavan-receipt-BHV-1001.txt", ReceiptFileName("BHV-1001"))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "INR 4,999.00", FormatMoney(decimal.NewFromInt(4999), "INR"))
	assert.Equal(t, "INR 1,234,567.50", FormatMoney(decimal.RequireFromString("1234567.5"), "INR"))
	assert.Equal(t, "USD 0.99", FormatMoney(decimal.RequireFromString("0.99"), "USD"))
	assert.Equal(t, "INR -100.00", FormatMoney(decimal.NewFromInt(-100), "INR"))
}
