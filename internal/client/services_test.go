package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/bhavan/backend/internal/application/purchase"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func purchaseRequest() purchase.InitiatePurchaseRequest {
	return purchase.InitiatePurchaseRequest{
		ServiceID: "rera-verification",
		Customer: purchase.CustomerInput{
			FullName: "Asha Rao",
			Email:    "asha@example.com",
			Phone:    "+919876543210",
		},
		AffiliateCode:  "partner123",
		IdempotencyKey: "key-1",
	}
}

func TestServicesClient_InitiatePurchase(t *testing.T) {
	requestID := uuid.New()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/api/services/purchase", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "partner123", body["affiliateCode"])
		assert.NotContains(t, body, "IdempotencyKey")

		writeJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"requestId":       requestID,
			"referenceNumber": "BHV-1001",
			"paymentIntent":   map[string]any{"clientSecret": "pi_secret", "amount": "4999", "currency": "INR", "gateway": "stripe"},
		})
	}))
	defer srv.Close()

	res, err := NewServicesClient(Config{BaseURL: srv.URL}).InitiatePurchase(context.Background(), purchaseRequest())
	require.NoError(t, err)
	assert.Equal(t, requestID, res.RequestID)
	assert.Equal(t, "BHV-1001", res.ReferenceNumber)
	assert.True(t, decimal.NewFromInt(4999).Equal(res.PaymentIntent.Amount))
	assert.Equal(t, "stripe", res.PaymentIntent.Gateway)
}

func TestServicesClient_InitiatePurchaseGatewayFailureIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success":         false,
			"error":           map[string]string{"code": "ERR_PAYMENT_FAILED", "message": "Your card was declined."},
			"requestId":       uuid.New(),
			"referenceNumber": "BHV-1002",
		})
	}))
	defer srv.Close()

	_, err := NewServicesClient(Config{BaseURL: srv.URL}).InitiatePurchase(context.Background(), purchaseRequest())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Your card was declined.", apiErr.Message)
	assert.Equal(t, "BHV-1002", apiErr.ReferenceNumber)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestServicesClient_RetryPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body purchase.RetryPaymentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "BHV-1001", body.ReferenceNumber)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"referenceNumber": "BHV-1001",
			"paymentUrl":      "https://checkout.stripe.com/c/pay/cs_test_123",
		})
	}))
	defer srv.Close()

	res, err := NewServicesClient(Config{BaseURL: srv.URL}).RetryPayment(context.Background(), " BHV-1001 ")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", RedirectTarget(res))
	assert.Equal(t, "", RedirectTarget(nil))
}

func TestServicesClient_FetchByReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/services/requests/BHV-1001":
			writeJSON(w, http.StatusOK, map[string]any{
				"success":           true,
				"request":           map[string]any{"referenceNumber": "BHV-1001", "status": "pending", "payment": map[string]any{"status": "completed"}},
				"timeline":          []map[string]any{{"status": "pending", "label": "Request received"}},
				"estimatedNextStep": "Our team will contact you within 24 hours.",
			})
		case "/api/services/requests/BHV-9999":
			writeJSON(w, http.StatusNotFound, map[string]any{
				"success": false,
				"error":   map[string]string{"code": "ERR_REFERENCE_NOT_FOUND", "message": "Service request not found. Please check your reference number."},
			})
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()
	c := NewServicesClient(Config{BaseURL: srv.URL})

	view, err := c.FetchByReference(context.Background(), "BHV-1001")
	require.NoError(t, err)
	assert.Equal(t, "completed", view.Request.Payment.Status)
	assert.Len(t, view.Timeline, 1)

	_, err = c.FetchByReference(context.Background(), "BHV-9999")
	assert.ErrorIs(t, err, ErrReferenceNotFound)

	_, err = c.FetchByReference(context.Background(), "BHV-5000")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.NotErrorIs(t, err, ErrReferenceNotFound)
}

func TestServicesClient_Confirmation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BHV-1001", r.URL.Query().Get("ref"))
		assert.Equal(t, "failed", r.URL.Query().Get("status"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"request":        map[string]any{"referenceNumber": "BHV-1001"},
			"displayState":   "failed",
			"retryAvailable": true,
		})
	}))
	defer srv.Close()

	view, err := NewServicesClient(Config{BaseURL: srv.URL}).Confirmation(context.Background(), "BHV-1001", "failed")
	require.NoError(t, err)
	assert.Equal(t, "failed", view.DisplayState)
	assert.True(t, view.RetryAvailable)
}

func TestServicesClient_DownloadReceipt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") == "pdf" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"success": false,
				"error":   map[string]string{"code": "ERR_RECEIPT_PDF_UNAVAILABLE", "message": "PDF receipts are not enabled"},
			})
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="bhavan-receipt-BHV-1001.txt"`)
		_, _ = w.Write([]byte("BHAVAN SERVICE RECEIPT\nReference: BHV-1001\n"))
	}))
	defer srv.Close()
	c := NewServicesClient(Config{BaseURL: srv.URL})

	receipt, err := c.DownloadReceipt(context.Background(), "BHV-1001", "")
	require.NoError(t, err)
	assert.Equal(t, "bhavan-receipt-BHV-1001.txt", receipt.FileName)
	assert.Contains(t, string(receipt.Content), "Reference: BHV-1001")
	assert.Equal(t, "text/plain; charset=utf-8", receipt.ContentType)

	_, err = c.DownloadReceipt(context.Background(), "BHV-1001", "pdf")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ERR_RECEIPT_PDF_UNAVAILABLE", apiErr.Code)
}
