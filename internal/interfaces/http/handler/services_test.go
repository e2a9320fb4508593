package handler

import (
	"net/http"
	"testing"

	"github.com/bhavan/backend/internal/application/catalog"
	"github.com/bhavan/backend/internal/application/purchase"
	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func serviceRouter(cat *MockCatalogService, p *MockPurchaseService) *gin.Engine {
	h := NewServiceHandler(cat, p)
	r := newTestRouter()
	r.GET("/api/services", h.ListServices)
	r.GET("/api/services/:idOrSlug", h.GetService)
	r.POST("/api/services/purchase", h.InitiatePurchase)
	r.POST("/api/services/payment/retry", h.RetryPayment)
	r.GET("/api/services/requests/:ref", h.GetRequest)
	r.GET("/api/services/requests/:ref/receipt", h.Receipt)
	r.GET("/api/services/confirmation", h.Confirmation)
	return r
}

func purchaseBody() map[string]any {
	return map[string]any{
		"serviceId": "property-due-diligence",
		"customer": map[string]any{
			"fullName": "Asha Rao",
			"email":    "asha@example.com",
			"phone":    "+91 98765 43210",
		},
	}
}

func TestServiceHandler_Catalog(t *testing.T) {
	cat := new(MockCatalogService)
	r := serviceRouter(cat, new(MockPurchaseService))

	cat.On("ListServices", mock.Anything, catalog.ServiceListQuery{Category: "legal"}).
		Return([]catalog.ServiceResponse{{Slug: "rera-check", Name: "RERA check"}}, nil)
	cat.On("GetService", mock.Anything, "rera-check").
		Return(&catalog.ServiceResponse{Slug: "rera-check"}, nil)

	rec := doJSON(r, http.MethodGet, "/api/services?category=legal", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)

	rec = doJSON(r, http.MethodGet, "/api/services/rera-check", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(r, http.MethodGet, "/api/services?category=plumbing", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	cat.AssertExpectations(t)
}

func TestServiceHandler_InitiatePurchase(t *testing.T) {
	t.Run("flat success body", func(t *testing.T) {
		p := new(MockPurchaseService)
		r := serviceRouter(new(MockCatalogService), p)
		requestID := uuid.New()

		p.On("InitiatePurchase", mock.Anything, mock.MatchedBy(func(req purchase.InitiatePurchaseRequest) bool {
			return req.ServiceID == "property-due-diligence" &&
				req.AffiliateCode == "partner123" &&
				req.IdempotencyKey == "idem-1"
		})).Return(&purchase.InitiatePurchaseResult{
			RequestID:       requestID,
			ReferenceNumber: "BHV-1001",
			PaymentIntent: purchase.PaymentIntentDTO{
				ClientSecret: "pi_1_secret_x",
				Amount:       decimal.NewFromInt(4999),
				Currency:     "INR",
				Gateway:      "stripe",
			},
		}, nil)

		rec := doJSON(r, http.MethodPost, "/api/services/purchase?affiliate_id=partner123", purchaseBody(),
			IdempotencyKeyHeader, "idem-1")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeMap(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, requestID.String(), body["requestId"])
		assert.Equal(t, "BHV-1001", body["referenceNumber"])
		intent := body["paymentIntent"].(map[string]any)
		assert.Equal(t, "pi_1_secret_x", intent["clientSecret"])
		assert.Equal(t, "INR", intent["currency"])
		assert.NotContains(t, body, "data")
		p.AssertExpectations(t)
	})

	t.Run("body affiliate wins over url", func(t *testing.T) {
		p := new(MockPurchaseService)
		r := serviceRouter(new(MockCatalogService), p)
		p.On("InitiatePurchase", mock.Anything, mock.MatchedBy(func(req purchase.InitiatePurchaseRequest) bool {
			return req.AffiliateCode == "fromBody"
		})).Return(&purchase.InitiatePurchaseResult{ReferenceNumber: "BHV-1002"}, nil)

		body := purchaseBody()
		body["affiliateCode"] = "fromBody"
		rec := doJSON(r, http.MethodPost, "/api/services/purchase?affiliate_id=fromURL", body)
		assert.Equal(t, http.StatusOK, rec.Code)
		p.AssertExpectations(t)
	})

	t.Run("no affiliate anywhere", func(t *testing.T) {
		p := new(MockPurchaseService)
		r := serviceRouter(new(MockCatalogService), p)
		p.On("InitiatePurchase", mock.Anything, mock.MatchedBy(func(req purchase.InitiatePurchaseRequest) bool {
			return req.AffiliateCode == ""
		})).Return(&purchase.InitiatePurchaseResult{ReferenceNumber: "BHV-1003"}, nil)

		rec := doJSON(r, http.MethodPost, "/api/services/purchase", purchaseBody())
		assert.Equal(t, http.StatusOK, rec.Code)
		p.AssertExpectations(t)
	})

	t.Run("missing customer email", func(t *testing.T) {
		p := new(MockPurchaseService)
		r := serviceRouter(new(MockCatalogService), p)
		body := purchaseBody()
		delete(body["customer"].(map[string]any), "email")

		rec := doJSON(r, http.MethodPost, "/api/services/purchase", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		p.AssertNotCalled(t, "InitiatePurchase", mock.Anything, mock.Anything)
	})

	t.Run("gateway refusal keeps reference", func(t *testing.T) {
		p := new(MockPurchaseService)
		r := serviceRouter(new(MockCatalogService), p)
		p.On("InitiatePurchase", mock.Anything, mock.Anything).Return(nil, &purchase.PaymentInitiationError{
			RequestID:       uuid.New(),
			ReferenceNumber: "BHV-1004",
			Err:             &servicerequest.GatewayError{Message: "Your card was declined."},
		})

		rec := doJSON(r, http.MethodPost, "/api/services/purchase", purchaseBody())
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		body := decodeMap(t, rec)
		assert.Equal(t, "BHV-1004", body["referenceNumber"])
		assert.Equal(t, "Your card was declined.", body["error"].(map[string]any)["message"])
	})
}

func TestServiceHandler_RetryPayment(t *testing.T) {
	p := new(MockPurchaseService)
	r := serviceRouter(new(MockCatalogService), p)

	p.On("RetryPayment", mock.Anything, "BHV-1001").Return(&purchase.RetryPaymentResult{
		ReferenceNumber: "BHV-1001",
		PaymentURL:      "https://checkout.stripe.com/c/pay/cs_test_1",
	}, nil)
	p.On("RetryPayment", mock.Anything, "BHV-0000").Return(nil, servicerequest.ErrReferenceNotFound)

	rec := doJSON(r, http.MethodPost, "/api/services/payment/retry", map[string]string{"referenceNumber": " BHV-1001 "})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", body["paymentUrl"])

	rec = doJSON(r, http.MethodPost, "/api/services/payment/retry", map[string]string{"referenceNumber": "BHV-0000"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(r, http.MethodPost, "/api/services/payment/retry", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceHandler_GetRequestAndConfirmation(t *testing.T) {
	p := new(MockPurchaseService)
	r := serviceRouter(new(MockCatalogService), p)

	view := &purchase.RequestView{
		Request:           purchase.RequestDTO{ReferenceNumber: "BHV-1001", Payment: purchase.PaymentDTO{Status: "pending"}},
		Timeline:          []purchase.TimelineItemDTO{{Status: "pending_payment", Label: "Awaiting payment"}},
		EstimatedNextStep: "Complete your payment to begin processing.",
	}
	p.On("GetByReference", mock.Anything, "BHV-1001").Return(view, nil)
	p.On("Confirmation", mock.Anything, "BHV-1001", "failed").Return(&purchase.ConfirmationView{
		Request:        view.Request,
		DisplayState:   "failed",
		RetryAvailable: true,
	}, nil)

	rec := doJSON(r, http.MethodGet, "/api/services/requests/BHV-1001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "BHV-1001", body["request"].(map[string]any)["referenceNumber"])
	assert.Len(t, body["timeline"], 1)
	assert.Equal(t, "Complete your payment to begin processing.", body["estimatedNextStep"])

	rec = doJSON(r, http.MethodGet, "/api/services/confirmation?ref=BHV-1001&status=failed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeMap(t, rec)
	assert.Equal(t, "failed", body["displayState"])
	assert.Equal(t, true, body["retryAvailable"])

	rec = doJSON(r, http.MethodGet, "/api/services/confirmation", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceHandler_Receipt(t *testing.T) {
	p := new(MockPurchaseService)
	r := serviceRouter(new(MockCatalogService), p)

	p.On("Receipt", mock.Anything, "BHV-1001").Return(&purchase.ReceiptFile{
		FileName:    "bhavan-receipt-BHV-1001.txt",
		ContentType: "text/plain; charset=utf-8",
		Content:     []byte("BHAVAN SERVICE RECEIPT\n"),
	}, nil)
	p.On("ReceiptPDF", mock.Anything, "BHV-1001").Return(nil, purchase.ErrReceiptPDFUnavailable)

	rec := doJSON(r, http.MethodGet, "/api/services/requests/BHV-1001/receipt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="bhavan-receipt-BHV-1001.txt"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "BHAVAN SERVICE RECEIPT\n", rec.Body.String())

	rec = doJSON(r, http.MethodGet, "/api/services/requests/BHV-1001/receipt?format=pdf", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doJSON(r, http.MethodGet, "/api/services/requests/BHV-1001/receipt?format=docx", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
