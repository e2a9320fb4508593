package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/bhavan/backend/internal/application/purchase"
	"github.com/bhavan/backend/internal/domain/identity"
	"github.com/bhavan/backend/internal/domain/lead"
	"github.com/bhavan/backend/internal/domain/listing"
	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/auth"
	"github.com/bhavan/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"reference not found", servicerequest.ErrReferenceNotFound, http.StatusNotFound, dto.ErrCodeReferenceNotFound, "Service request not found. Please check your reference number."},
		{"wrapped domain error", fmt.Errorf("load: %w", servicerequest.ErrNotRetryable), http.StatusConflict, dto.ErrCodeNotRetryable, ""},
		{"invalid state", shared.ErrInvalidState, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState, ""},
		{"conflict", shared.ErrConflict, http.StatusConflict, dto.ErrCodeConflict, ""},
		{"invalid credentials", identity.ErrInvalidCredentials, http.StatusUnauthorized, dto.ErrCodeInvalidCredentials, "Invalid email or password"},
		{"account locked", identity.ErrAccountLocked, http.StatusLocked, dto.ErrCodeAccountLocked, ""},
		{"receipt pdf unavailable", purchase.ErrReceiptPDFUnavailable, http.StatusServiceUnavailable, dto.ErrCodeReceiptPDFUnavailable, ""},
		{"gateway message passes through", &servicerequest.GatewayError{Message: "Your card was declined."}, http.StatusBadGateway, dto.ErrCodePaymentFailed, "Your card was declined."},
		{"gateway not configured", &servicerequest.GatewayError{Message: "x", Err: servicerequest.ErrGatewayNotConfigured}, http.StatusServiceUnavailable, dto.ErrCodeServiceUnavailable, ""},
		{"bad webhook signature", servicerequest.ErrGatewayInvalidCallback, http.StatusBadRequest, dto.ErrCodeBadRequest, ""},
		{"storage not configured", listing.ErrStorageNotConfigured, http.StatusServiceUnavailable, dto.ErrCodeServiceUnavailable, ""},
		{"expired refresh token", auth.ErrExpiredToken, http.StatusUnauthorized, dto.ErrCodeTokenExpired, ""},
		{"revoked token", auth.ErrTokenRevoked, http.StatusUnauthorized, dto.ErrCodeTokenRevoked, ""},
		{"unknown error is hidden", errors.New("pq: connection refused"), http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			r := newTestRouter()
			r.GET("/x", func(c *gin.Context) { h.HandleError(c, tt.err) })

			rec := doJSON(r, http.MethodGet, "/x", nil, "X-Request-ID", "req-1")

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Error.Message)
			}
		})
	}
}

func TestBaseHandler_HandleError_FormValidation(t *testing.T) {
	h := &BaseHandler{}
	r := newTestRouter()
	r.GET("/x", func(c *gin.Context) {
		h.HandleError(c, &lead.ValidationError{Fields: []lead.FieldError{
			{Field: "email", Message: "Email is required"},
		}})
	})

	rec := doJSON(r, http.MethodGet, "/x", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, []dto.ValidationDetail{{Field: "email", Message: "Email is required"}}, resp.Error.Details)
}

func TestBaseHandler_HandleError_PaymentInitiation(t *testing.T) {
	requestID := uuid.New()
	h := &BaseHandler{}
	r := newTestRouter()
	r.GET("/x", func(c *gin.Context) {
		h.HandleError(c, &purchase.PaymentInitiationError{
			RequestID:       requestID,
			ReferenceNumber: "BHV-1001",
			Err:             &servicerequest.GatewayError{Message: "Your card has insufficient funds."},
		})
	})

	rec := doJSON(r, http.MethodGet, "/x", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "BHV-1001", body["referenceNumber"])
	assert.Equal(t, requestID.String(), body["requestId"])
	errBody := body["error"].(map[string]any)
	assert.Equal(t, dto.ErrCodePaymentFailed, errBody["code"])
	assert.Equal(t, "Your card has insufficient funds.", errBody["message"])
}

func TestBaseHandler_BindError(t *testing.T) {
	type body struct {
		Name string `json:"name" binding:"required"`
	}
	h := &BaseHandler{}
	r := newTestRouter()
	r.POST("/x", func(c *gin.Context) {
		var b body
		if err := c.ShouldBindJSON(&b); err != nil {
			h.BindError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := doJSON(r, http.MethodPost, "/x", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decodeResponse(t, rec).Error.Code)
	})

	t.Run("missing field", func(t *testing.T) {
		rec := doJSON(r, http.MethodPost, "/x", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "name", resp.Error.Details[0].Field)
	})
}
