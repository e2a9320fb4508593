package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/bhavan/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Stripe webhooks are small; anything larger is rejected before verification.
const maxWebhookPayloadSize = 65536

// WebhookProcessor verifies and applies gateway notifications
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// StripeWebhookHandler receives Stripe events. It is called by Stripe and
// carries no authentication beyond the signature header.
type StripeWebhookHandler struct {
	BaseHandler
	processor WebhookProcessor
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler
func NewStripeWebhookHandler(processor WebhookProcessor) *StripeWebhookHandler {
	return &StripeWebhookHandler{processor: processor}
}

// StripeWebhookResponse is the acknowledgement returned to Stripe
type StripeWebhookResponse struct {
	Received bool   `json:"received"`
	Message  string `json:"message,omitempty"`
}

// HandleStripeWebhook verifies the signature over the raw body and applies the event.
// Processing failures answer 500 so Stripe redelivers; each event id is applied once.
func (h *StripeWebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, StripeWebhookResponse{Message: "Failed to read request body"})
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, StripeWebhookResponse{Message: "Payload too large"})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusUnauthorized, StripeWebhookResponse{Message: "Missing Stripe-Signature header"})
		return
	}

	err = h.processor.HandleWebhook(c.Request.Context(), payload, signature)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, StripeWebhookResponse{Received: true})
	case errors.Is(err, servicerequest.ErrGatewayInvalidCallback):
		c.JSON(http.StatusUnauthorized, StripeWebhookResponse{Message: "Webhook signature verification failed"})
	case errors.Is(err, servicerequest.ErrGatewayNotConfigured):
		c.JSON(http.StatusServiceUnavailable, StripeWebhookResponse{Message: "Payment gateway not configured"})
	default:
		logger.FromContext(c.Request.Context()).Error("Stripe webhook processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, StripeWebhookResponse{Message: "Webhook processing failed"})
	}
}
