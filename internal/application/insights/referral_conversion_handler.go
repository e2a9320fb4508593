// Package insights holds the event-bus handlers that turn domain events into
// referral credits, analytics events and business metrics.
package insights

import (
	"context"
	"errors"
	"fmt"

	"github.com/bhavan/backend/internal/application/referral"
	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/bhavan/backend/internal/domain/lead"
	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/bhavan/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ReferralRecorder stores referral credits
type ReferralRecorder interface {
	RecordContact(ctx context.Context, affiliateID, path string, metadata map[string]string) error
	RecordConversion(ctx context.Context, c referral.Conversion) error
}

// ReferralConversionHandler credits affiliates with leads and completed payments.
// Wrap it in an IdempotentHandler so redelivered events are credited once.
type ReferralConversionHandler struct {
	recorder ReferralRecorder
	logger   *zap.Logger
}

// NewReferralConversionHandler creates a new ReferralConversionHandler
func NewReferralConversionHandler(recorder ReferralRecorder, logger *zap.Logger) *ReferralConversionHandler {
	return &ReferralConversionHandler{
		recorder: recorder,
		logger:   logger.Named("referral_conversion"),
	}
}

// EventTypes returns the event types this handler is interested in
func (h *ReferralConversionHandler) EventTypes() []string {
	return []string{lead.EventTypeLeadSubmitted, servicerequest.EventTypePaymentCompleted}
}

// Handle records a contact or payment referral event for attributed events
func (h *ReferralConversionHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var err error
	switch e := event.(type) {
	case *lead.LeadSubmittedEvent:
		err = h.recorder.RecordContact(ctx, e.AffiliateID, e.SourcePath, map[string]string{
			"form_type": e.FormType,
			"lead_id":   e.AggregateID().String(),
		})
	case *servicerequest.PaymentCompletedEvent:
		err = h.recorder.RecordConversion(ctx, referral.Conversion{
			AffiliateID:     e.AffiliateID,
			ReferenceNumber: e.ReferenceNumber,
			Amount:          e.Amount,
			Currency:        e.Currency,
		})
	default:
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	if errors.Is(err, attribution.ErrNoAttribution) {
		return nil
	}
	if err != nil {
		h.logger.Error("Failed to record referral credit",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.Error(err))
		return fmt.Errorf("failed to record referral credit: %w", err)
	}
	return nil
}
