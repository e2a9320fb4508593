package insights

import (
	"context"

	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/bhavan/backend/internal/domain/lead"
	"github.com/bhavan/backend/internal/domain/listing"
	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/telemetry"
)

// MetricsHandler turns domain events into business counters
type MetricsHandler struct {
	metrics *telemetry.BusinessMetrics
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(metrics *telemetry.BusinessMetrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// EventTypes returns the event types this handler is interested in
func (h *MetricsHandler) EventTypes() []string {
	return []string{
		servicerequest.EventTypeServiceRequestCreated,
		servicerequest.EventTypePaymentCompleted,
		servicerequest.EventTypePaymentFailed,
		servicerequest.EventTypePaymentRefunded,
		lead.EventTypeLeadSubmitted,
		attribution.EventTypeReferralRecorded,
		listing.EventTypeListingSubmitted,
		listing.EventTypeListingApproved,
		listing.EventTypeListingRejected,
	}
}

// Handle records the counter for the event
func (h *MetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *servicerequest.ServiceRequestCreatedEvent:
		h.metrics.RecordPurchaseInitiated(ctx, e.ServiceName, attribution.AffiliateID(e.AffiliateID).IsPresent())
	case *servicerequest.PaymentCompletedEvent:
		h.metrics.RecordPayment(ctx, telemetry.PaymentOutcomeCompleted, e.Currency, e.Amount.InexactFloat64())
	case *servicerequest.PaymentFailedEvent:
		h.metrics.RecordPayment(ctx, telemetry.PaymentOutcomeFailed, "", 0)
	case *servicerequest.PaymentRefundedEvent:
		h.metrics.RecordPayment(ctx, telemetry.PaymentOutcomeRefunded, e.Currency, e.Amount.InexactFloat64())
	case *lead.LeadSubmittedEvent:
		h.metrics.RecordLead(ctx, e.FormType, attribution.AffiliateID(e.AffiliateID).IsPresent())
	case *attribution.ReferralRecordedEvent:
		h.metrics.RecordReferral(ctx, e.Kind)
	case *listing.ListingSubmittedEvent:
		h.metrics.RecordListing(ctx, string(listing.StatusPending))
	case *listing.ListingReviewedEvent:
		h.metrics.RecordListing(ctx, e.Status)
	}
	return nil
}
