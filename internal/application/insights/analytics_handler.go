package insights

import (
	"context"

	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/bhavan/backend/internal/domain/lead"
	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/analytics"
	"go.uber.org/zap"
)

// AnalyticsHandler forwards selected domain events to the analytics collector.
// Tracking failures never fail publishing.
type AnalyticsHandler struct {
	tracker analytics.Tracker
	logger  *zap.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(tracker analytics.Tracker, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		tracker: tracker,
		logger:  logger.Named("analytics"),
	}
}

// EventTypes returns the event types this handler is interested in
func (h *AnalyticsHandler) EventTypes() []string {
	return []string{
		lead.EventTypeLeadSubmitted,
		servicerequest.EventTypeServiceRequestCreated,
		servicerequest.EventTypePaymentCompleted,
		attribution.EventTypeReferralRecorded,
	}
}

// Handle tracks the event; errors are logged at Debug and dropped
func (h *AnalyticsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	tracked, ok := toAnalyticsEvent(event)
	if !ok {
		return nil
	}
	if err := h.tracker.Track(ctx, tracked); err != nil {
		h.logger.Debug("Analytics tracking failed",
			zap.String("event", tracked.Name),
			zap.Error(err))
	}
	return nil
}

func toAnalyticsEvent(event shared.DomainEvent) (analytics.Event, bool) {
	out := analytics.Event{Timestamp: event.OccurredAt()}
	switch e := event.(type) {
	case *lead.LeadSubmittedEvent:
		out.Name = "form_submitted"
		out.Properties = map[string]any{
			"form_type":    e.FormType,
			"source_path":  e.SourcePath,
			"utm_source":   e.UTMSource,
			"utm_campaign": e.UTMCampaign,
		}
	case *servicerequest.ServiceRequestCreatedEvent:
		out.Name = "purchase_initiated"
		out.Properties = map[string]any{
			"reference_number": e.ReferenceNumber,
			"service":          e.ServiceName,
			"amount":           e.Amount.String(),
			"currency":         e.Currency,
		}
	case *servicerequest.PaymentCompletedEvent:
		out.Name = "payment_completed"
		out.Properties = map[string]any{
			"reference_number": e.ReferenceNumber,
			"amount":           e.Amount.String(),
			"currency":         e.Currency,
			"attempt":          e.Attempt,
		}
	case *attribution.ReferralRecordedEvent:
		out.Name = "referral_" + e.Kind
		out.Properties = map[string]any{"path": e.Path}
	default:
		return analytics.Event{}, false
	}
	if attributed, ok := event.(shared.AttributedEvent); ok {
		if id := attribution.AffiliateID(attributed.Affiliate()); id.IsPresent() {
			out.AffiliateID = id.String()
		}
	}
	return out, true
}
