// Package referral records attributable visitor actions and reports them per affiliate.
package referral

import (
	"context"
	"errors"
	"strings"

	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const maxMetadataKeys = 20

// ReferralService records and summarizes referral events
type ReferralService struct {
	repo      attribution.ReferralEventRepository
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewReferralService creates a new ReferralService
func NewReferralService(repo attribution.ReferralEventRepository, publisher shared.EventPublisher, log *zap.Logger) *ReferralService {
	return &ReferralService{
		repo:      repo,
		publisher: publisher,
		logger:    log.Named("referral"),
	}
}

// RecordEvent stores a site-reported event. Events without a real affiliate are
// acknowledged but not stored.
func (s *ReferralService) RecordEvent(ctx context.Context, req RecordEventRequest, fallbackAffiliate string) (*RecordEventResult, error) {
	log := logger.WithTraceContext(ctx, s.logger)
	affiliate := attribution.Normalize(strings.TrimSpace(req.AffiliateID), func(candidate string) {
		log.Warn("Invalid affiliate id on referral event, using sentinel",
			zap.String("affiliate_id", logger.Truncate(candidate, 120)))
	})
	if !affiliate.IsPresent() {
		affiliate = attribution.Normalize(fallbackAffiliate, nil)
	}
	if len(req.Metadata) > maxMetadataKeys {
		return nil, shared.NewDomainError("INVALID_INPUT", "Too many metadata entries")
	}

	event, err := attribution.NewReferralEvent(affiliate, attribution.EventType(req.Type), req.Path)
	if errors.Is(err, attribution.ErrNoAttribution) {
		return &RecordEventResult{Recorded: false}, nil
	}
	if err != nil {
		return nil, err
	}
	for k, v := range req.Metadata {
		event.Metadata[k] = v
	}
	if err := s.store(ctx, event); err != nil {
		return nil, err
	}
	id := event.ID
	return &RecordEventResult{Recorded: true, ID: &id}, nil
}

// RecordContact credits an affiliate with a lead. It returns ErrNoAttribution
// when there is nobody to credit.
func (s *ReferralService) RecordContact(ctx context.Context, affiliateID, path string, metadata map[string]string) error {
	event, err := attribution.NewReferralEvent(attribution.AffiliateID(affiliateID), attribution.EventContact, path)
	if err != nil {
		return err
	}
	for k, v := range metadata {
		event.Metadata[k] = v
	}
	return s.store(ctx, event)
}

// RecordConversion credits an affiliate with a completed payment
func (s *ReferralService) RecordConversion(ctx context.Context, c Conversion) error {
	event, err := attribution.NewReferralEvent(attribution.AffiliateID(c.AffiliateID), attribution.EventPayment, "")
	if err != nil {
		return err
	}
	event.WithConversion(c.ReferenceNumber, c.Amount, c.Currency)
	return s.store(ctx, event)
}

// Summary returns per-type counts and converted amount for one affiliate
func (s *ReferralService) Summary(ctx context.Context, affiliateID string) (*SummaryResponse, error) {
	affiliateID = strings.TrimSpace(affiliateID)
	if !attribution.Validate(affiliateID) || affiliateID == attribution.NoAffiliateID.String() {
		return nil, shared.NewDomainError("INVALID_INPUT", "A valid affiliate_id is required")
	}
	summary, err := s.repo.Summarize(ctx, attribution.AffiliateID(affiliateID))
	if err != nil {
		return nil, err
	}
	resp := toSummaryResponse(summary)
	return &resp, nil
}

// ListEvents returns a page of stored events, newest first
func (s *ReferralService) ListEvents(ctx context.Context, q ListEventsQuery) (shared.Paginated[ReferralEventResponse], error) {
	filter := shared.Filter{
		Page:     q.Page,
		PageSize: q.PageSize,
		OrderBy:  "occurred_at",
		OrderDir: "desc",
		Filters:  map[string]interface{}{},
	}.Normalize()
	if q.AffiliateID != "" {
		filter.Filters["affiliate_id"] = q.AffiliateID
	}
	if q.Type != "" {
		filter.Filters["type"] = q.Type
	}
	events, total, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[ReferralEventResponse]{}, err
	}
	items := make([]ReferralEventResponse, len(events))
	for i := range events {
		items[i] = toReferralEventResponse(&events[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

func (s *ReferralService) store(ctx context.Context, event *attribution.ReferralEvent) error {
	if err := s.repo.Save(ctx, event); err != nil {
		return err
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, attribution.NewReferralRecordedEvent(event)); err != nil {
			logger.WithTraceContext(ctx, s.logger).Error("Failed to publish referral event", zap.Error(err))
		}
	}
	logger.WithTraceContext(ctx, s.logger).Debug("Referral event recorded",
		zap.String("affiliate_id", event.AffiliateID.String()),
		zap.String("type", string(event.Type)))
	return nil
}
