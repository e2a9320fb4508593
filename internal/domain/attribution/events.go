package attribution

import (
	"github.com/bhavan/backend/internal/domain/shared"
)

const (
	// AggregateTypeReferral is the aggregate type for referral events
	AggregateTypeReferral = "ReferralEvent"

	// EventTypeReferralRecorded is published after a referral event is stored
	EventTypeReferralRecorded = "ReferralRecorded"
)

// ReferralRecordedEvent is published after a referral event is stored
type ReferralRecordedEvent struct {
	shared.BaseDomainEvent
	AffiliateID string `json:"affiliate_id"`
	Kind        string `json:"kind"`
	Path        string `json:"path,omitempty"`
}

// NewReferralRecordedEvent builds the event for a stored referral
func NewReferralRecordedEvent(e *ReferralEvent) *ReferralRecordedEvent {
	return &ReferralRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReferralRecorded, AggregateTypeReferral, e.ID),
		AffiliateID:     e.AffiliateID.String(),
		Kind:            string(e.Type),
		Path:            e.Path,
	}
}

// Affiliate returns the credited affiliate
func (e *ReferralRecordedEvent) Affiliate() string {
	return e.AffiliateID
}
