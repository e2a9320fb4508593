package lead

import "github.com/bhavan/backend/internal/domain/shared"

// EventTypeLeadSubmitted is published for every accepted form submission
const EventTypeLeadSubmitted = "LeadSubmitted"

// LeadSubmittedEvent is published for every accepted form submission
type LeadSubmittedEvent struct {
	shared.BaseDomainEvent
	FormType    string `json:"form_type"`
	AffiliateID string `json:"affiliate_id"`
	SourcePath  string `json:"source_path,omitempty"`
	UTMSource   string `json:"utm_source,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
}

// NewLeadSubmittedEvent builds the event for a new lead
func NewLeadSubmittedEvent(l *Lead) *LeadSubmittedEvent {
	return &LeadSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLeadSubmitted, AggregateTypeLead, l.ID),
		FormType:        string(l.FormType),
		AffiliateID:     l.AffiliateID,
		SourcePath:      l.SourcePath,
		UTMSource:       l.UTM.Source,
		UTMCampaign:     l.UTM.Campaign,
	}
}

// Affiliate returns the referral partner credited for the lead
func (e *LeadSubmittedEvent) Affiliate() string { return e.AffiliateID }
