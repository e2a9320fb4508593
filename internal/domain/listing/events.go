package listing

import "github.com/bhavan/backend/internal/domain/shared"

// Listing event types
const (
	EventTypeListingSubmitted = "ListingSubmitted"
	EventTypeListingApproved  = "ListingApproved"
	EventTypeListingRejected  = "ListingRejected"
)

// ListingSubmittedEvent is published when a broker submits a listing
type ListingSubmittedEvent struct {
	shared.BaseDomainEvent
	Title       string `json:"title"`
	City        string `json:"city"`
	BrokerEmail string `json:"broker_email"`
	AffiliateID string `json:"affiliate_id"`
}

// NewListingSubmittedEvent builds the submission event
func NewListingSubmittedEvent(l *Listing) *ListingSubmittedEvent {
	return &ListingSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeListingSubmitted, AggregateTypeListing, l.ID),
		Title:           l.Title,
		City:            l.City,
		BrokerEmail:     l.Broker.Email,
		AffiliateID:     l.AffiliateID,
	}
}

// ListingReviewedEvent is published when an admin approves or rejects a listing
type ListingReviewedEvent struct {
	shared.BaseDomainEvent
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// NewListingReviewedEvent builds the review event with the given type
func NewListingReviewedEvent(l *Listing, eventType string) *ListingReviewedEvent {
	return &ListingReviewedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeListing, l.ID),
		Status:          string(l.Status),
		Reason:          l.RejectionReason,
	}
}
