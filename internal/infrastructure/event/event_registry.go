package event

import (
	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/bhavan/backend/internal/domain/lead"
	"github.com/bhavan/backend/internal/domain/listing"
	"github.com/bhavan/backend/internal/domain/servicerequest"
)

// RegisterAllEvents registers every domain event type with the serializer so
// forwarded events can be decoded by consumers.
func RegisterAllEvents(serializer *EventSerializer) {
	// Service requests
	serializer.Register(servicerequest.EventTypeServiceRequestCreated, &servicerequest.ServiceRequestCreatedEvent{})
	serializer.Register(servicerequest.EventTypePaymentCompleted, &servicerequest.PaymentCompletedEvent{})
	serializer.Register(servicerequest.EventTypePaymentFailed, &servicerequest.PaymentFailedEvent{})
	serializer.Register(servicerequest.EventTypePaymentRefunded, &servicerequest.PaymentRefundedEvent{})
	serializer.Register(servicerequest.EventTypeStatusChanged, &servicerequest.StatusChangedEvent{})

	// Leads and referrals
	serializer.Register(lead.EventTypeLeadSubmitted, &lead.LeadSubmittedEvent{})
	serializer.Register(attribution.EventTypeReferralRecorded, &attribution.ReferralRecordedEvent{})

	// Listings
	serializer.Register(listing.EventTypeListingSubmitted, &listing.ListingSubmittedEvent{})
	serializer.Register(listing.EventTypeListingApproved, &listing.ListingReviewedEvent{})
	serializer.Register(listing.EventTypeListingRejected, &listing.ListingReviewedEvent{})
}
