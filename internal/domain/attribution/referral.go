package attribution

import (
	"context"
	"strings"
	"time"

	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// EventType classifies a referral event
type EventType string

const (
	EventClick   EventType = "click"
	EventSignup  EventType = "signup"
	EventContact EventType = "contact"
	EventPayment EventType = "payment"
)

// IsValid reports whether t is a known event type
func (t EventType) IsValid() bool {
	switch t {
	case EventClick, EventSignup, EventContact, EventPayment:
		return true
	}
	return false
}

// AllEventTypes lists the event types in reporting order
func AllEventTypes() []EventType {
	return []EventType{EventClick, EventSignup, EventContact, EventPayment}
}

// ErrNoAttribution is returned when an event has no real affiliate to credit
var ErrNoAttribution = shared.NewDomainError("NO_ATTRIBUTION", "Event carries no affiliate attribution")

const maxPathLength = 500

// ReferralEvent records one attributable action by a visitor referred by an affiliate
type ReferralEvent struct {
	shared.BaseEntity
	AffiliateID     AffiliateID
	Type            EventType
	Path            string
	ReferenceNumber string
	Amount          decimal.Decimal
	Currency        string
	Metadata        map[string]string
	OccurredAt      time.Time
}

// NewReferralEvent creates a referral event. The sentinel and the empty id are rejected
// with ErrNoAttribution so callers can skip recording without treating it as a failure.
func NewReferralEvent(affiliate AffiliateID, eventType EventType, path string) (*ReferralEvent, error) {
	if !affiliate.IsPresent() {
		return nil, ErrNoAttribution
	}
	if !Validate(affiliate.String()) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid affiliate id")
	}
	if !eventType.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown referral event type: "+string(eventType))
	}

	path = strings.TrimSpace(path)
	if len(path) > maxPathLength {
		path = path[:maxPathLength]
	}

	base := shared.NewBaseEntity()
	return &ReferralEvent{
		BaseEntity:  base,
		AffiliateID: affiliate,
		Type:        eventType,
		Path:        path,
		Amount:      decimal.Zero,
		Metadata:    make(map[string]string),
		OccurredAt:  base.CreatedAt,
	}, nil
}

// WithConversion attaches the purchase that converted this referral
func (e *ReferralEvent) WithConversion(referenceNumber string, amount decimal.Decimal, currency string) *ReferralEvent {
	e.ReferenceNumber = referenceNumber
	e.Amount = amount
	e.Currency = currency
	return e
}

// Summary aggregates referral activity for one affiliate
type Summary struct {
	AffiliateID     AffiliateID
	Counts          map[EventType]int64
	ConvertedAmount decimal.Decimal
}

// NewSummary returns an empty summary with every event type present
func NewSummary(affiliate AffiliateID) *Summary {
	counts := make(map[EventType]int64, 4)
	for _, t := range AllEventTypes() {
		counts[t] = 0
	}
	return &Summary{
		AffiliateID:     affiliate,
		Counts:          counts,
		ConvertedAmount: decimal.Zero,
	}
}

// Total returns the number of events across all types
func (s *Summary) Total() int64 {
	var total int64
	for _, c := range s.Counts {
		total += c
	}
	return total
}

// ReferralEventRepository persists referral events
type ReferralEventRepository interface {
	Save(ctx context.Context, event *ReferralEvent) error
	FindAll(ctx context.Context, filter shared.Filter) ([]ReferralEvent, int64, error)
	Summarize(ctx context.Context, affiliate AffiliateID) (*Summary, error)
}
