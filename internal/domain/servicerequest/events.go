package servicerequest

import (
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types published by the service request aggregate
const (
	EventTypeServiceRequestCreated = "ServiceRequestCreated"
	EventTypePaymentCompleted      = "PaymentCompleted"
	EventTypePaymentFailed         = "PaymentFailed"
	EventTypePaymentRefunded       = "PaymentRefunded"
	EventTypeStatusChanged         = "ServiceRequestStatusChanged"
)

// ServiceRequestCreatedEvent is published when a customer initiates a purchase
type ServiceRequestCreatedEvent struct {
	shared.BaseDomainEvent
	ReferenceNumber string          `json:"reference_number"`
	ServiceID       uuid.UUID       `json:"service_id"`
	ServiceName     string          `json:"service_name"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	AffiliateID     string          `json:"affiliate_id"`
}

// NewServiceRequestCreatedEvent builds the creation event
func NewServiceRequestCreatedEvent(r *ServiceRequest) *ServiceRequestCreatedEvent {
	return &ServiceRequestCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeServiceRequestCreated, AggregateTypeServiceRequest, r.ID),
		ReferenceNumber: r.ReferenceNumber,
		ServiceID:       r.ServiceID,
		ServiceName:     r.ServiceName,
		Amount:          r.Payment.Amount,
		Currency:        r.Payment.Currency,
		AffiliateID:     r.AffiliateID,
	}
}

// Affiliate returns the referral partner credited for the purchase
func (e *ServiceRequestCreatedEvent) Affiliate() string { return e.AffiliateID }

// PaymentCompletedEvent is published when the gateway confirms a payment
type PaymentCompletedEvent struct {
	shared.BaseDomainEvent
	ReferenceNumber string          `json:"reference_number"`
	TransactionID   string          `json:"transaction_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Attempt         int             `json:"attempt"`
	AffiliateID     string          `json:"affiliate_id"`
}

// NewPaymentCompletedEvent builds the payment completion event
func NewPaymentCompletedEvent(r *ServiceRequest) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentCompleted, AggregateTypeServiceRequest, r.ID),
		ReferenceNumber: r.ReferenceNumber,
		TransactionID:   r.Payment.TransactionID,
		Amount:          r.Payment.Amount,
		Currency:        r.Payment.Currency,
		Attempt:         r.Payment.Attempts,
		AffiliateID:     r.AffiliateID,
	}
}

// Affiliate returns the referral partner credited for the payment
func (e *PaymentCompletedEvent) Affiliate() string { return e.AffiliateID }

// PaymentFailedEvent is published when a payment attempt fails
type PaymentFailedEvent struct {
	shared.BaseDomainEvent
	ReferenceNumber string `json:"reference_number"`
	Reason          string `json:"reason"`
	Attempt         int    `json:"attempt"`
}

// NewPaymentFailedEvent builds the payment failure event
func NewPaymentFailedEvent(r *ServiceRequest) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentFailed, AggregateTypeServiceRequest, r.ID),
		ReferenceNumber: r.ReferenceNumber,
		Reason:          r.Payment.FailureReason,
		Attempt:         r.Payment.Attempts,
	}
}

// PaymentRefundedEvent is published when a payment is refunded
type PaymentRefundedEvent struct {
	shared.BaseDomainEvent
	ReferenceNumber string          `json:"reference_number"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
}

// NewPaymentRefundedEvent builds the refund event
func NewPaymentRefundedEvent(r *ServiceRequest) *PaymentRefundedEvent {
	return &PaymentRefundedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRefunded, AggregateTypeServiceRequest, r.ID),
		ReferenceNumber: r.ReferenceNumber,
		Amount:          r.Payment.Amount,
		Currency:        r.Payment.Currency,
	}
}

// StatusChangedEvent is published on fulfilment transitions
type StatusChangedEvent struct {
	shared.BaseDomainEvent
	ReferenceNumber string `json:"reference_number"`
	From            Status `json:"from"`
	To              Status `json:"to"`
}

// NewStatusChangedEvent builds the status change event
func NewStatusChangedEvent(r *ServiceRequest, from, to Status) *StatusChangedEvent {
	return &StatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStatusChanged, AggregateTypeServiceRequest, r.ID),
		ReferenceNumber: r.ReferenceNumber,
		From:            from,
		To:              to,
	}
}
