// Package servicerequest models one purchase of a professional service, from
// payment handoff through delivery, keyed by an immutable reference number.
package servicerequest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// AggregateTypeServiceRequest is the aggregate type name used in domain events
const AggregateTypeServiceRequest = "ServiceRequest"

var referencePattern = regexp.MustCompile(`^[A-Z]{2,8}-[0-9]{4,12}$`)

// Domain errors specific to service requests
var (
	ErrReferenceNotFound = shared.NewDomainError("REFERENCE_NOT_FOUND", "Service request not found. Please check your reference number.")
	ErrNotRetryable      = shared.NewDomainError("NOT_RETRYABLE", "Payment cannot be retried for this request")
)

// FormatReference builds a reference number such as BHV-1001
func FormatReference(prefix string, n int64) string {
	prefix = strings.TrimSuffix(strings.ToUpper(prefix), "-")
	return fmt.Sprintf("%s-%d", prefix, n)
}

// IsValidReference reports whether ref is shaped like a reference number
func IsValidReference(ref string) bool {
	return referencePattern.MatchString(ref)
}

// NormalizeReference uppercases and trims user input
func NormalizeReference(ref string) string {
	return strings.ToUpper(strings.TrimSpace(ref))
}

// Payment is the payment sub-record of the current attempt
type Payment struct {
	Amount        decimal.Decimal
	Currency      string
	Status        PaymentStatus
	Gateway       string
	TransactionID string
	Attempts      int
	FailureReason string
	CompletedAt   *time.Time
}

// TimelineItem is one entry of the request history, in chronological order
type TimelineItem struct {
	Status      Status
	Label       string
	Timestamp   time.Time
	Description string
}

// ServiceRequest is the aggregate root for one purchase
type ServiceRequest struct {
	shared.BaseAggregateRoot
	ReferenceNumber string
	ServiceID       uuid.UUID
	ServiceName     string
	TierID          *uuid.UUID
	TierName        string
	Customer        Customer
	AffiliateID     string
	Payment         Payment
	Status          Status
	Timeline        []TimelineItem
}

// NewParams holds the inputs for a new service request
type NewParams struct {
	ReferenceNumber string
	ServiceID       uuid.UUID
	ServiceName     string
	TierID          *uuid.UUID
	TierName        string
	Customer        Customer
	AffiliateID     string
	Amount          decimal.Decimal
	Currency        string
}

// NewServiceRequest creates a request awaiting its first payment
func NewServiceRequest(p NewParams) (*ServiceRequest, error) {
	ref := NormalizeReference(p.ReferenceNumber)
	if !IsValidReference(ref) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid reference number: "+p.ReferenceNumber)
	}
	if p.ServiceID == uuid.Nil || strings.TrimSpace(p.ServiceName) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Service is required")
	}
	customer := p.Customer.Normalize()
	if err := customer.Validate(); err != nil {
		return nil, err
	}
	if !p.Amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Amount must be positive")
	}
	unit, err := currency.ParseISO(strings.ToUpper(p.Currency))
	if err != nil {
		return nil, shared.WrapDomainError("INVALID_INPUT", "Invalid currency code: "+p.Currency, err)
	}

	r := &ServiceRequest{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ReferenceNumber:   ref,
		ServiceID:         p.ServiceID,
		ServiceName:       strings.TrimSpace(p.ServiceName),
		TierID:            p.TierID,
		TierName:          p.TierName,
		Customer:          customer,
		AffiliateID:       p.AffiliateID,
		Payment: Payment{
			Amount:   p.Amount,
			Currency: unit.String(),
			Status:   PaymentPending,
			Attempts: 1,
		},
		Status: StatusPaymentPending,
	}
	r.appendTimeline(StatusPaymentPending, "Service request created. Awaiting payment.", r.CreatedAt)
	r.RecordEvent(NewServiceRequestCreatedEvent(r))
	return r, nil
}

// AttachTransaction records the gateway handle of the current payment attempt
func (r *ServiceRequest) AttachTransaction(gateway, transactionID string) {
	r.Payment.Gateway = gateway
	r.Payment.TransactionID = transactionID
	r.Touch()
}

// MarkPaymentCompleted records a successful payment. Repeated notifications are no-ops.
// A payment arriving after cancellation is recorded but leaves the request cancelled.
func (r *ServiceRequest) MarkPaymentCompleted(transactionID string, at time.Time) error {
	switch r.Payment.Status {
	case PaymentCompleted:
		return nil
	case PaymentRefunded:
		return shared.NewDomainError("INVALID_STATE", "Payment has already been refunded")
	}

	at = at.UTC()
	r.Payment.Status = PaymentCompleted
	r.Payment.FailureReason = ""
	r.Payment.CompletedAt = &at
	if transactionID != "" {
		r.Payment.TransactionID = transactionID
	}

	if r.Status == StatusCancelled {
		r.appendTimeline(StatusCancelled, "Payment received after cancellation. A refund will be issued.", at)
	} else {
		r.Status = StatusPaid
		r.appendTimeline(StatusPaid, "Payment received.", at)
	}
	r.RecordEvent(NewPaymentCompletedEvent(r))
	return nil
}

// MarkPaymentFailed records a failed attempt. It never overrides a completed or refunded payment.
func (r *ServiceRequest) MarkPaymentFailed(reason string, at time.Time) error {
	if r.Payment.Status == PaymentCompleted || r.Payment.Status == PaymentRefunded {
		return nil
	}
	if r.Status == StatusCancelled {
		return nil
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Payment was declined"
	}
	r.Payment.Status = PaymentFailed
	r.Payment.FailureReason = reason
	r.Status = StatusPaymentFailed
	r.appendTimeline(StatusPaymentFailed, "Payment failed: "+reason, at.UTC())
	r.RecordEvent(NewPaymentFailedEvent(r))
	return nil
}

// IsRetryable reports whether a new payment attempt may be started. Only a
// failed attempt qualifies; an open one must be voided first.
func (r *ServiceRequest) IsRetryable() bool {
	return r.Status == StatusPaymentFailed && r.Payment.Status == PaymentFailed
}

// HasOpenAttempt reports whether the current attempt may still be paid
func (r *ServiceRequest) HasOpenAttempt() bool {
	return r.Status == StatusPaymentPending && r.Payment.Status == PaymentPending && r.Payment.TransactionID != ""
}

// IsSupersededAttempt reports whether a gateway outcome belongs to an attempt
// that a retry has already replaced. Without an attempt number the transaction
// id decides.
func (r *ServiceRequest) IsSupersededAttempt(attempt int, transactionID string) bool {
	if attempt > 0 {
		return attempt != r.Payment.Attempts
	}
	return transactionID != "" && r.Payment.TransactionID != "" && transactionID != r.Payment.TransactionID
}

// StartPaymentAttempt opens a new payment attempt on the same request.
// The reference number is unchanged.
func (r *ServiceRequest) StartPaymentAttempt(at time.Time) error {
	if !r.IsRetryable() {
		return ErrNotRetryable
	}
	r.Payment.Attempts++
	r.Payment.Status = PaymentPending
	r.Payment.TransactionID = ""
	r.Payment.FailureReason = ""
	r.Status = StatusPaymentPending
	r.appendTimeline(StatusPaymentPending, fmt.Sprintf("Payment retry initiated (attempt %d).", r.Payment.Attempts), at.UTC())
	return nil
}

// MarkRefunded records a refund of a completed payment
func (r *ServiceRequest) MarkRefunded(at time.Time) error {
	if r.Payment.Status == PaymentRefunded {
		return nil
	}
	if r.Payment.Status != PaymentCompleted {
		return shared.NewDomainError("INVALID_STATE", "Only completed payments can be refunded")
	}
	r.Payment.Status = PaymentRefunded
	r.Status = StatusRefunded
	r.appendTimeline(StatusRefunded, "Payment refunded.", at.UTC())
	r.RecordEvent(NewPaymentRefundedEvent(r))
	return nil
}

// StartWork moves a paid request into progress
func (r *ServiceRequest) StartWork(at time.Time) error {
	if r.Status != StatusPaid {
		return shared.NewDomainError("INVALID_STATE", "Only paid requests can be started")
	}
	return r.changeStatus(StatusInProgress, "A professional has started working on your request.", at)
}

// Complete marks the service as delivered
func (r *ServiceRequest) Complete(at time.Time) error {
	if r.Status != StatusInProgress {
		return shared.NewDomainError("INVALID_STATE", "Only in-progress requests can be completed")
	}
	return r.changeStatus(StatusCompleted, "Service delivered.", at)
}

// Cancel cancels a request that has not reached a terminal state
func (r *ServiceRequest) Cancel(reason string, at time.Time) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Request can no longer be cancelled")
	}
	desc := "Request cancelled."
	if reason = strings.TrimSpace(reason); reason != "" {
		desc = "Request cancelled: " + reason
	}
	return r.changeStatus(StatusCancelled, desc, at)
}

// EstimatedNextStep describes what happens next for the current status
func (r *ServiceRequest) EstimatedNextStep() string {
	if r.Status == StatusCancelled && r.Payment.Status == PaymentCompleted {
		return "Your payment will be refunded. Refunds usually reach your account within 5 to 7 business days."
	}
	return r.Status.NextStep()
}

// DisplayState infers what the customer should see given an optional gateway status signal
func (r *ServiceRequest) DisplayState(urlStatus string) DisplayState {
	return InferDisplayState(urlStatus, r.Payment.Status, r.Status)
}

func (r *ServiceRequest) changeStatus(to Status, description string, at time.Time) error {
	from := r.Status
	r.Status = to
	r.appendTimeline(to, description, at.UTC())
	r.RecordEvent(NewStatusChangedEvent(r, from, to))
	return nil
}

func (r *ServiceRequest) appendTimeline(status Status, description string, at time.Time) {
	r.Timeline = append(r.Timeline, TimelineItem{
		Status:      status,
		Label:       status.Label(),
		Timestamp:   at,
		Description: description,
	})
	r.UpdatedAt = at
}

// Repository persists service requests
type Repository interface {
	Save(ctx context.Context, request *ServiceRequest) error
	FindByReference(ctx context.Context, referenceNumber string) (*ServiceRequest, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*ServiceRequest, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]ServiceRequest, int64, error)
}

// ReferenceGenerator issues new reference numbers
type ReferenceGenerator interface {
	Next(ctx context.Context) (string, error)
}
