package purchase

import (
	"time"

	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerInput is the contact block of a purchase form
type CustomerInput struct {
	FullName     string `json:"fullName" binding:"required,max=200"`
	Email        string `json:"email" binding:"required,email"`
	Phone        string `json:"phone" binding:"required,phone"`
	Requirements string `json:"requirements" binding:"max=2000"`
}

// InitiatePurchaseRequest starts a purchase. ServiceID accepts a UUID or a slug.
type InitiatePurchaseRequest struct {
	ServiceID      string        `json:"serviceId" binding:"required"`
	ServiceTierID  string        `json:"serviceTierId"`
	Customer       CustomerInput `json:"customer" binding:"required"`
	AffiliateCode  string        `json:"affiliateCode"`
	IdempotencyKey string        `json:"-"`
}

// PaymentIntentDTO is the one-shot gateway handoff
type PaymentIntentDTO struct {
	ClientSecret string          `json:"clientSecret"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Gateway      string          `json:"gateway"`
}

// InitiatePurchaseResult is returned once the request exists and a payment intent was created
type InitiatePurchaseResult struct {
	RequestID       uuid.UUID        `json:"requestId"`
	ReferenceNumber string           `json:"referenceNumber"`
	PaymentIntent   PaymentIntentDTO `json:"paymentIntent"`
}

// RetryPaymentRequest asks for a new payment session on an existing request
type RetryPaymentRequest struct {
	ReferenceNumber string `json:"referenceNumber" binding:"required"`
}

// RetryPaymentResult carries the hosted payment page to redirect to
type RetryPaymentResult struct {
	ReferenceNumber string `json:"referenceNumber"`
	PaymentURL      string `json:"paymentUrl"`
}

// ServiceDTO identifies the purchased service and tier
type ServiceDTO struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	TierID   *uuid.UUID `json:"tierId,omitempty"`
	TierName string     `json:"tierName,omitempty"`
}

// CustomerDTO is the stored contact block
type CustomerDTO struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Requirements string `json:"requirements,omitempty"`
}

// PaymentDTO is the payment sub-record
type PaymentDTO struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	StatusLabel   string          `json:"statusLabel"`
	Gateway       string          `json:"gateway,omitempty"`
	TransactionID string          `json:"transactionId,omitempty"`
	Attempts      int             `json:"attempts"`
	FailureReason string          `json:"failureReason,omitempty"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// RequestDTO is a service request as shown to customers and admins
type RequestDTO struct {
	ID              uuid.UUID   `json:"id"`
	ReferenceNumber string      `json:"referenceNumber"`
	Service         ServiceDTO  `json:"service"`
	Customer        CustomerDTO `json:"customer"`
	Payment         PaymentDTO  `json:"payment"`
	Status          string      `json:"status"`
	StatusLabel     string      `json:"statusLabel"`
	AffiliateID     string      `json:"affiliateId,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// TimelineItemDTO is one history entry
type TimelineItemDTO struct {
	Status      string    `json:"status"`
	Label       string    `json:"label"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// RequestView is the tracking page payload
type RequestView struct {
	Request           RequestDTO        `json:"request"`
	Timeline          []TimelineItemDTO `json:"timeline"`
	EstimatedNextStep string            `json:"estimatedNextStep"`
}

// ConfirmationView is the confirmation page payload
type ConfirmationView struct {
	Request        RequestDTO `json:"request"`
	DisplayState   string     `json:"displayState"`
	RetryAvailable bool       `json:"retryAvailable"`
	NextStep       string     `json:"estimatedNextStep"`
}

// ReceiptFile is a downloadable receipt
type ReceiptFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ListRequestsQuery filters the admin request list
type ListRequestsQuery struct {
	Page          int    `form:"page"`
	PageSize      int    `form:"page_size"`
	OrderBy       string `form:"order_by"`
	OrderDir      string `form:"order_dir"`
	Search        string `form:"search"`
	Status        string `form:"status"`
	PaymentStatus string `form:"payment_status"`
	AffiliateID   string `form:"affiliate_id"`
}

// Admin actions on a request
const (
	ActionStart    = "start"
	ActionComplete = "complete"
	ActionCancel   = "cancel"
)

// AdvanceStatusRequest moves a request through fulfilment
type AdvanceStatusRequest struct {
	Action string `json:"action" binding:"required,oneof=start complete cancel"`
	Reason string `json:"reason" binding:"max=500"`
}

// ToRequestDTO converts the aggregate to its API shape
func ToRequestDTO(r *servicerequest.ServiceRequest) RequestDTO {
	return RequestDTO{
		ID:              r.ID,
		ReferenceNumber: r.ReferenceNumber,
		Service: ServiceDTO{
			ID:       r.ServiceID,
			Name:     r.ServiceName,
			TierID:   r.TierID,
			TierName: r.TierName,
		},
		Customer: CustomerDTO{
			FullName:     r.Customer.FullName,
			Email:        r.Customer.Email,
			Phone:        r.Customer.Phone,
			Requirements: r.Customer.Requirements,
		},
		Payment: PaymentDTO{
			Amount:        r.Payment.Amount,
			Currency:      r.Payment.Currency,
			Status:        string(r.Payment.Status),
			StatusLabel:   r.Payment.Status.Label(),
			Gateway:       r.Payment.Gateway,
			TransactionID: r.Payment.TransactionID,
			Attempts:      r.Payment.Attempts,
			FailureReason: r.Payment.FailureReason,
			CompletedAt:   r.Payment.CompletedAt,
		},
		Status:      string(r.Status),
		StatusLabel: r.Status.Label(),
		AffiliateID: r.AffiliateID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ToTimelineDTO keeps the stored chronological order
func ToTimelineDTO(items []servicerequest.TimelineItem) []TimelineItemDTO {
	out := make([]TimelineItemDTO, len(items))
	for i, item := range items {
		out[i] = TimelineItemDTO{
			Status:      string(item.Status),
			Label:       item.Label,
			Timestamp:   item.Timestamp,
			Description: item.Description,
		}
	}
	return out
}
