package servicerequest

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway errors
var (
	ErrGatewayNotConfigured   = errors.New("payment: gateway not configured")
	ErrGatewayInvalidCallback = errors.New("payment: invalid callback signature")
)

// GatewayStripe names the Stripe gateway in payment records
const GatewayStripe = "stripe"

// Metadata keys attached to every gateway object created for a request
const (
	MetadataReferenceNumber = "reference_number"
	MetadataAffiliateID     = "affiliate_id"
	MetadataAttempt         = "attempt"
)

// AttemptFromMetadata reads the attempt number stamped on a gateway object.
// Zero means unknown.
func AttemptFromMetadata(metadata map[string]string) int {
	n, err := strconv.Atoi(metadata[MetadataAttempt])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// PaymentIntentRequest asks the gateway for a client-side payment handle
type PaymentIntentRequest struct {
	ReferenceNumber string
	Amount          decimal.Decimal
	Currency        string
	CustomerEmail   string
	Description     string
	Metadata        map[string]string
	IdempotencyKey  string
}

// PaymentIntent is the transient gateway handoff returned to the browser
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Amount       decimal.Decimal
	Currency     string
	Gateway      string
}

// CheckoutRequest asks the gateway for a hosted payment page
type CheckoutRequest struct {
	ReferenceNumber string
	ServiceName     string
	Amount          decimal.Decimal
	Currency        string
	CustomerEmail   string
	SuccessURL      string
	CancelURL       string
	Metadata        map[string]string
	IdempotencyKey  string
}

// CheckoutSession is a hosted payment page
type CheckoutSession struct {
	ID  string
	URL string
}

// RefundResult describes a refund accepted by the gateway
type RefundResult struct {
	ID     string
	Status string
}

// GatewayEventType is the normalized kind of a gateway notification
type GatewayEventType string

const (
	GatewayEventPaymentSucceeded GatewayEventType = "payment_succeeded"
	GatewayEventPaymentFailed    GatewayEventType = "payment_failed"
	GatewayEventRefunded         GatewayEventType = "refunded"
	GatewayEventIgnored          GatewayEventType = "ignored"
)

// GatewayEvent is a verified, normalized gateway notification
type GatewayEvent struct {
	ID              string
	Type            GatewayEventType
	RawType         string
	ReferenceNumber string
	TransactionID   string
	// Attempt is the payment attempt the gateway object was created for, 0 if unknown
	Attempt        int
	FailureMessage string
	OccurredAt     time.Time
}

// PaymentGateway is the payment provider used for purchases
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	Refund(ctx context.Context, transactionID string, idempotencyKey string) (*RefundResult, error)
	ParseEvent(payload []byte, signature string) (*GatewayEvent, error)
}

// PaymentLookup is implemented by gateways that can report the current state
// of a payment. A nil event means the payment is still open.
type PaymentLookup interface {
	LookupPayment(ctx context.Context, transactionID string) (*GatewayEvent, error)
}

// PaymentCanceller is implemented by gateways that can void an open payment
// so that a replacement attempt cannot charge the customer twice.
type PaymentCanceller interface {
	CancelPayment(ctx context.Context, transactionID string) error
}

// GatewayError carries the provider's user-facing message so it can be shown verbatim
type GatewayError struct {
	Message string
	Err     error
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying provider error
func (e *GatewayError) Unwrap() error {
	return e.Err
}
