package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/bhavan/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// Stripe event types the gateway understands
const (
	eventPaymentIntentSucceeded = "payment_intent.succeeded"
	eventPaymentIntentFailed    = "payment_intent.payment_failed"
	eventChargeRefunded         = "charge.refunded"
)

var minorUnitFactor = decimal.NewFromInt(100)

// StripeGateway implements servicerequest.PaymentGateway on top of the Stripe API
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	currency      string
	logger        *zap.Logger
}

// StripeOption configures a StripeGateway
type StripeOption func(*stripeOptions)

type stripeOptions struct {
	backends *stripe.Backends
}

// WithBackends routes API calls through custom backends, e.g. a local stub server
func WithBackends(backends *stripe.Backends) StripeOption {
	return func(o *stripeOptions) {
		o.backends = backends
	}
}

// NewStripeGateway creates a Stripe gateway. It returns
// servicerequest.ErrGatewayNotConfigured when no secret key is set.
func NewStripeGateway(cfg config.StripeConfig, logger *zap.Logger, opts ...StripeOption) (*StripeGateway, error) {
	if !cfg.Configured() {
		return nil, servicerequest.ErrGatewayNotConfigured
	}
	var o stripeOptions
	for _, opt := range opts {
		opt(&o)
	}

	return &StripeGateway{
		api:           client.New(cfg.SecretKey, o.backends),
		webhookSecret: cfg.WebhookSecret,
		currency:      strings.ToLower(cfg.Currency),
		logger:        logger.Named("stripe"),
	}, nil
}

// ToMinorUnits converts a decimal amount to the smallest currency unit
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitFactor).Round(0).IntPart()
}

// FromMinorUnits converts the smallest currency unit back to a decimal amount
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(minorUnitFactor)
}

func (g *StripeGateway) currencyFor(code string) string {
	if code != "" {
		return strings.ToLower(code)
	}
	return g.currency
}

// CreatePaymentIntent creates a PaymentIntent for the purchase amount
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req servicerequest.PaymentIntentRequest) (*servicerequest.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(ToMinorUnits(req.Amount)),
		Currency: stripe.String(g.currencyFor(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.Metadata = withReference(req.Metadata, req.ReferenceNumber)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		g.logger.Warn("Failed to create payment intent",
			zap.String("reference_number", req.ReferenceNumber),
			zap.Error(err))
		return nil, gatewayError("failed to create payment intent", err)
	}

	g.logger.Info("Created payment intent",
		zap.String("reference_number", req.ReferenceNumber),
		zap.String("payment_intent", pi.ID))

	return &servicerequest.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       FromMinorUnits(pi.Amount),
		Currency:     strings.ToUpper(string(pi.Currency)),
		Gateway:      servicerequest.GatewayStripe,
	}, nil
}

// CreateCheckoutSession creates a hosted checkout page for a payment retry
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req servicerequest.CheckoutRequest) (*servicerequest.CheckoutSession, error) {
	metadata := withReference(req.Metadata, req.ReferenceNumber)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.ReferenceNumber),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(g.currencyFor(req.Currency)),
					UnitAmount: stripe.Int64(ToMinorUnits(req.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ServiceName),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.Metadata = metadata
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		g.logger.Warn("Failed to create checkout session",
			zap.String("reference_number", req.ReferenceNumber),
			zap.Error(err))
		return nil, gatewayError("failed to create checkout session", err)
	}

	g.logger.Info("Created checkout session",
		zap.String("reference_number", req.ReferenceNumber),
		zap.String("session_id", sess.ID))
	return &servicerequest.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// Refund refunds the full amount of a completed PaymentIntent
func (g *StripeGateway) Refund(ctx context.Context, transactionID string, idempotencyKey string) (*servicerequest.RefundResult, error) {
	if transactionID == "" {
		return nil, errors.New("stripe: refund requires a payment intent id")
	}
	params := &stripe.RefundParams{PaymentIntent: stripe.String(transactionID)}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	r, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, gatewayError("failed to create refund", err)
	}
	g.logger.Info("Created refund", zap.String("payment_intent", transactionID), zap.String("refund_id", r.ID))
	return &servicerequest.RefundResult{ID: r.ID, Status: string(r.Status)}, nil
}

// ParseEvent verifies a webhook signature and normalizes the event.
// Events the purchase flow does not act on come back as GatewayEventIgnored.
func (g *StripeGateway) ParseEvent(payload []byte, signature string) (*servicerequest.GatewayEvent, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("stripe: webhook secret not configured: %w", servicerequest.ErrGatewayNotConfigured)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("stripe: %v: %w", err, servicerequest.ErrGatewayInvalidCallback)
	}
	return normalizeEvent(event)
}

// LookupPayment reports the outcome of a PaymentIntent ("pi_") or Checkout
// Session ("cs_") that has not been settled by a webhook. Open payments yield nil.
func (g *StripeGateway) LookupPayment(ctx context.Context, transactionID string) (*servicerequest.GatewayEvent, error) {
	switch {
	case strings.HasPrefix(transactionID, "pi_"):
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		pi, err := g.api.PaymentIntents.Get(transactionID, params)
		if err != nil {
			return nil, gatewayError("failed to fetch payment intent", err)
		}
		return intentOutcome(pi, pi.Metadata[servicerequest.MetadataReferenceNumber]), nil

	case strings.HasPrefix(transactionID, "cs_"):
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		params.AddExpand("payment_intent")
		sess, err := g.api.CheckoutSessions.Get(transactionID, params)
		if err != nil {
			return nil, gatewayError("failed to fetch checkout session", err)
		}
		ref := sess.ClientReferenceID
		if pi := sess.PaymentIntent; pi != nil && pi.Status != "" {
			if out := intentOutcome(pi, ref); out != nil {
				return out, nil
			}
		}
		if sess.Status == stripe.CheckoutSessionStatusExpired {
			return &servicerequest.GatewayEvent{
				ID:              lookupEventID(sess.ID, "expired"),
				Type:            servicerequest.GatewayEventPaymentFailed,
				RawType:         "checkout.session.expired",
				ReferenceNumber: ref,
				TransactionID:   sess.ID,
				Attempt:         servicerequest.AttemptFromMetadata(sess.Metadata),
				FailureMessage:  "Payment session expired",
			}, nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("stripe: cannot look up transaction %q", transactionID)
}

// CancelPayment voids an open PaymentIntent or expires an open Checkout
// Session. Stripe refuses when the payment has already succeeded.
func (g *StripeGateway) CancelPayment(ctx context.Context, transactionID string) error {
	switch {
	case strings.HasPrefix(transactionID, "pi_"):
		params := &stripe.PaymentIntentCancelParams{}
		params.Context = ctx
		if _, err := g.api.PaymentIntents.Cancel(transactionID, params); err != nil {
			return gatewayError("failed to cancel payment intent", err)
		}
	case strings.HasPrefix(transactionID, "cs_"):
		params := &stripe.CheckoutSessionExpireParams{}
		params.Context = ctx
		if _, err := g.api.CheckoutSessions.Expire(transactionID, params); err != nil {
			return gatewayError("failed to expire checkout session", err)
		}
	default:
		return fmt.Errorf("stripe: cannot cancel transaction %q", transactionID)
	}
	g.logger.Info("Cancelled open payment", zap.String("transaction_id", transactionID))
	return nil
}

func intentOutcome(pi *stripe.PaymentIntent, ref string) *servicerequest.GatewayEvent {
	out := &servicerequest.GatewayEvent{
		ReferenceNumber: ref,
		TransactionID:   pi.ID,
		Attempt:         servicerequest.AttemptFromMetadata(pi.Metadata),
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		out.Type = servicerequest.GatewayEventPaymentSucceeded
		out.RawType = eventPaymentIntentSucceeded
	case stripe.PaymentIntentStatusCanceled:
		out.Type = servicerequest.GatewayEventPaymentFailed
		out.RawType = "payment_intent.canceled"
		out.FailureMessage = "Payment was cancelled"
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// a fresh intent also requires a payment method; only a recorded error is a failure
		if pi.LastPaymentError == nil {
			return nil
		}
		out.Type = servicerequest.GatewayEventPaymentFailed
		out.RawType = eventPaymentIntentFailed
		out.FailureMessage = pi.LastPaymentError.Msg
	default:
		return nil
	}
	out.ID = lookupEventID(pi.ID, string(pi.Status))
	return out
}

func lookupEventID(transactionID, status string) string {
	return "lookup:" + transactionID + ":" + status
}

func normalizeEvent(event stripe.Event) (*servicerequest.GatewayEvent, error) {
	out := &servicerequest.GatewayEvent{
		ID:         event.ID,
		Type:       servicerequest.GatewayEventIgnored,
		RawType:    string(event.Type),
		OccurredAt: time.Unix(event.Created, 0).UTC(),
	}
	if event.Data == nil {
		return out, nil
	}

	switch string(event.Type) {
	case eventPaymentIntentSucceeded, eventPaymentIntentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("stripe: failed to decode payment intent: %w", err)
		}
		out.TransactionID = pi.ID
		out.ReferenceNumber = pi.Metadata[servicerequest.MetadataReferenceNumber]
		out.Attempt = servicerequest.AttemptFromMetadata(pi.Metadata)
		if string(event.Type) == eventPaymentIntentSucceeded {
			out.Type = servicerequest.GatewayEventPaymentSucceeded
		} else {
			out.Type = servicerequest.GatewayEventPaymentFailed
			if pi.LastPaymentError != nil {
				out.FailureMessage = pi.LastPaymentError.Msg
			}
		}
	case eventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("stripe: failed to decode charge: %w", err)
		}
		out.Type = servicerequest.GatewayEventRefunded
		out.ReferenceNumber = ch.Metadata[servicerequest.MetadataReferenceNumber]
		if ch.PaymentIntent != nil {
			out.TransactionID = ch.PaymentIntent.ID
		}
	}
	return out, nil
}

func withReference(metadata map[string]string, ref string) map[string]string {
	out := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out[servicerequest.MetadataReferenceNumber] = ref
	return out
}

func gatewayError(action string, err error) error {
	msg := "Payment could not be processed. Please try again."
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		msg = se.Msg
	}
	return &servicerequest.GatewayError{
		Message: msg,
		Err:     fmt.Errorf("stripe: %s: %w", action, err),
	}
}

var (
	_ servicerequest.PaymentGateway   = (*StripeGateway)(nil)
	_ servicerequest.PaymentLookup    = (*StripeGateway)(nil)
	_ servicerequest.PaymentCanceller = (*StripeGateway)(nil)
)
