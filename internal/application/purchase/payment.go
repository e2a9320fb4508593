package purchase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/logger"
	"github.com/bhavan/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RetryPayment opens a new payment attempt on a failed request and returns the
// hosted payment page. An attempt that is still open is cancelled at the
// gateway first; if that fails the request is left untouched. The reference
// number never changes.
func (s *Service) RetryPayment(ctx context.Context, ref string) (result *RetryPaymentResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "purchase", "retry_payment", attribute.String("reference_number", ref))
	defer func() { telemetry.EndSpan(span, err) }()
	log := logger.WithTraceContext(ctx, s.logger)

	r, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !s.canRetry(r) {
		return nil, servicerequest.ErrNotRetryable
	}
	if s.deps.Gateway == nil {
		return nil, &servicerequest.GatewayError{Message: "Online payments are currently unavailable", Err: servicerequest.ErrGatewayNotConfigured}
	}
	if r.HasOpenAttempt() {
		if err := s.cancelOpenAttempt(ctx, r); err != nil {
			return nil, err
		}
	}
	if err := r.StartPaymentAttempt(s.now()); err != nil {
		return nil, err
	}

	session, gwErr := s.deps.Gateway.CreateCheckoutSession(ctx, servicerequest.CheckoutRequest{
		ReferenceNumber: r.ReferenceNumber,
		ServiceName:     r.ServiceName,
		Amount:          r.Payment.Amount,
		Currency:        r.Payment.Currency,
		CustomerEmail:   r.Customer.Email,
		SuccessURL:      s.returnURL(r, s.cfg.SuccessPath, servicerequest.URLStatusSuccess),
		CancelURL:       s.returnURL(r, s.cfg.CancelPath, servicerequest.URLStatusFailed),
		Metadata:        paymentMetadata(r),
		IdempotencyKey:  attemptKey(r),
	})
	if gwErr != nil {
		log.Warn("Payment retry failed", zap.String("reference_number", r.ReferenceNumber), zap.Error(gwErr))
		if err := r.MarkPaymentFailed(gatewayMessage(gwErr), s.now()); err != nil {
			return nil, err
		}
		if err := s.save(ctx, r); err != nil {
			return nil, err
		}
		return nil, gwErr
	}

	r.AttachTransaction(servicerequest.GatewayStripe, session.ID)
	if err := s.save(ctx, r); err != nil {
		return nil, err
	}
	log.Info("Payment retry started",
		zap.String("reference_number", r.ReferenceNumber),
		zap.Int("attempt", r.Payment.Attempts))
	return &RetryPaymentResult{ReferenceNumber: r.ReferenceNumber, PaymentURL: session.URL}, nil
}

// canRetry reports whether RetryPayment would start a new attempt
func (s *Service) canRetry(r *servicerequest.ServiceRequest) bool {
	if r.IsRetryable() {
		return true
	}
	_, cancellable := s.deps.Gateway.(servicerequest.PaymentCanceller)
	return cancellable && r.HasOpenAttempt()
}

// cancelOpenAttempt voids the current gateway payment and records it as failed
func (s *Service) cancelOpenAttempt(ctx context.Context, r *servicerequest.ServiceRequest) error {
	canceller, ok := s.deps.Gateway.(servicerequest.PaymentCanceller)
	if !ok {
		return servicerequest.ErrNotRetryable
	}
	if err := canceller.CancelPayment(ctx, r.Payment.TransactionID); err != nil {
		logger.WithTraceContext(ctx, s.logger).Warn("Open payment could not be cancelled, retry refused",
			zap.String("reference_number", r.ReferenceNumber),
			zap.String("transaction_id", r.Payment.TransactionID),
			zap.Error(err))
		return &servicerequest.GatewayError{
			Message: "Your previous payment is still being processed. Please check its status before paying again.",
			Err:     err,
		}
	}
	return r.MarkPaymentFailed("Payment attempt cancelled for a retry", s.now())
}

// returnURL builds the gateway return navigation: <base><path>?ref=..&status=..,
// carrying the request's affiliate id.
func (s *Service) returnURL(r *servicerequest.ServiceRequest, path, status string) string {
	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	q := url.Values{}
	q.Set("ref", r.ReferenceNumber)
	q.Set("status", status)
	target := base + path + "?" + q.Encode()

	origin, err := url.Parse(base)
	if err != nil {
		return target
	}
	return attribution.PropagateID(attribution.AffiliateID(r.AffiliateID), origin, origin, target)
}

// HandleWebhook verifies a gateway notification and applies it
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.deps.Gateway == nil {
		return servicerequest.ErrGatewayNotConfigured
	}
	event, err := s.deps.Gateway.ParseEvent(payload, signature)
	if err != nil {
		return err
	}
	return s.HandleGatewayEvent(ctx, event)
}

// HandleGatewayEvent applies a verified gateway event. Each event id is applied
// at most once; events for unknown references are logged and dropped.
func (s *Service) HandleGatewayEvent(ctx context.Context, event *servicerequest.GatewayEvent) (err error) {
	if event == nil || event.Type == servicerequest.GatewayEventIgnored {
		return nil
	}
	ctx, span := telemetry.StartSpan(ctx, "purchase", "gateway_event",
		attribute.String("gateway.event_type", event.RawType),
		attribute.String("gateway.event_id", event.ID))
	defer func() { telemetry.EndSpan(span, err) }()
	log := logger.WithTraceContext(ctx, s.logger).With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.RawType))

	key := gatewayEventPrefix + event.ID
	if event.ID != "" && s.deps.Idempotency != nil {
		done, err := s.deps.Idempotency.IsProcessed(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to check gateway event: %w", err)
		}
		if done {
			log.Debug("Skipping already processed gateway event")
			return nil
		}
	}

	r, err := s.findForEvent(ctx, event)
	if err != nil {
		if errors.Is(err, servicerequest.ErrReferenceNotFound) {
			log.Warn("Gateway event for unknown service request",
				zap.String("reference_number", event.ReferenceNumber),
				zap.String("transaction_id", event.TransactionID))
			return nil
		}
		return err
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = s.now()
	}
	switch event.Type {
	case servicerequest.GatewayEventPaymentSucceeded:
		err = r.MarkPaymentCompleted(event.TransactionID, at)
	case servicerequest.GatewayEventPaymentFailed:
		if r.IsSupersededAttempt(event.Attempt, event.TransactionID) {
			log.Info("Ignoring failure of a superseded payment attempt",
				zap.String("reference_number", r.ReferenceNumber),
				zap.Int("event_attempt", event.Attempt),
				zap.Int("current_attempt", r.Payment.Attempts))
			s.markEventProcessed(ctx, key, event, log)
			return nil
		}
		err = r.MarkPaymentFailed(event.FailureMessage, at)
	case servicerequest.GatewayEventRefunded:
		err = r.MarkRefunded(at)
	}
	if err != nil {
		log.Warn("Gateway event not applicable", zap.String("reference_number", r.ReferenceNumber), zap.Error(err))
		return nil
	}
	if err := s.save(ctx, r); err != nil {
		return err
	}

	s.markEventProcessed(ctx, key, event, log)
	log.Info("Gateway event applied",
		zap.String("reference_number", r.ReferenceNumber),
		zap.String("status", string(r.Status)),
		zap.String("payment_status", string(r.Payment.Status)))
	return nil
}

func (s *Service) markEventProcessed(ctx context.Context, key string, event *servicerequest.GatewayEvent, log *zap.Logger) {
	if event.ID == "" || s.deps.Idempotency == nil {
		return
	}
	if _, err := s.deps.Idempotency.MarkProcessed(ctx, key, s.cfg.IdempotencyTTL); err != nil {
		log.Error("Failed to mark gateway event as processed", zap.Error(err))
	}
}

func (s *Service) findForEvent(ctx context.Context, event *servicerequest.GatewayEvent) (*servicerequest.ServiceRequest, error) {
	if event.ReferenceNumber != "" {
		r, err := s.load(ctx, event.ReferenceNumber)
		if err == nil || !errors.Is(err, servicerequest.ErrReferenceNotFound) || event.TransactionID == "" {
			return r, err
		}
	}
	if event.TransactionID == "" {
		return nil, servicerequest.ErrReferenceNotFound
	}
	r, err := s.deps.Requests.FindByTransactionID(ctx, event.TransactionID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, servicerequest.ErrReferenceNotFound
	}
	return r, err
}
