// Package purchase runs the service purchase flow: request creation, payment
// handoff, gateway reconciliation and fulfilment.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/bhavan/backend/internal/domain/servicecatalog"
	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/logger"
	"github.com/bhavan/backend/internal/infrastructure/printing"
	"github.com/bhavan/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	idempotencyKeyPrefix = "purchase:"
	gatewayEventPrefix   = "gateway-event:"
	defaultCurrency      = "INR"
)

// Config holds the purchase flow settings
type Config struct {
	DefaultCurrency string
	PublicBaseURL   string
	SuccessPath     string
	CancelPath      string
	IdempotencyTTL  time.Duration
}

// Dependencies are the collaborators of Service. Gateway, Idempotency,
// Publisher and Receipts may be nil.
type Dependencies struct {
	Services    servicecatalog.ServiceRepository
	Requests    servicerequest.Repository
	References  servicerequest.ReferenceGenerator
	Gateway     servicerequest.PaymentGateway
	Idempotency shared.IdempotencyStore
	Publisher   shared.EventPublisher
	Receipts    printing.ReceiptRenderer
}

// PaymentInitiationError is returned when the request was stored but the gateway
// refused the payment. The reference number stays valid for a retry.
type PaymentInitiationError struct {
	RequestID       uuid.UUID
	ReferenceNumber string
	Err             error
}

// Error returns the gateway's user-facing message
func (e *PaymentInitiationError) Error() string {
	return gatewayMessage(e.Err)
}

// Unwrap returns the gateway error
func (e *PaymentInitiationError) Unwrap() error {
	return e.Err
}

// Service implements the purchase operations
type Service struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a purchase service
func NewService(deps Dependencies, cfg Config, log *zap.Logger) *Service {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = defaultCurrency
	}
	if cfg.SuccessPath == "" {
		cfg.SuccessPath = "/services/confirmation"
	}
	if cfg.CancelPath == "" {
		cfg.CancelPath = cfg.SuccessPath
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = shared.DefaultIdempotencyTTL
	}
	if deps.Receipts == nil {
		deps.Receipts = printing.DisabledRenderer{}
	}
	return &Service{
		deps:   deps,
		cfg:    cfg,
		logger: log.Named("purchase"),
		now:    time.Now,
	}
}

// InitiatePurchase creates the service request and a payment intent for it.
// The gateway call is never retried here; a failure leaves the request in
// payment_failed so the customer can retry by reference number.
func (s *Service) InitiatePurchase(ctx context.Context, req InitiatePurchaseRequest) (result *InitiatePurchaseResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "purchase", "initiate", attribute.String("service", req.ServiceID))
	defer func() { telemetry.EndSpan(span, err) }()
	log := logger.WithTraceContext(ctx, s.logger)

	svc, err := s.findService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	tierID, err := parseOptionalUUID(req.ServiceTierID, "serviceTierId")
	if err != nil {
		return nil, err
	}
	price, tier, err := svc.PriceFor(tierID)
	if err != nil {
		return nil, err
	}

	affiliate := attribution.Normalize(strings.TrimSpace(req.AffiliateCode), func(candidate string) {
		log.Warn("Invalid affiliate code on purchase, using sentinel", zap.String("affiliate_code", logger.Truncate(candidate, 120)))
	})

	release, err := s.claimIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	ref, err := s.deps.References.Next(ctx)
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to issue reference number: %w", err)
	}
	currencyCode := svc.Currency
	if currencyCode == "" {
		currencyCode = s.cfg.DefaultCurrency
	}
	params := servicerequest.NewParams{
		ReferenceNumber: ref,
		ServiceID:       svc.ID,
		ServiceName:     svc.Name,
		TierID:          tierID,
		Customer: servicerequest.Customer{
			FullName:     req.Customer.FullName,
			Email:        req.Customer.Email,
			Phone:        req.Customer.Phone,
			Requirements: req.Customer.Requirements,
		},
		AffiliateID: affiliate.String(),
		Amount:      price,
		Currency:    currencyCode,
	}
	if tier != nil {
		params.TierName = tier.Name
	}
	request, err := servicerequest.NewServiceRequest(params)
	if err != nil {
		release()
		return nil, err
	}
	if err := s.deps.Requests.Save(ctx, request); err != nil {
		release()
		return nil, fmt.Errorf("failed to save service request: %w", err)
	}
	span.SetAttributes(attribute.String("reference_number", request.ReferenceNumber))

	intent, gwErr := s.createPaymentIntent(ctx, request)
	if gwErr != nil {
		log.Warn("Payment initiation failed",
			zap.String("reference_number", request.ReferenceNumber),
			zap.Error(gwErr))
		if err := request.MarkPaymentFailed(gatewayMessage(gwErr), s.now()); err != nil {
			return nil, err
		}
		if err := s.save(ctx, request); err != nil {
			return nil, err
		}
		return nil, &PaymentInitiationError{RequestID: request.ID, ReferenceNumber: request.ReferenceNumber, Err: gwErr}
	}

	request.AttachTransaction(intent.Gateway, intent.ID)
	if err := s.save(ctx, request); err != nil {
		return nil, err
	}

	log.Info("Service request created",
		zap.String("reference_number", request.ReferenceNumber),
		zap.String("service", svc.Slug),
		zap.String("affiliate_id", request.AffiliateID))

	return &InitiatePurchaseResult{
		RequestID:       request.ID,
		ReferenceNumber: request.ReferenceNumber,
		PaymentIntent: PaymentIntentDTO{
			ClientSecret: intent.ClientSecret,
			Amount:       request.Payment.Amount,
			Currency:     request.Payment.Currency,
			Gateway:      intent.Gateway,
		},
	}, nil
}

func (s *Service) createPaymentIntent(ctx context.Context, r *servicerequest.ServiceRequest) (*servicerequest.PaymentIntent, error) {
	if s.deps.Gateway == nil {
		return nil, &servicerequest.GatewayError{Message: "Online payments are currently unavailable", Err: servicerequest.ErrGatewayNotConfigured}
	}
	intent, err := s.deps.Gateway.CreatePaymentIntent(ctx, servicerequest.PaymentIntentRequest{
		ReferenceNumber: r.ReferenceNumber,
		Amount:          r.Payment.Amount,
		Currency:        r.Payment.Currency,
		CustomerEmail:   r.Customer.Email,
		Description:     r.ServiceName,
		Metadata:        paymentMetadata(r),
		IdempotencyKey:  attemptKey(r),
	})
	if err != nil {
		return nil, err
	}
	if intent.Gateway == "" {
		intent.Gateway = servicerequest.GatewayStripe
	}
	return intent, nil
}

// GetByReference returns the request with its timeline and next step
func (s *Service) GetByReference(ctx context.Context, ref string) (*RequestView, error) {
	r, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &RequestView{
		Request:           ToRequestDTO(r),
		Timeline:          ToTimelineDTO(r.Timeline),
		EstimatedNextStep: r.EstimatedNextStep(),
	}, nil
}

// Confirmation infers the display state from the record and the redirect status
func (s *Service) Confirmation(ctx context.Context, ref, urlStatus string) (*ConfirmationView, error) {
	r, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	state := r.DisplayState(urlStatus)
	return &ConfirmationView{
		Request:        ToRequestDTO(r),
		DisplayState:   string(state),
		RetryAvailable: state == servicerequest.DisplayFailed && s.canRetry(r),
		NextStep:       r.EstimatedNextStep(),
	}, nil
}

// Receipt renders the plain-text receipt
func (s *Service) Receipt(ctx context.Context, ref string) (*ReceiptFile, error) {
	r, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &ReceiptFile{
		FileName:    servicerequest.ReceiptFileName(r.ReferenceNumber),
		ContentType: "text/plain; charset=utf-8",
		Content:     []byte(servicerequest.GenerateReceipt(r)),
	}, nil
}

// ErrReceiptPDFUnavailable is returned when PDF rendering is not configured
var ErrReceiptPDFUnavailable = shared.WrapDomainError("RECEIPT_PDF_UNAVAILABLE", "PDF receipts are not available", printing.ErrRenderingDisabled)

// ReceiptPDF renders the same receipt text to PDF
func (s *Service) ReceiptPDF(ctx context.Context, ref string) (file *ReceiptFile, err error) {
	ctx, span := telemetry.StartSpan(ctx, "purchase", "receipt_pdf")
	defer func() { telemetry.EndSpan(span, err) }()

	r, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	result, err := s.deps.Receipts.RenderReceiptPDF(ctx, "Bhavan receipt "+r.ReferenceNumber, servicerequest.GenerateReceipt(r))
	if err != nil {
		if errors.Is(err, printing.ErrRenderingDisabled) {
			return nil, ErrReceiptPDFUnavailable
		}
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return &ReceiptFile{
		FileName:    servicerequest.ReceiptPDFFileName(r.ReferenceNumber),
		ContentType: "application/pdf",
		Content:     result.PDFData,
	}, nil
}

func (s *Service) findService(ctx context.Context, idOrSlug string) (*servicecatalog.Service, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	var (
		svc *servicecatalog.Service
		err error
	)
	if id, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		svc, err = s.deps.Services.FindByID(ctx, id)
	} else {
		svc, err = s.deps.Services.FindBySlug(ctx, strings.ToLower(idOrSlug))
	}
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NewDomainError("NOT_FOUND", "Service not found")
	}
	return svc, err
}

// load fetches a request by reference; unknown and malformed references are both REFERENCE_NOT_FOUND
func (s *Service) load(ctx context.Context, ref string) (*servicerequest.ServiceRequest, error) {
	ref = servicerequest.NormalizeReference(ref)
	if !servicerequest.IsValidReference(ref) {
		return nil, servicerequest.ErrReferenceNotFound
	}
	r, err := s.deps.Requests.FindByReference(ctx, ref)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, servicerequest.ErrReferenceNotFound
	}
	return r, err
}

func (s *Service) save(ctx context.Context, r *servicerequest.ServiceRequest) error {
	if err := s.deps.Requests.Save(ctx, r); err != nil {
		return fmt.Errorf("failed to save service request: %w", err)
	}
	if err := shared.PublishAndClear(ctx, s.deps.Publisher, r); err != nil {
		logger.WithTraceContext(ctx, s.logger).Error("Failed to publish service request events",
			zap.String("reference_number", r.ReferenceNumber), zap.Error(err))
	}
	return nil
}

// claimIdempotencyKey marks key as used. The returned release undoes the claim
// for failures that leave no request behind, so the client can resend.
func (s *Service) claimIdempotencyKey(ctx context.Context, key string) (release func(), err error) {
	release = func() {}
	key = strings.TrimSpace(key)
	if key == "" || s.deps.Idempotency == nil {
		return release, nil
	}
	if len(key) > 200 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Idempotency-Key is too long")
	}
	key = idempotencyKeyPrefix + key
	fresh, err := s.deps.Idempotency.MarkProcessed(ctx, key, s.cfg.IdempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if !fresh {
		return nil, shared.NewDomainError("CONFLICT", "This purchase was already submitted")
	}
	return func() {
		if err := s.deps.Idempotency.Release(context.WithoutCancel(ctx), key); err != nil {
			logger.WithTraceContext(ctx, s.logger).Error("Failed to release idempotency key", zap.Error(err))
		}
	}, nil
}

func paymentMetadata(r *servicerequest.ServiceRequest) map[string]string {
	return map[string]string{
		servicerequest.MetadataReferenceNumber: r.ReferenceNumber,
		servicerequest.MetadataAffiliateID:     r.AffiliateID,
		servicerequest.MetadataAttempt:         strconv.Itoa(r.Payment.Attempts),
	}
}

func attemptKey(r *servicerequest.ServiceRequest) string {
	return fmt.Sprintf("%s-attempt-%d", r.ReferenceNumber, r.Payment.Attempts)
}

func gatewayMessage(err error) string {
	var gwErr *servicerequest.GatewayError
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return err.Error()
}

func parseOptionalUUID(raw, field string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid "+field)
	}
	return &id, nil
}
