package purchase

import (
	"context"
	"fmt"
	"strings"

	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ListRequests returns a page of service requests for the back office
func (s *Service) ListRequests(ctx context.Context, q ListRequestsQuery) (shared.Paginated[RequestDTO], error) {
	filter := shared.Filter{
		Page:     q.Page,
		PageSize: q.PageSize,
		OrderBy:  q.OrderBy,
		OrderDir: q.OrderDir,
		Search:   q.Search,
		Filters:  map[string]interface{}{},
	}.Normalize()
	if q.Status != "" {
		filter.Filters["status"] = q.Status
	}
	if q.PaymentStatus != "" {
		filter.Filters["payment_status"] = q.PaymentStatus
	}
	if q.AffiliateID != "" {
		filter.Filters["affiliate_id"] = q.AffiliateID
	}

	requests, total, err := s.deps.Requests.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[RequestDTO]{}, err
	}
	items := make([]RequestDTO, len(requests))
	for i := range requests {
		items[i] = ToRequestDTO(&requests[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// AdvanceStatus applies a fulfilment action: start, complete or cancel
func (s *Service) AdvanceStatus(ctx context.Context, ref string, req AdvanceStatusRequest) (*RequestView, error) {
	r, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	now := s.now()
	switch strings.ToLower(req.Action) {
	case ActionStart:
		err = r.StartWork(now)
	case ActionComplete:
		err = r.Complete(now)
	case ActionCancel:
		err = r.Cancel(req.Reason, now)
	default:
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown action: "+req.Action)
	}
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, r); err != nil {
		return nil, err
	}
	logger.WithTraceContext(ctx, s.logger).Info("Service request status changed",
		zap.String("reference_number", r.ReferenceNumber),
		zap.String("action", req.Action),
		zap.String("admin_id", logger.GetAdminID(ctx)),
		zap.String("status", string(r.Status)))
	return &RequestView{
		Request:           ToRequestDTO(r),
		Timeline:          ToTimelineDTO(r.Timeline),
		EstimatedNextStep: r.EstimatedNextStep(),
	}, nil
}

// Refund refunds a completed payment through the gateway, then records it
func (s *Service) Refund(ctx context.Context, ref string) (*RequestView, error) {
	r, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if r.Payment.Status == servicerequest.PaymentRefunded {
		return nil, shared.NewDomainError("INVALID_STATE", "Payment has already been refunded")
	}
	if r.Payment.Status != servicerequest.PaymentCompleted {
		return nil, shared.NewDomainError("INVALID_STATE", "Only completed payments can be refunded")
	}
	if s.deps.Gateway == nil {
		return nil, servicerequest.ErrGatewayNotConfigured
	}

	refund, err := s.deps.Gateway.Refund(ctx, r.Payment.TransactionID, "refund-"+r.ReferenceNumber)
	if err != nil {
		return nil, err
	}
	if err := r.MarkRefunded(s.now()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, r); err != nil {
		return nil, fmt.Errorf("refund %s accepted by gateway but not recorded: %w", refund.ID, err)
	}
	logger.WithTraceContext(ctx, s.logger).Info("Payment refunded",
		zap.String("reference_number", r.ReferenceNumber),
		zap.String("refund_id", refund.ID),
		zap.String("admin_id", logger.GetAdminID(ctx)))
	return &RequestView{
		Request:           ToRequestDTO(r),
		Timeline:          ToTimelineDTO(r.Timeline),
		EstimatedNextStep: r.EstimatedNextStep(),
	}, nil
}
