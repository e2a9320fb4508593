package purchase

import (
	"context"
	"time"

	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/logger"
	"github.com/bhavan/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReconcileResult counts what one reconciliation pass did
type ReconcileResult struct {
	Checked  int `json:"checked"`
	Resolved int `json:"resolved"`
	Errors   int `json:"errors"`
}

// ReconcilePending asks the gateway about payments still pending more than
// olderThan after their last update and applies any outcome it reports.
// Gateways without lookup support make this a no-op.
func (s *Service) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (res ReconcileResult, err error) {
	lookup, ok := s.deps.Gateway.(servicerequest.PaymentLookup)
	if !ok {
		return res, nil
	}
	ctx, span := telemetry.StartSpan(ctx, "purchase", "reconcile_pending")
	defer func() {
		span.SetAttributes(
			attribute.Int("reconcile.checked", res.Checked),
			attribute.Int("reconcile.resolved", res.Resolved))
		telemetry.EndSpan(span, err)
	}()
	log := logger.WithTraceContext(ctx, s.logger)

	pending, err := s.stalePayments(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return res, err
	}

	for i := range pending {
		r := &pending[i]
		if r.Payment.TransactionID == "" {
			continue
		}
		res.Checked++
		event, err := lookup.LookupPayment(ctx, r.Payment.TransactionID)
		if err != nil {
			res.Errors++
			log.Warn("Payment lookup failed",
				zap.String("reference_number", r.ReferenceNumber),
				zap.String("transaction_id", r.Payment.TransactionID),
				zap.Error(err))
			continue
		}
		if event == nil {
			continue
		}
		if event.ReferenceNumber == "" {
			event.ReferenceNumber = r.ReferenceNumber
		}
		if event.Attempt == 0 {
			event.Attempt = r.Payment.Attempts
		}
		if err := s.HandleGatewayEvent(ctx, event); err != nil {
			res.Errors++
			log.Error("Failed to apply reconciled payment",
				zap.String("reference_number", r.ReferenceNumber),
				zap.Error(err))
			continue
		}
		res.Resolved++
	}

	if res.Checked > 0 {
		log.Info("Pending payments reconciled",
			zap.Int("checked", res.Checked),
			zap.Int("resolved", res.Resolved),
			zap.Int("errors", res.Errors))
	}
	return res, nil
}

// stalePayments collects up to limit pending payments last updated before
// cutoff, oldest first. Every page is read before any payment is settled so
// settling cannot shift the page offsets.
func (s *Service) stalePayments(ctx context.Context, cutoff time.Time, limit int) ([]servicerequest.ServiceRequest, error) {
	if limit <= 0 {
		return nil, nil
	}
	pageSize := min(limit, shared.MaxPageSize)
	var out []servicerequest.ServiceRequest
	for page := 1; len(out) < limit; page++ {
		batch, _, err := s.deps.Requests.FindAll(ctx, shared.Filter{
			Page:     page,
			PageSize: pageSize,
			OrderBy:  "updated_at",
			OrderDir: "asc",
			Filters: map[string]interface{}{
				"payment_status": string(servicerequest.PaymentPending),
				"updated_before": cutoff,
			},
		})
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < pageSize {
			break
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Reconciliation defaults for admin-triggered passes
const (
	DefaultReconcileAfter = 30 * time.Minute
	DefaultReconcileBatch = 50
	MaxReconcileBatch     = 500
)

// ReconcileRequest is an admin-triggered reconciliation pass
type ReconcileRequest struct {
	OlderThanMinutes int `form:"older_than_minutes" binding:"gte=0"`
	Limit            int `form:"limit" binding:"gte=0,lte=500"`
}

// Reconcile runs ReconcilePending with request values or the defaults.
func (s *Service) Reconcile(ctx context.Context, req ReconcileRequest) (ReconcileResult, error) {
	if s.deps.Gateway == nil {
		return ReconcileResult{}, servicerequest.ErrGatewayNotConfigured
	}
	olderThan := DefaultReconcileAfter
	if req.OlderThanMinutes > 0 {
		olderThan = time.Duration(req.OlderThanMinutes) * time.Minute
	}
	limit := DefaultReconcileBatch
	if req.Limit > 0 {
		limit = min(req.Limit, MaxReconcileBatch)
	}
	return s.ReconcilePending(ctx, olderThan, limit)
}
