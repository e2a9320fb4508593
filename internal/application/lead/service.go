// Package lead accepts site form submissions and serves them to the back office.
package lead

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/bhavan/backend/internal/domain/lead"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/logger"
	"github.com/bhavan/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// maxClockSkew bounds how far in the future a client timestamp may be
const maxClockSkew = 5 * time.Minute

// LeadService handles form submissions
type LeadService struct {
	repo      lead.Repository
	publisher shared.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewLeadService creates a new LeadService
func NewLeadService(repo lead.Repository, publisher shared.EventPublisher, log *zap.Logger) *LeadService {
	return &LeadService{
		repo:      repo,
		publisher: publisher,
		logger:    log.Named("lead"),
		now:       time.Now,
	}
}

// Submit validates and stores a form submission, then publishes LeadSubmitted.
// fallbackAffiliate is the id resolved from the request URL; the body value wins when valid.
func (s *LeadService) Submit(ctx context.Context, req SubmitFormRequest, fallbackAffiliate string) (result *SubmitFormResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "lead", "submit", attribute.String("form_type", req.FormType))
	defer func() { telemetry.EndSpan(span, err) }()
	log := logger.WithTraceContext(ctx, s.logger)

	affiliate := s.resolveAffiliate(log, req.AffiliateID, fallbackAffiliate)

	l, err := lead.NewLead(lead.Submission{
		FormType: lead.FormType(strings.TrimSpace(req.FormType)),
		Data:     req.Data,
		UTM: lead.UTMParams{
			Source:   strings.TrimSpace(req.UTMParams.Source),
			Medium:   strings.TrimSpace(req.UTMParams.Medium),
			Campaign: strings.TrimSpace(req.UTMParams.Campaign),
			Term:     strings.TrimSpace(req.UTMParams.Term),
			Content:  strings.TrimSpace(req.UTMParams.Content),
		},
		AffiliateID: affiliate.String(),
		SourcePath:  strings.TrimSpace(req.SourcePath),
		SubmittedAt: s.submittedAt(req.Timestamp),
	})
	if err != nil {
		var verr *lead.ValidationError
		if errors.As(err, &verr) {
			log.Info("Form submission rejected", zap.String("form_type", req.FormType), zap.Int("invalid_fields", len(verr.Fields)))
		}
		return nil, err
	}

	if err := s.repo.Save(ctx, l); err != nil {
		return nil, err
	}
	if err := shared.PublishAndClear(ctx, s.publisher, l); err != nil {
		log.Error("Failed to publish lead events", zap.String("lead_id", l.ID.String()), zap.Error(err))
	}

	log.Info("Form submission accepted",
		zap.String("lead_id", l.ID.String()),
		zap.String("form_type", string(l.FormType)),
		zap.String("affiliate_id", l.AffiliateID))
	return &SubmitFormResult{ID: l.ID, FormType: string(l.FormType), SubmittedAt: l.SubmittedAt}, nil
}

// ListLeads returns a page of leads
func (s *LeadService) ListLeads(ctx context.Context, q ListLeadsQuery) (shared.Paginated[LeadResponse], error) {
	filter := shared.Filter{
		Page:     q.Page,
		PageSize: q.PageSize,
		OrderBy:  q.OrderBy,
		OrderDir: q.OrderDir,
		Search:   q.Search,
		Filters:  map[string]interface{}{},
	}.Normalize()
	if q.FormType != "" {
		filter.Filters["form_type"] = q.FormType
	}
	if q.Status != "" {
		filter.Filters["status"] = q.Status
	}
	if q.AffiliateID != "" {
		filter.Filters["affiliate_id"] = q.AffiliateID
	}

	leads, total, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[LeadResponse]{}, err
	}
	items := make([]LeadResponse, len(leads))
	for i := range leads {
		items[i] = ToLeadResponse(&leads[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// UpdateLeadStatus records follow-up progress on a lead
func (s *LeadService) UpdateLeadStatus(ctx context.Context, id uuid.UUID, req UpdateLeadStatusRequest) (*LeadResponse, error) {
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.UpdateStatus(lead.Status(req.Status)); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, l); err != nil {
		return nil, err
	}
	logger.WithTraceContext(ctx, s.logger).Info("Lead status updated",
		zap.String("lead_id", id.String()),
		zap.String("status", req.Status),
		zap.String("admin_id", logger.GetAdminID(ctx)))
	resp := ToLeadResponse(l)
	return &resp, nil
}

func (s *LeadService) resolveAffiliate(log *zap.Logger, fromBody, fromURL string) attribution.AffiliateID {
	warn := func(candidate string) {
		log.Warn("Invalid affiliate id on form submission, using sentinel",
			zap.String("affiliate_id", logger.Truncate(candidate, 120)))
	}
	if id := attribution.Normalize(strings.TrimSpace(fromBody), warn); id.IsPresent() {
		return id
	}
	return attribution.Normalize(fromURL, nil)
}

// submittedAt trusts the client clock unless it is missing or in the future
func (s *LeadService) submittedAt(ts *time.Time) time.Time {
	now := s.now()
	if ts == nil || ts.IsZero() || ts.After(now.Add(maxClockSkew)) {
		return now
	}
	return *ts
}
