package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/bhavan/backend/internal/application/referral"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/interfaces/http/dto"
	"github.com/bhavan/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// ReferralService records and reports affiliate activity
type ReferralService interface {
	RecordEvent(ctx context.Context, req referral.RecordEventRequest, fallbackAffiliate string) (*referral.RecordEventResult, error)
	Summary(ctx context.Context, affiliateID string) (*referral.SummaryResponse, error)
	ListEvents(ctx context.Context, q referral.ListEventsQuery) (shared.Paginated[referral.ReferralEventResponse], error)
}

// ReferralHandler handles referral tracking endpoints
type ReferralHandler struct {
	BaseHandler
	referrals ReferralService
}

// NewReferralHandler creates a ReferralHandler
func NewReferralHandler(referrals ReferralService) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

// RecordEvent stores a click or signup reported by the site. Requests without
// a valid affiliate answer 200 with recorded=false.
func (h *ReferralHandler) RecordEvent(c *gin.Context) {
	var req referral.RecordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	result, err := h.referrals.RecordEvent(c.Request.Context(), req, middleware.GetAffiliateID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Summary aggregates one affiliate's events
func (h *ReferralHandler) Summary(c *gin.Context) {
	affiliateID := strings.TrimSpace(c.Query("affiliate_id"))
	if affiliateID == "" {
		h.BadRequest(c, "affiliate_id is required")
		return
	}
	summary, err := h.referrals.Summary(c.Request.Context(), affiliateID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// ListEvents pages through stored referral events
func (h *ReferralHandler) ListEvents(c *gin.Context) {
	var q referral.ListEventsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.referrals.ListEvents(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}
