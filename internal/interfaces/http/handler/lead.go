package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bhavan/backend/internal/application/lead"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/interfaces/http/dto"
	"github.com/bhavan/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LeadService accepts form submissions and serves the lead back office
type LeadService interface {
	Submit(ctx context.Context, req lead.SubmitFormRequest, fallbackAffiliate string) (*lead.SubmitFormResult, error)
	ListLeads(ctx context.Context, q lead.ListLeadsQuery) (shared.Paginated[lead.LeadResponse], error)
	UpdateLeadStatus(ctx context.Context, id uuid.UUID, req lead.UpdateLeadStatusRequest) (*lead.LeadResponse, error)
}

// LeadHandler handles generic form submissions and lead administration
type LeadHandler struct {
	BaseHandler
	leads LeadService
}

// NewLeadHandler creates a LeadHandler
func NewLeadHandler(leads LeadService) *LeadHandler {
	return &LeadHandler{leads: leads}
}

// SubmitForm stores a contact, interest, callback, newsletter or broker enquiry
func (h *LeadHandler) SubmitForm(c *gin.Context) {
	var req lead.SubmitFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	if req.SourcePath == "" {
		if ref, err := url.Parse(c.GetHeader("Referer")); err == nil {
			req.SourcePath = ref.Path
		}
	}

	result, err := h.leads.Submit(c.Request.Context(), req, middleware.GetAffiliateID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ListLeads returns leads for the back office
func (h *LeadHandler) ListLeads(c *gin.Context) {
	var q lead.ListLeadsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.leads.ListLeads(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// UpdateLeadStatus records follow-up progress on a lead
func (h *LeadHandler) UpdateLeadStatus(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req lead.UpdateLeadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	resp, err := h.leads.UpdateLeadStatus(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
