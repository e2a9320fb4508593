package handler

import (
	"context"
	"net/http"

	"github.com/bhavan/backend/internal/application/purchase"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// RequestAdminService is the back-office API over service requests
type RequestAdminService interface {
	ListRequests(ctx context.Context, q purchase.ListRequestsQuery) (shared.Paginated[purchase.RequestDTO], error)
	AdvanceStatus(ctx context.Context, ref string, req purchase.AdvanceStatusRequest) (*purchase.RequestView, error)
	Refund(ctx context.Context, ref string) (*purchase.RequestView, error)
	Reconcile(ctx context.Context, req purchase.ReconcileRequest) (purchase.ReconcileResult, error)
}

// RequestAdminHandler lets admins follow up on service requests
type RequestAdminHandler struct {
	BaseHandler
	requests RequestAdminService
}

// NewRequestAdminHandler creates a RequestAdminHandler
func NewRequestAdminHandler(requests RequestAdminService) *RequestAdminHandler {
	return &RequestAdminHandler{requests: requests}
}

// List pages through service requests
func (h *RequestAdminHandler) List(c *gin.Context) {
	var q purchase.ListRequestsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.requests.ListRequests(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// Action starts, completes or cancels a request
func (h *RequestAdminHandler) Action(c *gin.Context) {
	var req purchase.AdvanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	view, err := h.requests.AdvanceStatus(c.Request.Context(), c.Param("ref"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Refund returns a completed payment through the gateway
func (h *RequestAdminHandler) Refund(c *gin.Context) {
	view, err := h.requests.Refund(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Reconcile asks the gateway about stale pending payments
func (h *RequestAdminHandler) Reconcile(c *gin.Context) {
	var req purchase.ReconcileRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}
	res, err := h.requests.Reconcile(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}
