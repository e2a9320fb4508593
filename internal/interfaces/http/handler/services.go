package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/bhavan/backend/internal/application/catalog"
	"github.com/bhavan/backend/internal/application/purchase"
	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/bhavan/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// CatalogService lists purchasable services
type CatalogService interface {
	ListServices(ctx context.Context, q catalog.ServiceListQuery) ([]catalog.ServiceResponse, error)
	GetService(ctx context.Context, idOrSlug string) (*catalog.ServiceResponse, error)
}

// PurchaseService is the customer-facing purchase API
type PurchaseService interface {
	InitiatePurchase(ctx context.Context, req purchase.InitiatePurchaseRequest) (*purchase.InitiatePurchaseResult, error)
	RetryPayment(ctx context.Context, ref string) (*purchase.RetryPaymentResult, error)
	GetByReference(ctx context.Context, ref string) (*purchase.RequestView, error)
	Confirmation(ctx context.Context, ref, urlStatus string) (*purchase.ConfirmationView, error)
	Receipt(ctx context.Context, ref string) (*purchase.ReceiptFile, error)
	ReceiptPDF(ctx context.Context, ref string) (*purchase.ReceiptFile, error)
}

// IdempotencyKeyHeader lets clients make purchase submission safe to resend
const IdempotencyKeyHeader = "Idempotency-Key"

// ServiceHandler serves the service catalog and the purchase flow.
// Purchase responses are flat objects carrying "success" next to the payload.
type ServiceHandler struct {
	BaseHandler
	catalog  CatalogService
	purchase PurchaseService
}

// NewServiceHandler creates a ServiceHandler
func NewServiceHandler(catalogService CatalogService, purchaseService PurchaseService) *ServiceHandler {
	return &ServiceHandler{catalog: catalogService, purchase: purchaseService}
}

// InitiatePurchaseResponse is the body of a successful POST /api/services/purchase
type InitiatePurchaseResponse struct {
	Success bool `json:"success"`
	*purchase.InitiatePurchaseResult
}

// RetryPaymentResponse is the body of a successful POST /api/services/payment/retry
type RetryPaymentResponse struct {
	Success bool `json:"success"`
	*purchase.RetryPaymentResult
}

// RequestViewResponse is the body of GET /api/services/requests/:ref
type RequestViewResponse struct {
	Success bool `json:"success"`
	*purchase.RequestView
}

// ConfirmationResponse is the body of GET /api/services/confirmation
type ConfirmationResponse struct {
	Success bool `json:"success"`
	*purchase.ConfirmationView
}

// ListServices returns active services, optionally filtered by category
func (h *ServiceHandler) ListServices(c *gin.Context) {
	var q catalog.ServiceListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	services, err := h.catalog.ListServices(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, services)
}

// GetService returns one service by id or slug
func (h *ServiceHandler) GetService(c *gin.Context) {
	service, err := h.catalog.GetService(c.Request.Context(), c.Param("idOrSlug"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, service)
}

// InitiatePurchase creates a service request and its payment intent. When the
// body carries no affiliate code the affiliate of the request URL is used.
func (h *ServiceHandler) InitiatePurchase(c *gin.Context) {
	var req purchase.InitiatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	if strings.TrimSpace(req.AffiliateCode) == "" {
		if fromURL := middleware.GetAffiliateID(c); fromURL != attribution.NoAffiliateID.String() {
			req.AffiliateCode = fromURL
		}
	}
	req.IdempotencyKey = strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))

	result, err := h.purchase.InitiatePurchase(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, InitiatePurchaseResponse{Success: true, InitiatePurchaseResult: result})
}

// RetryPayment opens a new hosted payment page for an existing reference
func (h *ServiceHandler) RetryPayment(c *gin.Context) {
	var req purchase.RetryPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	result, err := h.purchase.RetryPayment(c.Request.Context(), strings.TrimSpace(req.ReferenceNumber))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, RetryPaymentResponse{Success: true, RetryPaymentResult: result})
}

// GetRequest returns a request with its timeline
func (h *ServiceHandler) GetRequest(c *gin.Context) {
	view, err := h.purchase.GetByReference(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, RequestViewResponse{Success: true, RequestView: view})
}

// Confirmation resolves the display state for the gateway return page
func (h *ServiceHandler) Confirmation(c *gin.Context) {
	ref := strings.TrimSpace(c.Query("ref"))
	if ref == "" {
		h.BadRequest(c, "ref is required")
		return
	}
	view, err := h.purchase.Confirmation(c.Request.Context(), ref, c.Query("status"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ConfirmationResponse{Success: true, ConfirmationView: view})
}

// Receipt downloads the plain-text receipt, or the PDF rendition with ?format=pdf
func (h *ServiceHandler) Receipt(c *gin.Context) {
	ref := c.Param("ref")
	var (
		file *purchase.ReceiptFile
		err  error
	)
	switch strings.ToLower(c.DefaultQuery("format", "txt")) {
	case "pdf":
		file, err = h.purchase.ReceiptPDF(c.Request.Context(), ref)
	case "txt", "text":
		file, err = h.purchase.Receipt(c.Request.Context(), ref)
	default:
		h.BadRequest(c, "format must be txt or pdf")
		return
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
