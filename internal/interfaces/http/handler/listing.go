package handler

import (
	"context"
	"net/http"

	"github.com/bhavan/backend/internal/application/listing"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/interfaces/http/dto"
	"github.com/bhavan/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ListingService is the broker listing API
type ListingService interface {
	Submit(ctx context.Context, req listing.SubmitListingRequest, fallbackAffiliate string) (*listing.SubmitListingResult, error)
	InitiateImageUpload(ctx context.Context, req listing.ImageUploadRequest) (*listing.ImageUploadResponse, error)
	ListApproved(ctx context.Context, q listing.PublicListQuery) (shared.Paginated[listing.ListingResponse], error)
	GetApproved(ctx context.Context, id uuid.UUID) (*listing.ListingResponse, error)
	List(ctx context.Context, q listing.AdminListQuery) (shared.Paginated[listing.AdminListingResponse], error)
	Approve(ctx context.Context, id, adminID uuid.UUID) (*listing.AdminListingResponse, error)
	Reject(ctx context.Context, id, adminID uuid.UUID, req listing.RejectListingRequest) (*listing.AdminListingResponse, error)
}

// ListingHandler serves broker submissions, the public catalogue and review
type ListingHandler struct {
	BaseHandler
	listings ListingService
}

// NewListingHandler creates a ListingHandler
func NewListingHandler(listings ListingService) *ListingHandler {
	return &ListingHandler{listings: listings}
}

// Submit accepts a broker listing for review
func (h *ListingHandler) Submit(c *gin.Context) {
	var req listing.SubmitListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	result, err := h.listings.Submit(c.Request.Context(), req, middleware.GetAffiliateID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// InitiateImageUpload returns a presigned PUT URL for one listing image
func (h *ListingHandler) InitiateImageUpload(c *gin.Context) {
	var req listing.ImageUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	resp, err := h.listings.InitiateImageUpload(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListApproved pages through approved listings
func (h *ListingHandler) ListApproved(c *gin.Context) {
	var q listing.PublicListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.listings.ListApproved(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// GetApproved returns one approved listing
func (h *ListingHandler) GetApproved(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.listings.GetApproved(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// AdminList pages through listings of any status
func (h *ListingHandler) AdminList(c *gin.Context) {
	var q listing.AdminListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.listings.List(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// Approve publishes a pending listing
func (h *ListingHandler) Approve(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.listings.Approve(c.Request.Context(), id, middleware.GetAdminID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Reject declines a pending listing with a reason
func (h *ListingHandler) Reject(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req listing.RejectListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	resp, err := h.listings.Reject(c.Request.Context(), id, middleware.GetAdminID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
