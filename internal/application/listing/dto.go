package listing

import (
	"time"

	"github.com/bhavan/backend/internal/domain/listing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BrokerInput is the contact block of a submission
type BrokerInput struct {
	Name    string `json:"name" binding:"required,max=100"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone" binding:"required,phone"`
	Company string `json:"company" binding:"max=200"`
}

// ImageInput references an image uploaded through a presigned URL
type ImageInput struct {
	StorageKey  string `json:"storageKey" binding:"required"`
	ContentType string `json:"contentType"`
}

// SubmitListingRequest is a broker's property submission
type SubmitListingRequest struct {
	Broker       BrokerInput     `json:"broker" binding:"required"`
	Title        string          `json:"title" binding:"required,max=200"`
	Description  string          `json:"description" binding:"max=5000"`
	PropertyType string          `json:"propertyType" binding:"required"`
	City         string          `json:"city" binding:"required,max=100"`
	Locality     string          `json:"locality" binding:"max=100"`
	Price        decimal.Decimal `json:"price" binding:"decimalgt0"`
	Currency     string          `json:"currency"`
	TotalShares  int             `json:"totalShares" binding:"gte=0"`
	AreaSqFt     int             `json:"areaSqFt" binding:"gte=0"`
	Images       []ImageInput    `json:"images" binding:"max=20,dive"`
	AffiliateID  string          `json:"affiliateId"`
}

// ImageUploadRequest asks for a presigned upload URL
type ImageUploadRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
	Size        int64  `json:"size" binding:"required,gt=0"`
}

// ImageUploadResponse carries the presigned PUT target
type ImageUploadResponse struct {
	UploadURL  string            `json:"uploadUrl"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers,omitempty"`
	StorageKey string            `json:"storageKey"`
	ExpiresAt  time.Time         `json:"expiresAt"`
}

// ImageResponse is one listing image with a time-limited URL
type ImageResponse struct {
	URL         string `json:"url,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Position    int    `json:"position"`
}

// ListingResponse is the public view of an approved listing
type ListingResponse struct {
	ID           uuid.UUID       `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	PropertyType string          `json:"propertyType"`
	City         string          `json:"city"`
	Locality     string          `json:"locality,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	TotalShares  int             `json:"totalShares"`
	AreaSqFt     int             `json:"areaSqFt"`
	Images       []ImageResponse `json:"images"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// AdminListingResponse adds broker and review details for the back office
type AdminListingResponse struct {
	ListingResponse
	Broker          BrokerInput `json:"broker"`
	Status          string      `json:"status"`
	RejectionReason string      `json:"rejectionReason,omitempty"`
	ReviewedBy      *uuid.UUID  `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time  `json:"reviewedAt,omitempty"`
	AffiliateID     string      `json:"affiliateId,omitempty"`
}

// SubmitListingResult acknowledges a submission
type SubmitListingResult struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

// PublicListQuery filters approved listings
type PublicListQuery struct {
	Page         int    `form:"page"`
	PageSize     int    `form:"page_size"`
	City         string `form:"city"`
	PropertyType string `form:"type"`
}

// AdminListQuery filters listings for review
type AdminListQuery struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir"`
	Search   string `form:"search"`
	Status   string `form:"status"`
	City     string `form:"city"`
}

// RejectListingRequest carries the reason shown to the broker
type RejectListingRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

func toListingResponse(l *listing.Listing, images []ImageResponse) ListingResponse {
	if images == nil {
		images = []ImageResponse{}
	}
	return ListingResponse{
		ID:           l.ID,
		Title:        l.Title,
		Description:  l.Description,
		PropertyType: string(l.PropertyType),
		City:         l.City,
		Locality:     l.Locality,
		Price:        l.Price,
		Currency:     l.Currency,
		TotalShares:  l.TotalShares,
		AreaSqFt:     l.AreaSqFt,
		Images:       images,
		CreatedAt:    l.CreatedAt,
	}
}

func toAdminListingResponse(l *listing.Listing, images []ImageResponse) AdminListingResponse {
	return AdminListingResponse{
		ListingResponse: toListingResponse(l, images),
		Broker: BrokerInput{
			Name:    l.Broker.Name,
			Email:   l.Broker.Email,
			Phone:   l.Broker.Phone,
			Company: l.Broker.Company,
		},
		Status:          string(l.Status),
		RejectionReason: l.RejectionReason,
		ReviewedBy:      l.ReviewedBy,
		ReviewedAt:      l.ReviewedAt,
		AffiliateID:     l.AffiliateID,
	}
}
