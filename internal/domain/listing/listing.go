// Package listing models broker-submitted co-ownership properties awaiting admin review.
package listing

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeListing is the aggregate type name used in domain events
const AggregateTypeListing = "Listing"

// ImageKeyPrefix is the storage prefix every listing image key must carry
const ImageKeyPrefix = "listings/"

// MaxImages is the most images one listing may reference
const MaxImages = 20

// PropertyType classifies the listed property
type PropertyType string

const (
	PropertyApartment   PropertyType = "apartment"
	PropertyVilla       PropertyType = "villa"
	PropertyPlot        PropertyType = "plot"
	PropertyCommercial  PropertyType = "commercial"
	PropertyHolidayHome PropertyType = "holiday_home"
)

// IsValid reports whether p is a known property type
func (p PropertyType) IsValid() bool {
	switch p {
	case PropertyApartment, PropertyVilla, PropertyPlot, PropertyCommercial, PropertyHolidayHome:
		return true
	}
	return false
}

// Status is the review state of a listing
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Broker is the contact who submitted the listing
type Broker struct {
	Name    string
	Email   string
	Phone   string
	Company string
}

// Image references an uploaded object
type Image struct {
	StorageKey  string
	ContentType string
	Position    int
}

// Listing is a property offered for fractional co-ownership
type Listing struct {
	shared.BaseAggregateRoot
	Broker          Broker
	Title           string
	Description     string
	PropertyType    PropertyType
	City            string
	Locality        string
	Price           decimal.Decimal
	Currency        string
	TotalShares     int
	AreaSqFt        int
	Images          []Image
	Status          Status
	RejectionReason string
	ReviewedBy      *uuid.UUID
	ReviewedAt      *time.Time
	AffiliateID     string
}

// NewListingParams holds the inputs for a submission
type NewListingParams struct {
	Broker       Broker
	Title        string
	Description  string
	PropertyType PropertyType
	City         string
	Locality     string
	Price        decimal.Decimal
	Currency     string
	TotalShares  int
	AreaSqFt     int
	Images       []Image
	AffiliateID  string
}

// NewListing validates a broker submission and creates it in pending state
func NewListing(p NewListingParams) (*Listing, error) {
	broker := Broker{
		Name:    strings.TrimSpace(p.Broker.Name),
		Email:   strings.ToLower(strings.TrimSpace(p.Broker.Email)),
		Phone:   strings.TrimSpace(p.Broker.Phone),
		Company: strings.TrimSpace(p.Broker.Company),
	}
	if broker.Name == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Broker name is required")
	}
	if _, err := mail.ParseAddress(broker.Email); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "A valid broker email is required")
	}
	title := strings.TrimSpace(p.Title)
	if title == "" || len(title) > 200 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Title is required and must be at most 200 characters")
	}
	if !p.PropertyType.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown property type: "+string(p.PropertyType))
	}
	if strings.TrimSpace(p.City) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "City is required")
	}
	if !p.Price.IsPositive() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Price must be positive")
	}
	if p.TotalShares < 0 || p.AreaSqFt < 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Shares and area cannot be negative")
	}
	images, err := normalizeImages(p.Images)
	if err != nil {
		return nil, err
	}
	currencyCode := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currencyCode == "" {
		currencyCode = "INR"
	}

	l := &Listing{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Broker:            broker,
		Title:             title,
		Description:       strings.TrimSpace(p.Description),
		PropertyType:      p.PropertyType,
		City:              strings.TrimSpace(p.City),
		Locality:          strings.TrimSpace(p.Locality),
		Price:             p.Price,
		Currency:          currencyCode,
		TotalShares:       p.TotalShares,
		AreaSqFt:          p.AreaSqFt,
		Images:            images,
		Status:            StatusPending,
		AffiliateID:       p.AffiliateID,
	}
	l.RecordEvent(NewListingSubmittedEvent(l))
	return l, nil
}

func normalizeImages(in []Image) ([]Image, error) {
	if len(in) > MaxImages {
		return nil, shared.NewDomainError("INVALID_INPUT", "Too many images")
	}
	seen := make(map[string]bool, len(in))
	out := make([]Image, 0, len(in))
	for _, img := range in {
		key := strings.TrimSpace(img.StorageKey)
		if !strings.HasPrefix(key, ImageKeyPrefix) || strings.Contains(key, "..") {
			return nil, shared.NewDomainError("INVALID_INPUT", "Invalid image reference: "+img.StorageKey)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Image{StorageKey: key, ContentType: img.ContentType, Position: len(out)})
	}
	return out, nil
}

// Approve publishes a pending listing
func (l *Listing) Approve(adminID uuid.UUID, at time.Time) error {
	if l.Status != StatusPending {
		return shared.NewDomainError("INVALID_STATE", "Only pending listings can be approved")
	}
	l.review(adminID, at)
	l.Status = StatusApproved
	l.RejectionReason = ""
	l.RecordEvent(NewListingReviewedEvent(l, EventTypeListingApproved))
	return nil
}

// Reject declines a pending listing with a reason for the broker
func (l *Listing) Reject(adminID uuid.UUID, reason string, at time.Time) error {
	if l.Status != StatusPending {
		return shared.NewDomainError("INVALID_STATE", "Only pending listings can be rejected")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewDomainError("INVALID_INPUT", "A rejection reason is required")
	}
	l.review(adminID, at)
	l.Status = StatusRejected
	l.RejectionReason = reason
	l.RecordEvent(NewListingReviewedEvent(l, EventTypeListingRejected))
	return nil
}

// IsPublic reports whether the listing may be shown on the site
func (l *Listing) IsPublic() bool {
	return l.Status == StatusApproved
}

func (l *Listing) review(adminID uuid.UUID, at time.Time) {
	at = at.UTC()
	l.ReviewedBy = &adminID
	l.ReviewedAt = &at
	l.UpdatedAt = at
}

// Repository persists listings
type Repository interface {
	Save(ctx context.Context, listing *Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*Listing, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Listing, int64, error)
}
