package models

import (
	"time"

	"github.com/bhavan/backend/internal/domain/listing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListingModel is the persistence model for the Listing aggregate.
type ListingModel struct {
	AggregateModel
	BrokerName      string               `gorm:"type:varchar(200);not null"`
	BrokerEmail     string               `gorm:"type:varchar(254);not null"`
	BrokerPhone     string               `gorm:"type:varchar(32);not null"`
	BrokerCompany   string               `gorm:"type:varchar(200)"`
	Title           string               `gorm:"type:varchar(200);not null"`
	Description     string               `gorm:"type:text"`
	PropertyType    listing.PropertyType `gorm:"type:varchar(30);not null;index"`
	City            string               `gorm:"type:varchar(100);not null;index"`
	Locality        string               `gorm:"type:varchar(200)"`
	Price           decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	Currency        string               `gorm:"type:varchar(3);not null"`
	TotalShares     int                  `gorm:"not null"`
	AreaSqFt        int                  `gorm:"column:area_sq_ft;not null;default:0"`
	Status          listing.Status       `gorm:"type:varchar(20);not null;index"`
	RejectionReason string               `gorm:"type:text"`
	ReviewedBy      *uuid.UUID           `gorm:"type:uuid"`
	ReviewedAt      *time.Time
	AffiliateID     string              `gorm:"type:varchar(100);not null"`
	Images          []ListingImageModel `gorm:"foreignKey:ListingID"`
}

// TableName returns the table name for GORM
func (ListingModel) TableName() string {
	return "listings"
}

// ListingImageModel is one uploaded image of a listing.
type ListingImageModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	ListingID   uuid.UUID `gorm:"type:uuid;not null;index"`
	StorageKey  string    `gorm:"type:varchar(500);not null"`
	ContentType string    `gorm:"type:varchar(50);not null"`
	Position    int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ListingImageModel) TableName() string {
	return "listing_images"
}

// ToDomain converts the persistence model to a domain Listing.
func (m *ListingModel) ToDomain() *listing.Listing {
	l := &listing.Listing{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Broker: listing.Broker{
			Name:    m.BrokerName,
			Email:   m.BrokerEmail,
			Phone:   m.BrokerPhone,
			Company: m.BrokerCompany,
		},
		Title:           m.Title,
		Description:     m.Description,
		PropertyType:    m.PropertyType,
		City:            m.City,
		Locality:        m.Locality,
		Price:           m.Price,
		Currency:        m.Currency,
		TotalShares:     m.TotalShares,
		AreaSqFt:        m.AreaSqFt,
		Status:          m.Status,
		RejectionReason: m.RejectionReason,
		ReviewedBy:      m.ReviewedBy,
		ReviewedAt:      utcPtr(m.ReviewedAt),
		AffiliateID:     m.AffiliateID,
		Images:          make([]listing.Image, 0, len(m.Images)),
	}
	for _, img := range m.Images {
		l.Images = append(l.Images, listing.Image{
			StorageKey:  img.StorageKey,
			ContentType: img.ContentType,
			Position:    img.Position,
		})
	}
	return l
}

// FromDomain populates the persistence model from a domain Listing.
func (m *ListingModel) FromDomain(l *listing.Listing) {
	m.FromDomainAggregateRoot(l.BaseAggregateRoot)
	m.BrokerName = l.Broker.Name
	m.BrokerEmail = l.Broker.Email
	m.BrokerPhone = l.Broker.Phone
	m.BrokerCompany = l.Broker.Company
	m.Title = l.Title
	m.Description = l.Description
	m.PropertyType = l.PropertyType
	m.City = l.City
	m.Locality = l.Locality
	m.Price = l.Price
	m.Currency = l.Currency
	m.TotalShares = l.TotalShares
	m.AreaSqFt = l.AreaSqFt
	m.Status = l.Status
	m.RejectionReason = l.RejectionReason
	m.ReviewedBy = l.ReviewedBy
	m.ReviewedAt = l.ReviewedAt
	m.AffiliateID = l.AffiliateID
	m.Images = make([]ListingImageModel, 0, len(l.Images))
	for _, img := range l.Images {
		m.Images = append(m.Images, ListingImageModel{
			ListingID:   l.ID,
			StorageKey:  img.StorageKey,
			ContentType: img.ContentType,
			Position:    img.Position,
		})
	}
}
