package models

import (
	"github.com/bhavan/backend/internal/domain/servicecatalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceModel is the persistence model for the Service entity.
type ServiceModel struct {
	BaseModel
	Slug        string                  `gorm:"type:varchar(100);not null;uniqueIndex"`
	Name        string                  `gorm:"type:varchar(200);not null"`
	Category    servicecatalog.Category `gorm:"type:varchar(20);not null;index"`
	Description string                  `gorm:"type:text"`
	Price       decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Currency    string                  `gorm:"type:varchar(3);not null"`
	Active      bool                    `gorm:"not null"`
	Tiers       []ServiceTierModel      `gorm:"foreignKey:ServiceID"`
}

// TableName returns the table name for GORM
func (ServiceModel) TableName() string {
	return "services"
}

// ServiceTierModel is the persistence model for a service tier.
type ServiceTierModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	ServiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name        string          `gorm:"type:varchar(100);not null"`
	Description string          `gorm:"type:text"`
	Price       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	SortOrder   int             `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ServiceTierModel) TableName() string {
	return "service_tiers"
}

// ToDomain converts the persistence model to a domain Service.
func (m *ServiceModel) ToDomain() *servicecatalog.Service {
	s := &servicecatalog.Service{
		BaseEntity:  m.BaseModel.ToDomain(),
		Slug:        m.Slug,
		Name:        m.Name,
		Category:    m.Category,
		Description: m.Description,
		Price:       m.Price,
		Currency:    m.Currency,
		Active:      m.Active,
	}
	for _, t := range m.Tiers {
		s.Tiers = append(s.Tiers, servicecatalog.Tier{
			ID:          t.ID,
			ServiceID:   t.ServiceID,
			Name:        t.Name,
			Description: t.Description,
			Price:       t.Price,
			SortOrder:   t.SortOrder,
		})
	}
	s.Tiers = s.SortedTiers()
	return s
}

// FromDomain populates the persistence model from a domain Service.
func (m *ServiceModel) FromDomain(s *servicecatalog.Service) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.Slug = s.Slug
	m.Name = s.Name
	m.Category = s.Category
	m.Description = s.Description
	m.Price = s.Price
	m.Currency = s.Currency
	m.Active = s.Active
	m.Tiers = make([]ServiceTierModel, 0, len(s.Tiers))
	for _, t := range s.Tiers {
		m.Tiers = append(m.Tiers, ServiceTierModel{
			ID:          t.ID,
			ServiceID:   s.ID,
			Name:        t.Name,
			Description: t.Description,
			Price:       t.Price,
			SortOrder:   t.SortOrder,
		})
	}
}
