package models

import (
	"time"

	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/shopspring/decimal"
)

// ReferralEventModel is the persistence model for a ReferralEvent.
type ReferralEventModel struct {
	BaseModel
	AffiliateID     string                `gorm:"type:varchar(100);not null;index"`
	Type            attribution.EventType `gorm:"type:varchar(20);not null;index"`
	Path            string                `gorm:"type:varchar(500)"`
	ReferenceNumber string                `gorm:"type:varchar(32)"`
	Amount          decimal.Decimal       `gorm:"type:decimal(18,2);not null;default:0"`
	Currency        string                `gorm:"type:varchar(3)"`
	Metadata        string                `gorm:"type:jsonb;not null"`
	OccurredAt      time.Time             `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ReferralEventModel) TableName() string {
	return "referral_events"
}

// ToDomain converts the persistence model to a domain ReferralEvent.
func (m *ReferralEventModel) ToDomain() *attribution.ReferralEvent {
	return &attribution.ReferralEvent{
		BaseEntity:      m.BaseModel.ToDomain(),
		AffiliateID:     attribution.AffiliateID(m.AffiliateID),
		Type:            m.Type,
		Path:            m.Path,
		ReferenceNumber: m.ReferenceNumber,
		Amount:          m.Amount,
		Currency:        m.Currency,
		Metadata:        decodeStringMap(m.Metadata),
		OccurredAt:      m.OccurredAt.UTC(),
	}
}

// FromDomain populates the persistence model from a domain ReferralEvent.
func (m *ReferralEventModel) FromDomain(e *attribution.ReferralEvent) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.AffiliateID = e.AffiliateID.String()
	m.Type = e.Type
	m.Path = e.Path
	m.ReferenceNumber = e.ReferenceNumber
	m.Amount = e.Amount
	m.Currency = e.Currency
	m.Metadata = encodeStringMap(e.Metadata)
	m.OccurredAt = e.OccurredAt
}
