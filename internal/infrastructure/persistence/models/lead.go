package models

import (
	"time"

	"github.com/bhavan/backend/internal/domain/lead"
)

// LeadModel is the persistence model for the Lead aggregate.
type LeadModel struct {
	AggregateModel
	FormType    lead.FormType `gorm:"type:varchar(30);not null;index"`
	Name        string        `gorm:"type:varchar(200)"`
	Email       string        `gorm:"type:varchar(254);index"`
	Phone       string        `gorm:"type:varchar(32)"`
	Message     string        `gorm:"type:text"`
	Data        string        `gorm:"type:jsonb;not null"`
	UTMSource   string        `gorm:"column:utm_source;type:varchar(100)"`
	UTMMedium   string        `gorm:"column:utm_medium;type:varchar(100)"`
	UTMCampaign string        `gorm:"column:utm_campaign;type:varchar(100)"`
	UTMTerm     string        `gorm:"column:utm_term;type:varchar(100)"`
	UTMContent  string        `gorm:"column:utm_content;type:varchar(100)"`
	AffiliateID string        `gorm:"type:varchar(100);not null;index"`
	SourcePath  string        `gorm:"type:varchar(500)"`
	SubmittedAt time.Time     `gorm:"not null"`
	Status      lead.Status   `gorm:"type:varchar(20);not null;index"`
}

// TableName returns the table name for GORM
func (LeadModel) TableName() string {
	return "leads"
}

// ToDomain converts the persistence model to a domain Lead.
func (m *LeadModel) ToDomain() *lead.Lead {
	return &lead.Lead{
		BaseAggregateRoot: m.ToAggregateRoot(),
		FormType:          m.FormType,
		Name:              m.Name,
		Email:             m.Email,
		Phone:             m.Phone,
		Message:           m.Message,
		Data:              decodeStringMap(m.Data),
		UTM: lead.UTMParams{
			Source:   m.UTMSource,
			Medium:   m.UTMMedium,
			Campaign: m.UTMCampaign,
			Term:     m.UTMTerm,
			Content:  m.UTMContent,
		},
		AffiliateID: m.AffiliateID,
		SourcePath:  m.SourcePath,
		SubmittedAt: m.SubmittedAt.UTC(),
		Status:      m.Status,
	}
}

// FromDomain populates the persistence model from a domain Lead.
func (m *LeadModel) FromDomain(l *lead.Lead) {
	m.FromDomainAggregateRoot(l.BaseAggregateRoot)
	m.FormType = l.FormType
	m.Name = l.Name
	m.Email = l.Email
	m.Phone = l.Phone
	m.Message = l.Message
	m.Data = encodeStringMap(l.Data)
	m.UTMSource = l.UTM.Source
	m.UTMMedium = l.UTM.Medium
	m.UTMCampaign = l.UTM.Campaign
	m.UTMTerm = l.UTM.Term
	m.UTMContent = l.UTM.Content
	m.AffiliateID = l.AffiliateID
	m.SourcePath = l.SourcePath
	m.SubmittedAt = l.SubmittedAt
	m.Status = l.Status
}
