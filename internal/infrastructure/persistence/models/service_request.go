package models

import (
	"time"

	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceRequestModel is the persistence model for the ServiceRequest aggregate.
type ServiceRequestModel struct {
	AggregateModel
	ReferenceNumber      string                       `gorm:"type:varchar(32);not null;uniqueIndex"`
	ServiceID            uuid.UUID                    `gorm:"type:uuid;not null;index"`
	ServiceName          string                       `gorm:"type:varchar(200);not null"`
	TierID               *uuid.UUID                   `gorm:"type:uuid"`
	TierName             string                       `gorm:"type:varchar(100)"`
	CustomerName         string                       `gorm:"type:varchar(200);not null"`
	CustomerEmail        string                       `gorm:"type:varchar(254);not null;index"`
	CustomerPhone        string                       `gorm:"type:varchar(32);not null"`
	Requirements         string                       `gorm:"type:text"`
	AffiliateID          string                       `gorm:"type:varchar(100);not null;index"`
	Amount               decimal.Decimal              `gorm:"type:decimal(18,2);not null"`
	Currency             string                       `gorm:"type:varchar(3);not null"`
	PaymentStatus        servicerequest.PaymentStatus `gorm:"type:varchar(20);not null;index"`
	PaymentGateway       string                       `gorm:"type:varchar(20)"`
	TransactionID        string                       `gorm:"type:varchar(255);index"`
	PaymentAttempts      int                          `gorm:"not null;default:1"`
	PaymentFailureReason string                       `gorm:"type:text"`
	PaymentCompletedAt   *time.Time
	Status               servicerequest.Status `gorm:"type:varchar(30);not null;index"`
	Timeline             []TimelineItemModel   `gorm:"foreignKey:ServiceRequestID"`
}

// TableName returns the table name for GORM
func (ServiceRequestModel) TableName() string {
	return "service_requests"
}

// TimelineItemModel is one row of a service request's status history.
type TimelineItemModel struct {
	ID               uint                  `gorm:"primaryKey;autoIncrement"`
	ServiceRequestID uuid.UUID             `gorm:"type:uuid;not null;index"`
	Position         int                   `gorm:"not null"`
	Status           servicerequest.Status `gorm:"type:varchar(30);not null"`
	Label            string                `gorm:"type:varchar(100);not null"`
	Description      string                `gorm:"type:text"`
	OccurredAt       time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TimelineItemModel) TableName() string {
	return "service_request_timeline"
}

// ToDomain converts the persistence model to a domain ServiceRequest.
func (m *ServiceRequestModel) ToDomain() *servicerequest.ServiceRequest {
	r := &servicerequest.ServiceRequest{
		BaseAggregateRoot: m.ToAggregateRoot(),
		ReferenceNumber:   m.ReferenceNumber,
		ServiceID:         m.ServiceID,
		ServiceName:       m.ServiceName,
		TierID:            m.TierID,
		TierName:          m.TierName,
		Customer: servicerequest.Customer{
			FullName:     m.CustomerName,
			Email:        m.CustomerEmail,
			Phone:        m.CustomerPhone,
			Requirements: m.Requirements,
		},
		AffiliateID: m.AffiliateID,
		Payment: servicerequest.Payment{
			Amount:        m.Amount,
			Currency:      m.Currency,
			Status:        m.PaymentStatus,
			Gateway:       m.PaymentGateway,
			TransactionID: m.TransactionID,
			Attempts:      m.PaymentAttempts,
			FailureReason: m.PaymentFailureReason,
			CompletedAt:   utcPtr(m.PaymentCompletedAt),
		},
		Status:   m.Status,
		Timeline: make([]servicerequest.TimelineItem, len(m.Timeline)),
	}
	for _, item := range m.Timeline {
		if item.Position < 0 || item.Position >= len(r.Timeline) {
			continue
		}
		r.Timeline[item.Position] = servicerequest.TimelineItem{
			Status:      item.Status,
			Label:       item.Label,
			Timestamp:   item.OccurredAt.UTC(),
			Description: item.Description,
		}
	}
	return r
}

// FromDomain populates the persistence model from a domain ServiceRequest.
func (m *ServiceRequestModel) FromDomain(r *servicerequest.ServiceRequest) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.ReferenceNumber = r.ReferenceNumber
	m.ServiceID = r.ServiceID
	m.ServiceName = r.ServiceName
	m.TierID = r.TierID
	m.TierName = r.TierName
	m.CustomerName = r.Customer.FullName
	m.CustomerEmail = r.Customer.Email
	m.CustomerPhone = r.Customer.Phone
	m.Requirements = r.Customer.Requirements
	m.AffiliateID = r.AffiliateID
	m.Amount = r.Payment.Amount
	m.Currency = r.Payment.Currency
	m.PaymentStatus = r.Payment.Status
	m.PaymentGateway = r.Payment.Gateway
	m.TransactionID = r.Payment.TransactionID
	m.PaymentAttempts = r.Payment.Attempts
	m.PaymentFailureReason = r.Payment.FailureReason
	m.PaymentCompletedAt = r.Payment.CompletedAt
	m.Status = r.Status
	m.Timeline = make([]TimelineItemModel, 0, len(r.Timeline))
	for i, item := range r.Timeline {
		m.Timeline = append(m.Timeline, TimelineItemModel{
			ServiceRequestID: r.ID,
			Position:         i,
			Status:           item.Status,
			Label:            item.Label,
			Description:      item.Description,
			OccurredAt:       item.Timestamp,
		})
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
