package models

import (
	"time"

	"github.com/bhavan/backend/internal/domain/identity"
)

// AdminUserModel is the persistence model for the AdminUser aggregate.
type AdminUserModel struct {
	AggregateModel
	Email          string `gorm:"type:varchar(254);not null;uniqueIndex"`
	Name           string `gorm:"type:varchar(200);not null"`
	PasswordHash   string `gorm:"type:varchar(255);not null"`
	Active         bool   `gorm:"not null"`
	FailedAttempts int    `gorm:"not null;default:0"`
	LockedUntil    *time.Time
	LastLoginAt    *time.Time
}

// TableName returns the table name for GORM
func (AdminUserModel) TableName() string {
	return "admin_users"
}

// ToDomain converts the persistence model to a domain AdminUser.
func (m *AdminUserModel) ToDomain() *identity.AdminUser {
	return &identity.AdminUser{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Email:             m.Email,
		Name:              m.Name,
		PasswordHash:      m.PasswordHash,
		Active:            m.Active,
		FailedAttempts:    m.FailedAttempts,
		LockedUntil:       utcPtr(m.LockedUntil),
		LastLoginAt:       utcPtr(m.LastLoginAt),
	}
}

// FromDomain populates the persistence model from a domain AdminUser.
func (m *AdminUserModel) FromDomain(u *identity.AdminUser) {
	m.FromDomainAggregateRoot(u.BaseAggregateRoot)
	m.Email = u.Email
	m.Name = u.Name
	m.PasswordHash = u.PasswordHash
	m.Active = u.Active
	m.FailedAttempts = u.FailedAttempts
	m.LockedUntil = u.LockedUntil
	m.LastLoginAt = u.LastLoginAt
}
