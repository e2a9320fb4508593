package persistence

import (
	"github.com/bhavan/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// ReferenceCounterModel backs the reference number sequence.
type ReferenceCounterModel struct {
	Name  string `gorm:"type:varchar(50);primaryKey"`
	Value int64  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReferenceCounterModel) TableName() string {
	return "reference_counters"
}

// AllModels lists every persisted model
func AllModels() []any {
	return []any{
		&models.ServiceModel{},
		&models.ServiceTierModel{},
		&models.ServiceRequestModel{},
		&models.TimelineItemModel{},
		&models.LeadModel{},
		&models.ListingModel{},
		&models.ListingImageModel{},
		&models.ReferralEventModel{},
		&models.AdminUserModel{},
		&ReferenceCounterModel{},
	}
}

// AutoMigrate creates or updates tables for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
