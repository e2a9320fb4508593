package persistence

import (
	"context"
	"errors"

	"github.com/bhavan/backend/internal/domain/listing"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormListingRepository implements listing.Repository using GORM
type GormListingRepository struct {
	db *gorm.DB
}

// NewGormListingRepository creates a new GormListingRepository
func NewGormListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

func orderedImages(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Save persists the listing and rewrites its images in one transaction
func (r *GormListingRepository) Save(ctx context.Context, l *listing.Listing) error {
	var m models.ListingModel
	m.FromDomain(l)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(&m).Error; err != nil {
			return err
		}
		if err := tx.Where("listing_id = ?", m.ID).Delete(&models.ListingImageModel{}).Error; err != nil {
			return err
		}
		if len(m.Images) == 0 {
			return nil
		}
		return tx.Create(&m.Images).Error
	})
}

// FindByID finds a listing by its ID
func (r *GormListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	var m models.ListingModel
	if err := r.db.WithContext(ctx).Preload("Images", orderedImages).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll lists listings. Supported filters: status, city, property_type.
func (r *GormListingRepository) FindAll(ctx context.Context, filter shared.Filter) ([]listing.Listing, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.ListingModel{})
	query = applyEquals(query, filter, "status", "city", "property_type")
	query = applySearch(query, filter, "title", "locality", "city")

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ListingModel
	if err := applyPaging(query, filter, ListingSortFields, "created_at").
		Preload("Images", orderedImages).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]listing.Listing, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, total, nil
}
