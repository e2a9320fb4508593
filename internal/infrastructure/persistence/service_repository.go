package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/bhavan/backend/internal/domain/servicecatalog"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormServiceRepository implements servicecatalog.ServiceRepository using GORM
type GormServiceRepository struct {
	db *gorm.DB
}

// NewGormServiceRepository creates a new GormServiceRepository
func NewGormServiceRepository(db *gorm.DB) *GormServiceRepository {
	return &GormServiceRepository{db: db}
}

func orderedTiers(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC")
}

// FindByID finds a service by its ID
func (r *GormServiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*servicecatalog.Service, error) {
	var m models.ServiceModel
	if err := r.db.WithContext(ctx).Preload("Tiers", orderedTiers).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindBySlug finds a service by its slug
func (r *GormServiceRepository) FindBySlug(ctx context.Context, slug string) (*servicecatalog.Service, error) {
	var m models.ServiceModel
	if err := r.db.WithContext(ctx).
		Preload("Tiers", orderedTiers).
		Where("slug = ?", strings.ToLower(strings.TrimSpace(slug))).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindActive lists active services, optionally restricted to one category
func (r *GormServiceRepository) FindActive(ctx context.Context, category servicecatalog.Category) ([]servicecatalog.Service, error) {
	query := r.db.WithContext(ctx).Preload("Tiers", orderedTiers).Where("active = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var rows []models.ServiceModel
	if err := query.Order("category ASC").Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	services := make([]servicecatalog.Service, 0, len(rows))
	for i := range rows {
		services = append(services, *rows[i].ToDomain())
	}
	return services, nil
}

// Save creates or updates a service and replaces its tiers
func (r *GormServiceRepository) Save(ctx context.Context, service *servicecatalog.Service) error {
	var m models.ServiceModel
	m.FromDomain(service)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(&m).Error; err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(m.Tiers))
		for _, t := range m.Tiers {
			ids = append(ids, t.ID)
		}
		del := tx.Where("service_id = ?", m.ID)
		if len(ids) > 0 {
			del = del.Where("id NOT IN ?", ids)
		}
		if err := del.Delete(&models.ServiceTierModel{}).Error; err != nil {
			return err
		}

		for i := range m.Tiers {
			if err := tx.Save(&m.Tiers[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
