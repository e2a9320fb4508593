package persistence

import (
	"context"
	"errors"

	"github.com/bhavan/backend/internal/domain/lead"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLeadRepository implements lead.Repository using GORM
type GormLeadRepository struct {
	db *gorm.DB
}

// NewGormLeadRepository creates a new GormLeadRepository
func NewGormLeadRepository(db *gorm.DB) *GormLeadRepository {
	return &GormLeadRepository{db: db}
}

// Save creates or updates a lead
func (r *GormLeadRepository) Save(ctx context.Context, l *lead.Lead) error {
	var m models.LeadModel
	m.FromDomain(l)
	return r.db.WithContext(ctx).Save(&m).Error
}

// FindByID finds a lead by its ID
func (r *GormLeadRepository) FindByID(ctx context.Context, id uuid.UUID) (*lead.Lead, error) {
	var m models.LeadModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll lists leads. Supported filters: form_type, status, affiliate_id.
func (r *GormLeadRepository) FindAll(ctx context.Context, filter shared.Filter) ([]lead.Lead, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.LeadModel{})
	query = applyEquals(query, filter, "form_type", "status", "affiliate_id")
	query = applySearch(query, filter, "name", "email", "phone")

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.LeadModel
	if err := applyPaging(query, filter, LeadSortFields, "created_at").Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]lead.Lead, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, total, nil
}
