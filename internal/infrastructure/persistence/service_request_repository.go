package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormServiceRequestRepository implements servicerequest.Repository using GORM
type GormServiceRequestRepository struct {
	db *gorm.DB
}

// NewGormServiceRequestRepository creates a new GormServiceRequestRepository
func NewGormServiceRequestRepository(db *gorm.DB) *GormServiceRequestRepository {
	return &GormServiceRequestRepository{db: db}
}

func orderedTimeline(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Save persists the request and rewrites its timeline in one transaction
func (r *GormServiceRequestRepository) Save(ctx context.Context, request *servicerequest.ServiceRequest) error {
	var m models.ServiceRequestModel
	m.FromDomain(request)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(&m).Error; err != nil {
			return err
		}
		if err := tx.Where("service_request_id = ?", m.ID).Delete(&models.TimelineItemModel{}).Error; err != nil {
			return err
		}
		if len(m.Timeline) == 0 {
			return nil
		}
		return tx.Create(&m.Timeline).Error
	})
}

// FindByReference finds a request by its reference number
func (r *GormServiceRequestRepository) FindByReference(ctx context.Context, referenceNumber string) (*servicerequest.ServiceRequest, error) {
	return r.findOne(ctx, "reference_number = ?", referenceNumber)
}

// FindByTransactionID finds a request by its gateway transaction id
func (r *GormServiceRequestRepository) FindByTransactionID(ctx context.Context, transactionID string) (*servicerequest.ServiceRequest, error) {
	if transactionID == "" {
		return nil, shared.ErrNotFound
	}
	return r.findOne(ctx, "transaction_id = ?", transactionID)
}

func (r *GormServiceRequestRepository) findOne(ctx context.Context, cond string, arg any) (*servicerequest.ServiceRequest, error) {
	var m models.ServiceRequestModel
	if err := r.db.WithContext(ctx).
		Preload("Timeline", orderedTimeline).
		Where(cond, arg).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll lists requests. Supported filters: status, payment_status, affiliate_id,
// service_id and updated_before (time.Time). Search matches reference number,
// customer name and email.
func (r *GormServiceRequestRepository) FindAll(ctx context.Context, filter shared.Filter) ([]servicerequest.ServiceRequest, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.ServiceRequestModel{})
	query = applyEquals(query, filter, "status", "payment_status", "affiliate_id", "service_id")
	if before, ok := filter.Filters["updated_before"].(time.Time); ok && !before.IsZero() {
		query = query.Where("updated_at < ?", before)
	}
	query = applySearch(query, filter, "reference_number", "customer_name", "customer_email")

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ServiceRequestModel
	if err := applyPaging(query, filter, ServiceRequestSortFields, "created_at").
		Preload("Timeline", orderedTimeline).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]servicerequest.ServiceRequest, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, total, nil
}
