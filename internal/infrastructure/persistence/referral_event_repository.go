package persistence

import (
	"context"

	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormReferralEventRepository implements attribution.ReferralEventRepository using GORM
type GormReferralEventRepository struct {
	db *gorm.DB
}

// NewGormReferralEventRepository creates a new GormReferralEventRepository
func NewGormReferralEventRepository(db *gorm.DB) *GormReferralEventRepository {
	return &GormReferralEventRepository{db: db}
}

// Save records a referral event
func (r *GormReferralEventRepository) Save(ctx context.Context, event *attribution.ReferralEvent) error {
	var m models.ReferralEventModel
	m.FromDomain(event)
	return r.db.WithContext(ctx).Create(&m).Error
}

// FindAll lists referral events. Supported filters: affiliate_id, type.
func (r *GormReferralEventRepository) FindAll(ctx context.Context, filter shared.Filter) ([]attribution.ReferralEvent, int64, error) {
	filter = filter.Normalize()
	query := applyEquals(r.db.WithContext(ctx).Model(&models.ReferralEventModel{}), filter, "affiliate_id", "type")

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ReferralEventModel
	if err := applyPaging(query, filter, ReferralEventSortFields, "occurred_at").Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]attribution.ReferralEvent, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, total, nil
}

type referralCount struct {
	Type  attribution.EventType
	Count int64
}

// Summarize counts events per type and totals converted payment amounts
func (r *GormReferralEventRepository) Summarize(ctx context.Context, affiliate attribution.AffiliateID) (*attribution.Summary, error) {
	summary := attribution.NewSummary(affiliate)

	var counts []referralCount
	if err := r.db.WithContext(ctx).
		Model(&models.ReferralEventModel{}).
		Select("type, COUNT(*) AS count").
		Where("affiliate_id = ?", affiliate.String()).
		Group("type").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, c := range counts {
		summary.Counts[c.Type] = c.Count
	}

	var converted struct {
		Total decimal.NullDecimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.ReferralEventModel{}).
		Select("SUM(amount) AS total").
		Where("affiliate_id = ? AND type = ?", affiliate.String(), attribution.EventPayment).
		Scan(&converted).Error; err != nil {
		return nil, err
	}
	if converted.Total.Valid {
		summary.ConvertedAmount = converted.Total.Decimal
	}
	return summary, nil
}
