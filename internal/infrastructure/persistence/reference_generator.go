package persistence

import (
	"context"
	"fmt"

	"github.com/bhavan/backend/internal/domain/servicerequest"
	"gorm.io/gorm"
)

const (
	serviceRequestCounter = "service_request"
	// The first reference issued is <prefix>1001.
	referenceCounterStart = 1000
)

// ReferenceGenerator issues monotonically increasing reference numbers backed
// by a counter row, so numbers survive restarts and are unique across instances.
type ReferenceGenerator struct {
	db     *gorm.DB
	prefix string
}

// NewReferenceGenerator creates a generator producing "<prefix><n>" references
func NewReferenceGenerator(db *gorm.DB, prefix string) *ReferenceGenerator {
	return &ReferenceGenerator{db: db, prefix: prefix}
}

// Next returns the next reference number
func (g *ReferenceGenerator) Next(ctx context.Context) (string, error) {
	var value int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"INSERT INTO reference_counters (name, value) VALUES (?, ?) ON CONFLICT (name) DO NOTHING",
			serviceRequestCounter, referenceCounterStart,
		).Error; err != nil {
			return err
		}
		return tx.Raw(
			"UPDATE reference_counters SET value = value + 1 WHERE name = ? RETURNING value",
			serviceRequestCounter,
		).Scan(&value).Error
	})
	if err != nil {
		return "", fmt.Errorf("reference: failed to allocate number: %w", err)
	}
	if value == 0 {
		return "", fmt.Errorf("reference: counter %q returned no value", serviceRequestCounter)
	}
	return servicerequest.FormatReference(g.prefix, value), nil
}
