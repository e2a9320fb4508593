package telemetry

import (
	"time"

	"github.com/bhavan/backend/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const slowQueryStartKey = "telemetry:query_start"

// RegisterDBTracing installs otelgorm on db, plus a callback that marks the
// current span when a statement exceeds the slow-query threshold.
func RegisterDBTracing(db *gorm.DB, driver string, cfg config.TelemetryConfig, logger *zap.Logger) error {
	if !cfg.Enabled || !cfg.DBTraceEnabled {
		return nil
	}

	dbSystem := "postgresql"
	if driver == "sqlite" {
		dbSystem = "sqlite"
	}
	opts := []otelgorm.Option{otelgorm.WithDBName(dbSystem)}
	if !cfg.DBLogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	threshold := cfg.DBSlowQueryThresh
	if threshold <= 0 {
		threshold = 200 * time.Millisecond
	}
	if err := registerSlowQueryCallbacks(db, threshold); err != nil {
		return err
	}
	logger.Info("Database tracing enabled", zap.Duration("slow_query_threshold", threshold))
	return nil
}

func registerSlowQueryCallbacks(db *gorm.DB, threshold time.Duration) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(slowQueryStartKey, time.Now())
	}
	after := func(tx *gorm.DB) {
		markSlowQuery(tx, threshold)
	}

	cb := db.Callback()
	steps := []struct {
		name   string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, s := range steps {
		if err := s.before("telemetry:before_"+s.name, before); err != nil {
			return err
		}
		if err := s.after("telemetry:after_"+s.name, after); err != nil {
			return err
		}
	}
	return nil
}

func markSlowQuery(tx *gorm.DB, threshold time.Duration) {
	v, ok := tx.InstanceGet(slowQueryStartKey)
	if !ok || tx.Statement.Context == nil {
		return
	}
	start, ok := v.(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	if elapsed < threshold {
		return
	}
	span := trace.SpanFromContext(tx.Statement.Context)
	span.SetAttributes(attribute.Bool("db.slow_query", true))
	span.AddEvent("slow_query", trace.WithAttributes(
		attribute.String("db.table", tx.Statement.Table),
		attribute.Int64("db.duration_ms", elapsed.Milliseconds()),
	))
}
