package persistence

import (
	"path/filepath"
	"testing"

	"github.com/bhavan/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func TestNewDatabase_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "bhavan.db"),
	}

	db, err := NewDatabase(cfg, Options{Logger: zap.NewNop(), LogLevel: gormlogger.Warn})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "sqlite", db.Driver)
	require.NoError(t, db.Ping())
	require.NoError(t, db.AutoMigrate())

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)

	for _, table := range []string{"services", "service_requests", "service_request_timeline", "leads", "listings", "referral_events", "admin_users", "reference_counters"} {
		assert.True(t, db.DB.Migrator().HasTable(table), table)
	}
}

func TestNewDatabase_PostgresUnreachable(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:       "postgres",
		Host:         "127.0.0.1",
		Port:         1,
		User:         "nobody",
		DBName:       "none",
		SSLMode:      "disable",
		MaxOpenConns: 1,
	}

	_, err := NewDatabase(cfg, Options{})
	assert.Error(t, err)
}
