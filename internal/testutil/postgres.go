//go:build integration

// Package testutil starts throwaway PostgreSQL and Redis containers for
// integration tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bhavan/backend/internal/infrastructure/migration"
	"github.com/bhavan/backend/migrations"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const postgresImage = "postgres:16-alpine"

var (
	sharedMu  sync.Mutex
	sharedDSN string
)

// PostgresDB is a migrated database inside a container
type PostgresDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	DSN   string
}

// NewPostgresDB starts a dedicated container, applies the embedded
// migrations and terminates the container when t finishes.
func NewPostgresDB(t *testing.T) *PostgresDB {
	t.Helper()
	ctx := context.Background()

	container, dsn := startPostgres(t, ctx, "bhavan_test")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})
	migrate(t, dsn)
	return connect(t, dsn)
}

// NewSharedPostgresDB reuses one container for the whole package run.
// Tests must clean up what they create, or call TruncateAll.
func NewSharedPostgresDB(t *testing.T) *PostgresDB {
	t.Helper()

	sharedMu.Lock()
	if sharedDSN == "" {
		// terminated by the ryuk reaper when the test binary exits
		_, dsn := startPostgres(t, context.Background(), "bhavan_shared_test")
		migrate(t, dsn)
		sharedDSN = dsn
	}
	dsn := sharedDSN
	sharedMu.Unlock()

	return connect(t, dsn)
}

// TruncateAll empties every table except the migration bookkeeping and the
// seeded service catalog.
func (p *PostgresDB) TruncateAll(t *testing.T) {
	t.Helper()
	var tables []string
	require.NoError(t, p.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename NOT IN ('schema_migrations', 'services', 'service_tiers')
	`).Scan(&tables).Error)
	for _, table := range tables {
		require.NoError(t, p.DB.Exec("TRUNCATE TABLE "+table+" CASCADE").Error, "truncate %s", table)
	}
}

func startPostgres(t *testing.T, ctx context.Context, database string) (testcontainers.Container, string) {
	t.Helper()
	container, err := tcpostgres.Run(ctx,
		postgresImage,
		tcpostgres.WithDatabase(database),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")
	return container, dsn
}

func migrate(t *testing.T, dsn string) {
	t.Helper()
	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer sqlDB.Close()

	m, err := migration.NewFromFS(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err, "failed to open migrations")
	require.NoError(t, m.Up(), "failed to apply migrations")
}

func connect(t *testing.T, dsn string) *PostgresDB {
	t.Helper()
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), cfg)
	require.NoError(t, err, "failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &PostgresDB{DB: db, SqlDB: sqlDB, DSN: dsn}
}
