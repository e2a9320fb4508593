package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/bhavan/backend/internal/infrastructure/config"
	"github.com/bhavan/backend/internal/infrastructure/logger"
	"github.com/bhavan/backend/internal/infrastructure/migration"
	"github.com/bhavan/backend/internal/infrastructure/persistence"
	"github.com/bhavan/backend/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	var (
		direction      string
		migrationsPath string
		steps          int
		version        int
		name           string
		logLevel       string
	)

	flag.StringVar(&direction, "direction", "up", "up, down, steps, goto, version, force, create or list")
	flag.StringVar(&migrationsPath, "path", "", "Migrations directory (default: embedded migrations)")
	flag.IntVar(&steps, "steps", 0, "Number of migrations for -direction steps (negative rolls back)")
	flag.IntVar(&version, "version", -1, "Target version for -direction goto|force")
	flag.StringVar(&name, "name", "", "Migration name for -direction create")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	log, err := logger.New(logger.Config{Level: logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log, direction, migrationsPath, steps, version, name); err != nil {
		log.Error("Migration command failed", zap.String("direction", direction), zap.Error(err))
		os.Exit(1)
	}
}

func run(log *zap.Logger, direction, migrationsPath string, steps, version int, name string) error {
	switch direction {
	case "create":
		if name == "" {
			return fmt.Errorf("-name is required for create")
		}
		dir := migrationsPath
		if dir == "" {
			dir = "migrations"
		}
		mf, err := migration.CreateMigration(dir, name, name)
		if err != nil {
			return err
		}
		log.Info("Created migration", zap.String("up", mf.UpPath), zap.String("down", mf.DownPath))
		return nil
	case "list":
		list, err := migration.ListMigrations(source(migrationsPath))
		if err != nil {
			return err
		}
		for _, m := range list {
			fmt.Println(m)
		}
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cfg.Database.Driver == "sqlite" {
		return autoMigrateSQLite(log, cfg, direction)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	var m *migration.Migrator
	if migrationsPath == "" {
		m, err = migration.NewFromFS(db, migrations.FS, log)
	} else {
		m, err = migration.New(db, migrationsPath, log)
	}
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			log.Warn("Failed to close migrator", zap.Error(cerr))
		}
	}()

	return m.Run(migration.Direction(direction), steps, version)
}

// autoMigrateSQLite keeps local sqlite databases in step with the GORM models;
// the SQL migrations target PostgreSQL only.
func autoMigrateSQLite(log *zap.Logger, cfg *config.Config, direction string) error {
	if direction != string(migration.DirectionUp) {
		return fmt.Errorf("sqlite databases only support -direction up")
	}
	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:   log,
		LogLevel: gormlogger.Warn,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		return err
	}
	log.Info("SQLite schema migrated", zap.String("path", cfg.Database.SQLitePath))
	return nil
}

func source(migrationsPath string) fs.FS {
	if migrationsPath == "" {
		return migrations.FS
	}
	return os.DirFS(migrationsPath)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Database migration tool for the Bhavan backend

Usage:
  migrate [flags]

Flags:
  -direction string  up, down, steps, goto, version, force, create or list (default "up")
  -path string       Migrations directory (default: embedded migrations)
  -steps int         Number of migrations for steps (negative rolls back)
  -version int       Target version for goto or force
  -name string       Migration name for create
  -log-level string  Log level (default "info")

Examples:
  migrate -direction up
  migrate -direction steps -steps -1
  migrate -direction force -version 2
  migrate -direction create -name "add listing views" -path ./migrations

Configuration is read from config.toml and BHAVAN_* environment variables.
`)
}
