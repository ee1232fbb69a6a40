package database

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/lshigami/timedtest/config"
	"github.com/lshigami/timedtest/internal/model"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// openAttemptIndex keeps at most one unfinished attempt per student and
// scheduled test. Both postgres and sqlite accept partial indexes.
const openAttemptIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_one_open
ON attempts (student_id, scheduled_test_id)
WHERE status IN ('in_progress', 'abandoned')`

// NewDatabase opens the configured database.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case DriverSQLite:
		dialector = sqlite.Open(cfg.Database.SQLitePath)
	case DriverPostgres, "":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
			cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	return Open(dialector)
}

// Open connects through the given dialector with the settings the
// repositories rely on. Duplicate-key errors are translated to
// gorm.ErrDuplicatedKey.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if db.Dialector.Name() == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite serializes writers; one connection avoids SQLITE_BUSY under concurrent sessions.
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, err
		}
	}
	log.Info().Str("driver", db.Dialector.Name()).Msg("Database connected")
	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(ctx context.Context, db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(
		&model.Test{},
		&model.Question{},
		&model.ScheduledTest{},
		&model.Attempt{},
		&model.Answer{},
	); err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	if err := db.Exec(openAttemptIndex).Error; err != nil {
		log.Error().Err(err).Msg("Creating open attempt index failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
