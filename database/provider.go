package database

import (
	"fmt"

	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type ModelsOption struct {
	models []any
}

func WithModels(models ...any) *ModelsOption {
	return &ModelsOption{models: models}
}

func ProvideDatabase(cfg config.Config, modelsOpt *ModelsOption, logger *logging.Service) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}
	if cfg.Log.Level == string(logging.Debug) {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.Database.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		logger.Error("failed to connect to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// sqlite serialises writers; a single connection keeps ":memory:" databases
	// shared and avoids SQLITE_BUSY under concurrent code consumption.
	if cfg.Database.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := pingDatabase(db); err != nil {
		logger.Error("database ping failed", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate && modelsOpt != nil && len(modelsOpt.models) > 0 {
		if err := db.AutoMigrate(modelsOpt.models...); err != nil {
			return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
		}
		logger.Info("database models migrated", zap.Int("models", len(modelsOpt.models)))
	}

	logger.Info("database connected", zap.String("driver", cfg.Database.Driver))
	return db, nil
}

func pingDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
