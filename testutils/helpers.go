package testutils

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a private in-memory sqlite database. One connection is
// used so every query sees the same memory database.
func SetupTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		require.NoError(t, db.AutoMigrate(models...))
	}

	return db
}

// NewObservedLogger returns a logging service whose entries can be asserted on.
func NewObservedLogger(level zapcore.Level) (*logging.Service, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return logging.FromZap(zap.New(core)), logs
}
