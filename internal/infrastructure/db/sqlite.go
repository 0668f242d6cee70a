package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wekeepgrowing/research-agent/internal/infrastructure/db/model"
	"github.com/wekeepgrowing/research-agent/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config holds embedded database settings.
type Config struct {
	Path string
}

// NewSQLiteDB opens the embedded task database and migrates the schema.
func NewSQLiteDB(config Config, zapLogger *zap.Logger) (*gorm.DB, error) {
	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	gormLogger := logger.NewGormLogger(
		zapLogger,
		gormlogger.Warn,
		time.Second,
		true,
	)

	database, err := gorm.Open(sqlite.Open(config.Path), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writes; a single connection avoids busy errors
	// under concurrent task commits.
	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sql db instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(&model.TaskModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	zapLogger.Info("task database ready",
		zap.String("path", config.Path),
	)

	return database, nil
}
