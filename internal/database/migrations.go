package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// MigrationsDir is the directory of the embedded migration files
const MigrationsDir = "migrations"

func setupGoose(logger *zap.Logger) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(zap.NewStdLog(logger))

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// RunMigrations executes all pending database migrations
func RunMigrations(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	if err := setupGoose(logger); err != nil {
		return err
	}

	logger.Info("Checking for pending migrations...", zap.String("dir", MigrationsDir))

	if err := goose.UpContext(ctx, db, MigrationsDir); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Migrations completed successfully")
	return nil
}

// GetMigrationStatus logs the current migration status
func GetMigrationStatus(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	if err := setupGoose(logger); err != nil {
		return err
	}

	return goose.StatusContext(ctx, db, MigrationsDir)
}
