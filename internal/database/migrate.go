// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/hitoshi/taskman/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator はPostgreSQLマイグレーション実行用のmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations はすべてのPostgreSQLマイグレーションを適用する。
// すでに最新の場合はエラーなしで返る。
func RunMigrations(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err == nil {
		slog.Info("migrations applied",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	}
	return nil
}

// Migrate はドライバに応じてスキーマを最新にする。
// PostgreSQLはgolang-migrate、SQLiteは組み込みスキーマを適用する。
func Migrate(ctx context.Context, driver config.DatabaseDriver, databaseURL string) error {
	switch driver {
	case config.DriverPostgres:
		return RunMigrations(databaseURL)
	case config.DriverSQLite:
		db, err := OpenSQLite(ctx, databaseURL)
		if err != nil {
			return err
		}
		return db.Close()
	default:
		return fmt.Errorf("unsupported database driver: %q", driver)
	}
}
