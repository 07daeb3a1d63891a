package migration

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/config"
	"github.com/BaSui01/mysteryshopper/internal/database"
)

// NewMigratorFromConfig creates a migrator for the configured SQL journey store
func NewMigratorFromConfig(cfg *config.Config, logger *zap.Logger) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return NewMigratorFromDatabaseConfig(cfg.Store.Database, logger)
}

// NewMigratorFromDatabaseConfig opens the database through internal/database
// and closes it when the migrator is closed
func NewMigratorFromDatabaseConfig(dbCfg config.DatabaseConfig, logger *zap.Logger) (*DefaultMigrator, error) {
	dbType, err := ParseDatabaseType(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}
	// Dialector 只认规范名称
	dbCfg.Driver = string(dbType)

	pool, err := database.Open(dbCfg, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := pool.DB().DB()
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	m, err := NewMigrator(&Config{
		DatabaseType: dbType,
		DB:           sqlDB,
		OnClose:      pool.Close,
		TableName:    "schema_migrations",
		Logger:       logger,
	})
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	return m, nil
}
