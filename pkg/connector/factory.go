// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/config"
)

// ConnectorFactory creates database connectors
type ConnectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.Config, logger *zap.Logger) *ConnectorFactory {
	if logger == nil {
		logger = zap.L()
	}
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSnowflakeConnector creates a new Snowflake connector
func (f *ConnectorFactory) CreateSnowflakeConnector(ctx context.Context) (*SnowflakeConnector, error) {
	f.logger.Info("Creating Snowflake connector")

	connector, err := NewSnowflakeConnector(ctx, f.cfg.Snowflake, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Snowflake connector: %w", err)
	}

	return connector, nil
}

// CreatePostgresConnector creates a new PostgreSQL connector
func (f *ConnectorFactory) CreatePostgresConnector(ctx context.Context) (*PostgresConnector, error) {
	f.logger.Info("Creating PostgreSQL connector")

	connector, err := NewPostgresConnector(ctx, f.cfg.Postgres, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connector: %w", err)
	}

	return connector, nil
}

// OpenStore opens the database selected by the store configuration.
// The pgx driver without a DSN reuses the Postgres section.
func (f *ConnectorFactory) OpenStore(ctx context.Context) (*sqlx.DB, error) {
	storeCfg := f.cfg.Store
	f.logger.Info("Opening store", zap.String("driver", storeCfg.Driver))

	dsn := storeCfg.DSN
	switch storeCfg.Driver {
	case config.DriverSQLite:
	case config.DriverPostgres:
		if dsn == "" {
			if f.cfg.Postgres == nil {
				return nil, fmt.Errorf("postgres store: %w", ErrNotConfigured)
			}
			dsn = f.cfg.Postgres.ConnectionString()
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", storeCfg.Driver)
	}

	var pool PoolSettings
	if storeCfg.Driver == config.DriverSQLite {
		// One writer at a time
		pool.MaxOpen = 1
	}

	db, err := open(ctx, storeCfg.Driver, dsn, pool, storeCfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	logPoolStats(f.logger, storeCfg.Driver, db)
	return db, nil
}
