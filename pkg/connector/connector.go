// pkg/connector/connector.go
package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when a connection is requested for a
// database with no configuration
var ErrNotConfigured = errors.New("database is not configured")

const defaultPingTimeout = 5 * time.Second

// DatabaseConnector is a warehouse or store connection
type DatabaseConnector interface {
	// DB returns the underlying database connection
	DB() *sqlx.DB

	// Validate verifies the connection
	Validate(ctx context.Context) error

	// Close closes the connection and releases resources
	Close() error
}

// PoolSettings bounds a connection pool. Zero values keep the driver defaults.
type PoolSettings struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

func (p PoolSettings) apply(db *sqlx.DB) {
	if p.MaxOpen > 0 {
		db.SetMaxOpenConns(p.MaxOpen)
	}
	if p.MaxIdle > 0 {
		db.SetMaxIdleConns(p.MaxIdle)
	}
	if p.MaxLifetime > 0 {
		db.SetConnMaxLifetime(p.MaxLifetime)
	}
	if p.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(p.MaxIdleTime)
	}
}

// open connects with driverName, applies pool and pings within timeout.
// The database is closed again when the ping fails.
func open(ctx context.Context, driverName, dsn string, pool PoolSettings, timeout time.Duration) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s connection: %w", driverName, err)
	}
	pool.apply(db)

	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("ping timed out after %v: %w", timeout, err)
		}
		return nil, err
	}
	return db, nil
}

// logPoolStats logs connection pool statistics at debug level
func logPoolStats(logger *zap.Logger, name string, db *sqlx.DB) {
	stats := db.Stats()
	logger.Debug("Connection pool stats",
		zap.String("database", name),
		zap.Int("open", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
		zap.Int64("waits", stats.WaitCount),
		zap.Duration("wait_duration", stats.WaitDuration),
	)
}
