// pkg/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/converter"
)

// Tables written by the store
const (
	FilterStepsTable         = "filter_steps"
	ReportingConditionsTable = "reporting_conditions"
	CleaningOperationsTable  = "cleaning_operations"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS filter_steps (
		run_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		capdata_name TEXT NOT NULL,
		operation TEXT NOT NULL,
		rows_remaining INTEGER NOT NULL,
		rows_removed INTEGER NOT NULL,
		arguments TEXT NOT NULL,
		recorded_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reporting_conditions (
		run_id TEXT NOT NULL,
		capdata_name TEXT NOT NULL,
		seq INTEGER NOT NULL,
		freq TEXT NOT NULL,
		period TIMESTAMP NULL,
		poa DOUBLE PRECISION NULL,
		t_amb DOUBLE PRECISION NULL,
		w_vel DOUBLE PRECISION NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cleaning_operations (
		run_id TEXT NOT NULL,
		source TEXT NOT NULL,
		column_name TEXT NOT NULL,
		operation TEXT NOT NULL,
		reason TEXT NOT NULL,
		rows_affected INTEGER NOT NULL,
		cleaned_at TIMESTAMP NOT NULL
	)`,
}

// Bind parameters a single statement may carry, per driver
var maxParamsByDriver = map[string]int{
	"sqlite3":  32766,
	"pgx":      65535,
	"postgres": 65535,
}

// defaultMaxParams applies to drivers without an entry in maxParamsByDriver
const defaultMaxParams = 32766

// Config controls store behaviour
type Config struct {
	// Timeout applied to each store call
	Timeout time.Duration
	// Rows per INSERT batch when exporting tables. Wide tables get smaller
	// batches so a statement stays within the driver's bind parameter limit.
	BatchSize int
	// Converter settings for DDL generation
	Converter converter.TypeConverterConfig
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		BatchSize: 500,
		Converter: converter.DefaultConfig(),
	}
}

// Store persists audit trails, reporting conditions and tables to a SQL database
type Store struct {
	db        *sqlx.DB
	logger    *zap.Logger
	config    Config
	converter *converter.TypeConverter
}

// New creates a Store over db
func New(db *sqlx.DB, config Config, logger *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	logger = logger.Named("store")
	return &Store{
		db:        db,
		logger:    logger,
		config:    config,
		converter: converter.NewTypeConverterWithConfig(logger, config.Converter),
	}, nil
}

// NewRunID returns an identifier grouping the records of one run
func NewRunID() string {
	return uuid.NewString()
}

// DB returns the underlying connection
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// EnsureSchema creates the store's tables when they do not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create store schema: %w", err)
		}
	}
	s.logger.Debug("Ensured store schema")
	return nil
}

// inTx runs fn in a transaction, rolling back when it fails
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.NamedError("cause", err))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// maxParams returns the bind parameter limit of the store's driver
func (s *Store) maxParams() int {
	if n, ok := maxParamsByDriver[s.db.DriverName()]; ok {
		return n
	}
	return defaultMaxParams
}

// rowsPerBatch returns how many rows of width params fit one INSERT
func (s *Store) rowsPerBatch(width int) int {
	return max(1, min(s.config.BatchSize, s.maxParams()/max(1, width)))
}

// placeholders returns n comma-separated bind markers
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
