package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/converter"
	"github.com/David-Botos/captest/pkg/model"
)

// Verifier checks what landed in the store against what was read
type Verifier struct {
	db      *sqlx.DB
	logger  *zap.Logger
	timeout time.Duration
}

// NewVerifier creates a verifier over the store database
func NewVerifier(db *sqlx.DB, logger *zap.Logger) *Verifier {
	return &Verifier{
		db:      db,
		logger:  logger.Named("verifier"),
		timeout: 30 * time.Second,
	}
}

// WithTimeout sets the timeout for verification queries
func (v *Verifier) WithTimeout(timeout time.Duration) *Verifier {
	v.timeout = timeout
	return v
}

// VerifyRowCount counts the rows of schema.table within the span of t and
// compares them with t's length
func (v *Verifier) VerifyRowCount(ctx context.Context, schema, table string, t *model.Table) (bool, int64, error) {
	first, last, ok := t.Span()
	if !ok {
		return true, 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	name := converter.QuoteIdentifier(table)
	if schema != "" {
		name = converter.QuoteIdentifier(schema) + "." + name
	}
	ts := converter.QuoteIdentifier(model.TimestampColumn)
	query := v.db.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s >= ? AND %s <= ?", name, ts, ts))

	var count int64
	if err := v.db.GetContext(ctx, &count, query, first, last); err != nil {
		return false, 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}

	expected := int64(t.Len())
	if count != expected {
		v.logger.Warn("Row count mismatch",
			zap.String("table", table),
			zap.Int64("expected", expected),
			zap.Int64("stored", count),
			zap.Int64("difference", expected-count))
		return false, count, nil
	}
	v.logger.Debug("Row count verification successful",
		zap.String("table", table),
		zap.Int64("count", count))
	return true, count, nil
}
