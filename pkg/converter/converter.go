// pkg/converter/converter.go
package converter

import (
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/model"
)

// TypeConverter handles coercion of raw cells and mapping of series kinds to SQL types
type TypeConverter struct {
	logger *zap.Logger
	// Configuration options
	config TypeConverterConfig
}

// TypeConverterConfig provides configuration options for type conversion
type TypeConverterConfig struct {
	// Zone applied to timestamps that carry no offset
	DefaultTimezone string
	// Whether "1,000" style cells are accepted as numbers
	AllowThousandsSeparator bool
	// Whether a day/month/year reading is attempted when month/day/year fails
	DayFirstFallback bool
	// SQL type used for the timestamp column of exported tables
	TimestampSQLType string
}

// DefaultConfig returns the default configuration
func DefaultConfig() TypeConverterConfig {
	return TypeConverterConfig{
		DefaultTimezone:         "UTC",
		AllowThousandsSeparator: true,
		DayFirstFallback:        true,
		TimestampSQLType:        "TIMESTAMP",
	}
}

// NewTypeConverter creates a new TypeConverter with default configuration
func NewTypeConverter(logger *zap.Logger) *TypeConverter {
	return NewTypeConverterWithConfig(logger, DefaultConfig())
}

// NewTypeConverterWithConfig creates a TypeConverter with custom configuration
func NewTypeConverterWithConfig(logger *zap.Logger, config TypeConverterConfig) *TypeConverter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypeConverter{
		logger: logger,
		config: config,
	}
}

// Config returns the converter configuration
func (c *TypeConverter) Config() TypeConverterConfig {
	return c.config
}

// Location resolves DefaultTimezone, falling back to UTC when it is unknown
func (c *TypeConverter) Location() *time.Location {
	if c.config.DefaultTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.config.DefaultTimezone)
	if err != nil {
		c.logger.Warn("Unknown timezone, using UTC",
			zap.String("timezone", c.config.DefaultTimezone),
			zap.Error(err))
		return time.UTC
	}
	return loc
}

// MapKindToSQL converts a series kind to a SQL column type
func (c *TypeConverter) MapKindToSQL(kind model.Kind) (string, error) {
	switch kind {
	case model.KindInt:
		return "BIGINT", nil
	case model.KindFloat:
		return "DOUBLE PRECISION", nil
	default:
		c.logger.Warn("Unknown series kind encountered",
			zap.Stringer("kind", kind))
		return "DOUBLE PRECISION", fmt.Errorf("unknown series kind: %s (mapped to DOUBLE PRECISION as fallback)", kind)
	}
}

// FillSQLTypes sets SQLType on every column of metadata that lacks one
func (c *TypeConverter) FillSQLTypes(metadata *model.TableMetadata) {
	for i := range metadata.Columns {
		col := &metadata.Columns[i]
		if col.SQLType != "" {
			continue
		}
		if col.IsTimestamp {
			col.SQLType = c.config.TimestampSQLType
			continue
		}
		col.SQLType, _ = c.MapKindToSQL(col.Kind)
	}
}

// GenerateColumnDefinitions creates SQL column definitions
func (c *TypeConverter) GenerateColumnDefinitions(metadata *model.TableMetadata) ([]string, error) {
	c.FillSQLTypes(metadata)
	definitions := make([]string, 0, len(metadata.Columns))

	for _, col := range metadata.Columns {
		nullability := "NULL"
		if col.IsPrimaryKey || !col.Nullable {
			nullability = "NOT NULL"
		}

		def := fmt.Sprintf("%s %s %s",
			QuoteIdentifier(col.Name),
			col.SQLType,
			nullability)

		definitions = append(definitions, def)
	}

	return definitions, nil
}

// QuoteIdentifier quotes and escapes a SQL identifier. Raw sensor names keep
// their case and punctuation.
func QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}
