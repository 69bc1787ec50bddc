// pkg/store/export.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/converter"
	"github.com/David-Botos/captest/pkg/model"
)

// qualifiedName quotes schema and table for use in statements
func qualifiedName(meta *model.TableMetadata) string {
	if meta.Schema == "" {
		return converter.QuoteIdentifier(meta.Table)
	}
	return converter.QuoteIdentifier(meta.Schema) + "." + converter.QuoteIdentifier(meta.Table)
}

// CreateTableSQL returns the DDL for the table described by meta
func (s *Store) CreateTableSQL(meta *model.TableMetadata) (string, error) {
	defs, err := s.converter.GenerateColumnDefinitions(meta)
	if err != nil {
		return "", fmt.Errorf("failed to generate column definitions: %w", err)
	}
	keys := make([]string, len(meta.PrimaryKeys))
	for i, k := range meta.PrimaryKeys {
		keys[i] = converter.QuoteIdentifier(k)
	}
	if len(keys) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(keys, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		qualifiedName(meta), strings.Join(defs, ",\n\t")), nil
}

// ExportTable creates schema.table for t when needed and inserts its rows
// in batches sized to the driver's bind parameter limit. Missing values are written as NULL. Rows whose timestamp
// repeats are rejected by the primary key.
func (s *Store) ExportTable(ctx context.Context, schema, table string, t *model.Table) error {
	if t == nil {
		return fmt.Errorf("table %s cannot be nil", table)
	}
	meta := model.MetadataFor(schema, table, t)
	ddl, err := s.CreateTableSQL(meta)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", meta.QualifiedName(), err)
	}

	cols := make([]string, len(meta.Columns))
	for i, c := range meta.Columns {
		cols[i] = converter.QuoteIdentifier(c.Name)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", qualifiedName(meta), strings.Join(cols, ", "))
	rowMarker := "(" + placeholders(len(cols)) + ")"

	batch := s.rowsPerBatch(len(cols))
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		for start := 0; start < t.Len(); start += batch {
			end := min(start+batch, t.Len())
			markers := make([]string, 0, end-start)
			args := make([]interface{}, 0, (end-start)*len(cols))
			for i := start; i < end; i++ {
				markers = append(markers, rowMarker)
				args = append(args, t.Index[i])
				for _, c := range t.Columns {
					args = append(args, sqlValue(c, i))
				}
			}
			query := tx.Rebind(prefix + strings.Join(markers, ", "))
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to insert rows %d-%d into %s: %w", start, end, meta.QualifiedName(), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Exported table",
		zap.String("table", meta.QualifiedName()),
		zap.Int("rows", t.Len()),
		zap.Int("columns", t.Width()))
	return nil
}

// sqlValue converts the value of c at row i to a driver argument
func sqlValue(c *model.Series, i int) interface{} {
	v := c.Values[i]
	if c.Kind == model.KindInt {
		return sql.NullInt64{Int64: int64(v), Valid: !math.IsNaN(v)}
	}
	return converter.ToNullFloat(v)
}
