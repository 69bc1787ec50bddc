// pkg/connector/table.go
package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/converter"
	"github.com/David-Botos/captest/pkg/model"
)

// ErrNoTimestampColumn is returned when a query result lacks the timestamp column
var ErrNoTimestampColumn = errors.New("timestamp column not found in result")

// TableQuery describes a query whose rows are (timestamp, value...) records
type TableQuery struct {
	Query string
	Args  []interface{}
	// Name of the timestamp column; empty uses the first result column
	TimestampColumn string
	// Zone the index is converted to; nil keeps the driver's zone
	Location *time.Location
}

// BuildTableQuery selects every column of schema.table ordered by the
// timestamp column, optionally limited to [start, end). Zero bounds are open.
func BuildTableQuery(db *sqlx.DB, schema, table string, start, end time.Time) TableQuery {
	name := converter.QuoteIdentifier(table)
	if schema != "" {
		name = converter.QuoteIdentifier(schema) + "." + name
	}
	ts := converter.QuoteIdentifier(model.TimestampColumn)

	var where []string
	var args []interface{}
	if !start.IsZero() {
		where = append(where, ts+" >= ?")
		args = append(args, start)
	}
	if !end.IsZero() {
		where = append(where, ts+" < ?")
		args = append(args, end)
	}

	query := "SELECT * FROM " + name
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + ts

	return TableQuery{
		Query:           db.Rebind(query),
		Args:            args,
		TimestampColumn: model.TimestampColumn,
	}
}

// ReadTable runs q and collects the result into a Table. NULL values become
// missing; a column is int when every present value scanned as an integer.
// Rows are sorted by timestamp.
func ReadTable(ctx context.Context, db *sqlx.DB, q TableQuery, logger *zap.Logger) (*model.Table, error) {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("table-reader")
	conv := converter.NewTypeConverter(logger)

	rows, err := db.QueryxContext(ctx, q.Query, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query table: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get result columns: %w", err)
	}
	tsIdx := 0
	if q.TimestampColumn != "" {
		tsIdx = -1
		for i, n := range names {
			if strings.EqualFold(n, q.TimestampColumn) {
				tsIdx = i
				break
			}
		}
	}
	if tsIdx < 0 || len(names) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoTimestampColumn, q.TimestampColumn)
	}

	var index []time.Time
	values := make([][]float64, len(names))
	allInt := make([]bool, len(names))
	present := make([]bool, len(names))
	for i := range allInt {
		allInt[i] = true
	}

	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", len(index), err)
		}
		ts, err := conv.FromSQLTime(row[tsIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(index), err)
		}
		if q.Location != nil {
			ts = ts.In(q.Location)
		}
		index = append(index, ts)

		for i, raw := range row {
			if i == tsIdx {
				continue
			}
			v, isInt, err := converter.FromSQLValue(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", len(index)-1, names[i], err)
			}
			if raw != nil {
				present[i] = true
				allInt[i] = allInt[i] && isInt
			}
			values[i] = append(values[i], v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	t := model.NewTable(index)
	t.Location = q.Location
	for i, name := range names {
		if i == tsIdx {
			continue
		}
		kind := model.KindFloat
		if allInt[i] && present[i] {
			kind = model.KindInt
		}
		vals := values[i]
		if vals == nil {
			vals = []float64{}
		}
		if err := t.AddColumn(model.NewSeries(name, kind, vals)); err != nil {
			return nil, fmt.Errorf("failed to add column %s: %w", name, err)
		}
	}
	t.SortByIndex()

	logger.Debug("Read table",
		zap.Int("rows", t.Len()),
		zap.Int("columns", t.Width()))
	return t, nil
}
