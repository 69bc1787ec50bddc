// pkg/cleaner/cleaner.go
package cleaner

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/model"
)

// DataCleaner applies table-level cleaning steps to freshly read data and
// reports every step it took
type DataCleaner struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewDataCleaner creates a new DataCleaner instance. A nil logger discards
// the cleaner's logs.
func NewDataCleaner(logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DataCleaner{
		logger: logger,
		now:    time.Now,
	}
}

// Clean runs the steps every freshly read table goes through: drop columns
// with no numeric value, drop rows with no value, then promote integer
// columns that hold missing values.
func (c *DataCleaner) Clean(t *model.Table, source string) []model.CleaningOperation {
	var operations []model.CleaningOperation
	operations = append(operations, c.DropNonNumericColumns(t, source)...)
	operations = append(operations, c.DropEmptyRows(t, source)...)
	operations = append(operations, c.PromoteKinds(t, source)...)

	if len(operations) > 0 {
		c.logger.Debug("Cleaned table",
			zap.String("source", source),
			zap.Int("operations", len(operations)),
			zap.Int("rows", t.Len()),
			zap.Int("columns", t.Width()))
	}
	return operations
}

// DropNonNumericColumns removes columns in which no cell coerced to a number
func (c *DataCleaner) DropNonNumericColumns(t *model.Table, source string) []model.CleaningOperation {
	var names []string
	for _, col := range t.Columns {
		if col.AllMissing() {
			names = append(names, col.Name)
		}
	}
	if len(names) == 0 {
		return nil
	}

	dropped := t.DropColumns(names...)
	operations := make([]model.CleaningOperation, 0, len(dropped))
	for _, name := range dropped {
		c.logger.Debug("Dropping non-numeric column",
			zap.String("source", source),
			zap.String("column", name))
		operations = append(operations, c.operation(source, name, "drop_column", "no_numeric_values", t.Len()))
	}
	return operations
}

// DropEmptyRows removes rows where every column is missing
func (c *DataCleaner) DropEmptyRows(t *model.Table, source string) []model.CleaningOperation {
	if t.Len() == 0 {
		return nil
	}
	before := t.Len()
	kept := t.FilterRows(func(i int) bool { return !t.IsEmptyRow(i) })
	removed := before - kept.Len()
	if removed == 0 {
		return nil
	}

	t.Index = kept.Index
	t.Columns = kept.Columns
	c.logger.Debug("Dropped empty rows",
		zap.String("source", source),
		zap.Int("removed", removed))
	return []model.CleaningOperation{c.operation(source, "", "drop_rows", "all_values_missing", removed)}
}

// DropDuplicateTimestamps keeps the first row for every repeated timestamp
func (c *DataCleaner) DropDuplicateTimestamps(t *model.Table, source string) []model.CleaningOperation {
	dups := t.DuplicateRows()
	if len(dups) == 0 {
		return nil
	}

	drop := make(map[int]bool, len(dups))
	for _, i := range dups {
		drop[i] = true
	}
	kept := t.FilterRows(func(i int) bool { return !drop[i] })
	t.Index = kept.Index
	t.Columns = kept.Columns

	c.logger.Info("Dropped duplicate timestamps",
		zap.String("source", source),
		zap.Int("removed", len(dups)))
	return []model.CleaningOperation{c.operation(source, "", "drop_rows", "duplicate_timestamp", len(dups))}
}

// PromoteKinds converts integer columns holding missing values to float
func (c *DataCleaner) PromoteKinds(t *model.Table, source string) []model.CleaningOperation {
	var operations []model.CleaningOperation
	for _, col := range t.Columns {
		if col.Promote() {
			operations = append(operations, c.operation(source, col.Name, "promote_kind", "int_with_missing_values", 0))
		}
	}
	return operations
}

// ScaleColumn divides every value of column by factor. A missing column or a
// zero factor is a no-op.
func (c *DataCleaner) ScaleColumn(t *model.Table, source, column string, factor float64) []model.CleaningOperation {
	col := t.Column(column)
	if col == nil || factor == 0 || factor == 1 {
		return nil
	}

	for i, v := range col.Values {
		col.Values[i] = v / factor
	}
	col.Kind = model.KindFloat

	c.logger.Debug("Scaled column",
		zap.String("source", source),
		zap.String("column", column),
		zap.Float64("factor", factor))
	return []model.CleaningOperation{c.operation(source, column, "scale",
		fmt.Sprintf("divided_by_%g", factor), t.Len())}
}

// RenameColumn renames from to to. A missing column is a no-op; renaming onto
// an existing name fails.
func (c *DataCleaner) RenameColumn(t *model.Table, source, from, to string) ([]model.CleaningOperation, error) {
	col := t.Column(from)
	if col == nil || from == to {
		return nil, nil
	}
	if t.HasColumn(to) {
		return nil, fmt.Errorf("rename %q: %w: %q", from, model.ErrDuplicateName, to)
	}

	col.Name = to
	return []model.CleaningOperation{c.operation(source, to, "rename", "renamed_from_"+from, 0)}, nil
}
