// pkg/cleaner/operations.go
package cleaner

import (
	"github.com/David-Botos/captest/pkg/model"
)

// operation builds a cleaning record stamped with the cleaner's clock
func (c *DataCleaner) operation(source, column, op, reason string, affected int) model.CleaningOperation {
	return model.CleaningOperation{
		Source:       source,
		ColumnName:   column,
		Operation:    op,
		Reason:       reason,
		RowsAffected: affected,
		CleanedAt:    c.now(),
	}
}

// CountRemovedRows sums the rows removed by row-dropping operations
func CountRemovedRows(operations []model.CleaningOperation) int {
	total := 0
	for _, op := range operations {
		if op.Operation == "drop_rows" {
			total += op.RowsAffected
		}
	}
	return total
}
