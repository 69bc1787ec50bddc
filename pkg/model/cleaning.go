// pkg/model/cleaning.go
package model

import (
	"time"
)

// CleaningOperation represents a single cleaning step applied to loaded data
type CleaningOperation struct {
	Source       string    // File or table the step ran against
	ColumnName   string    // Column affected (empty for row-level steps)
	Operation    string    // Type of cleaning performed (e.g., "drop_empty_rows")
	Reason       string    // Why the step was needed
	RowsAffected int       // Rows (or values) changed or removed
	CleanedAt    time.Time // When the step ran
}

// FilterStep is one entry of a capacity-test filtering audit trail
type FilterStep struct {
	Name          string    // Name of the CapData the filter ran on
	Operation     string    // Filter name, or "count" for the initial entry
	RowsRemaining int       // Rows left after the step
	RowsRemoved   int       // Rows removed by the step
	Arguments     string    // Rendered arguments of the call
	RecordedAt    time.Time // When the step was appended
}

// ReportingCondition is one row of reporting conditions. Period is the zero
// time when the conditions were not aggregated by period.
type ReportingCondition struct {
	Period time.Time
	POA    float64
	TAmb   float64
	WVel   float64
}

// ReportingConditions holds the representative operating points used as the
// regression operating point
type ReportingConditions struct {
	Freq string // Frequency alias used to group, empty when unaggregated
	Rows []ReportingCondition
}
