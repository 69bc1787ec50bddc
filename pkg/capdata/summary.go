// pkg/capdata/summary.go
package capdata

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/David-Botos/captest/pkg/model"
)

// Summary returns a copy of the audit trail
func (cd *CapData) Summary() []model.FilterStep {
	return append([]model.FilterStep(nil), cd.summary...)
}

// SummaryReport renders the audit trail as an aligned text table
func (cd *CapData) SummaryReport() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "name\tfilter\trows remaining\trows removed\targuments")
	for _, step := range cd.summary {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			step.Name, step.Operation, step.RowsRemaining, step.RowsRemoved, step.Arguments)
	}
	w.Flush()
	return b.String()
}
