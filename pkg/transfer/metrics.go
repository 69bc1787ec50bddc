package transfer

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

// Summary aggregates the results of one transfer run
type Summary struct {
	RunID       string
	Results     []TransferResult
	Successful  int
	Failed      int
	RowsRead    int64
	RowsWritten int64
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}

// NewSummary starts a summary for runID
func NewSummary(runID string) *Summary {
	return &Summary{RunID: runID, StartTime: time.Now()}
}

// Add records a table result
func (s *Summary) Add(result TransferResult) {
	s.Results = append(s.Results, result)
	if result.Success {
		s.Successful++
	} else {
		s.Failed++
	}
	s.RowsRead += int64(result.RowsRead)
	s.RowsWritten += int64(result.RowsWritten)
}

// Complete stamps the end of the run
func (s *Summary) Complete() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// Result returns the result for a warehouse table, nil when it was not part of the run
func (s *Summary) Result(source string) *TransferResult {
	for i := range s.Results {
		if s.Results[i].Source == source {
			return &s.Results[i]
		}
	}
	return nil
}

// Report renders one line per table
func (s *Summary) Report() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "source\tdest\trows read\trows written\tretries\tstatus")
	for _, r := range s.Results {
		status := "ok"
		if !r.Success {
			status = "failed"
			if r.Err != nil {
				status = "failed: " + r.Err.Error()
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", r.Source, r.Dest, r.RowsRead, r.RowsWritten, r.RetryCount, status)
	}
	w.Flush()
	fmt.Fprintf(&sb, "%d succeeded, %d failed, %d rows written in %s\n",
		s.Successful, s.Failed, s.RowsWritten, s.Duration.Round(time.Millisecond))
	return sb.String()
}
