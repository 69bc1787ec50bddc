package transfer

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/David-Botos/captest/pkg/model"
)

// TableJob is one warehouse table of measured data to pull into the store
type TableJob struct {
	ID         string    // Unique job identifier
	Schema     string    // Warehouse schema
	Table      string    // Warehouse table
	Dest       string    // Store table; empty uses Table
	Start      time.Time // First timestamp to pull; zero is open
	End        time.Time // Timestamp to stop before; zero is open
	CreatedAt  time.Time // Job creation timestamp
	RetryCount int       // Number of retries attempted
	MaxRetries int       // Maximum allowed retries
}

// NewTableJob creates a new table job with defaults
func NewTableJob(schema, table string) TableJob {
	return TableJob{
		ID:         uuid.New().String(),
		Schema:     schema,
		Table:      table,
		CreatedAt:  time.Now(),
		MaxRetries: 3,
	}
}

// WithWindow limits the job to timestamps in [start, end)
func (j TableJob) WithWindow(start, end time.Time) TableJob {
	j.Start = start
	j.End = end
	return j
}

// WithDest sets the store table name
func (j TableJob) WithDest(dest string) TableJob {
	j.Dest = dest
	return j
}

// WithMaxRetries sets the maximum retry count and returns the modified job
func (j TableJob) WithMaxRetries(maxRetries int) TableJob {
	j.MaxRetries = maxRetries
	return j
}

// IsRetryable checks if the job can be retried
func (j TableJob) IsRetryable() bool {
	return j.RetryCount < j.MaxRetries
}

// Retry increments the retry count and returns the modified job
func (j TableJob) Retry() TableJob {
	j.RetryCount++
	return j
}

// FullName returns the fully qualified warehouse table name
func (j TableJob) FullName() string {
	if j.Schema == "" {
		return j.Table
	}
	return fmt.Sprintf("%s.%s", j.Schema, j.Table)
}

// DestTable returns the store table the job writes to
func (j TableJob) DestTable() string {
	if j.Dest == "" {
		return j.Table
	}
	return j.Dest
}

// TransferResult represents the result of a table transfer
type TransferResult struct {
	JobID              string
	Source             string
	Dest               string
	Success            bool
	RowsRead           int
	RowsWritten        int
	Columns            int
	CleaningOperations []model.CleaningOperation
	Err                error
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
	RetryCount         int
	WorkerID           int
}

// NewTransferResult initializes a transfer result for a job
func NewTransferResult(job TableJob, workerID int) *TransferResult {
	return &TransferResult{
		JobID:      job.ID,
		Source:     job.FullName(),
		Dest:       job.DestTable(),
		StartTime:  time.Now(),
		RetryCount: job.RetryCount,
		WorkerID:   workerID,
	}
}

// Complete marks the transfer as complete and calculates duration
func (r *TransferResult) Complete(err error) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Err = err
	r.Success = err == nil
}
