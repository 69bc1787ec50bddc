package transfer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/cleaner"
	"github.com/David-Botos/captest/pkg/connector"
	"github.com/David-Botos/captest/pkg/store"
)

// settings shared by a manager's workers
type settings struct {
	location   *time.Location
	destSchema string
	retryDelay time.Duration
	verify     bool
}

// TransferManager pulls measured-data tables from a warehouse into the store
// with a pool of workers
type TransferManager struct {
	source      connector.DatabaseConnector
	store       *store.Store
	dataCleaner *cleaner.DataCleaner
	logger      *zap.Logger
	workerCount int
	settings    settings
}

// NewTransferManager creates a new transfer manager
func NewTransferManager(source connector.DatabaseConnector, st *store.Store, logger *zap.Logger) (*TransferManager, error) {
	if source == nil {
		return nil, errors.New("source connector cannot be nil")
	}
	if st == nil {
		return nil, errors.New("store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	logger = logger.Named("transfer")

	return &TransferManager{
		source:      source,
		store:       st,
		dataCleaner: cleaner.NewDataCleaner(logger),
		logger:      logger,
		workerCount: 4,
		settings: settings{
			retryDelay: time.Second,
			verify:     true,
		},
	}, nil
}

// WithWorkerCount sets the number of worker goroutines
func (tm *TransferManager) WithWorkerCount(count int) *TransferManager {
	if count > 0 {
		tm.workerCount = count
	}
	return tm
}

// WithLocation sets the zone pulled timestamps are converted to
func (tm *TransferManager) WithLocation(loc *time.Location) *TransferManager {
	tm.settings.location = loc
	return tm
}

// WithDestSchema sets the store schema tables are written to
func (tm *TransferManager) WithDestSchema(schema string) *TransferManager {
	tm.settings.destSchema = schema
	return tm
}

// WithRetryDelay sets the base delay between attempts of a failed job
func (tm *TransferManager) WithRetryDelay(delay time.Duration) *TransferManager {
	tm.settings.retryDelay = delay
	return tm
}

// WithVerification toggles the row count check after each table
func (tm *TransferManager) WithVerification(verify bool) *TransferManager {
	tm.settings.verify = verify
	return tm
}

// TransferTables pulls the given tables of schema, limited to [start, end)
func (tm *TransferManager) TransferTables(ctx context.Context, runID, schema string, tables []string, start, end time.Time) (*Summary, error) {
	jobs := make([]TableJob, len(tables))
	for i, table := range tables {
		jobs[i] = NewTableJob(schema, table).WithWindow(start, end)
	}
	return tm.Transfer(ctx, runID, jobs)
}

// Transfer runs jobs on the worker pool. Failed tables are reported in the
// summary; the error is non-nil only when ctx ends the run early.
func (tm *TransferManager) Transfer(ctx context.Context, runID string, jobs []TableJob) (*Summary, error) {
	summary := NewSummary(runID)
	if len(jobs) == 0 {
		summary.Complete()
		return summary, nil
	}

	tm.logger.Info("Starting transfer",
		zap.String("run_id", runID),
		zap.Int("tables", len(jobs)),
		zap.Int("workers", tm.workerCount))

	var verifier *Verifier
	if tm.settings.verify {
		verifier = NewVerifier(tm.store.DB(), tm.logger)
	}

	jobQueue := make(chan TableJob, len(jobs))
	resultQueue := make(chan TransferResult, len(jobs))
	for _, job := range jobs {
		jobQueue <- job
	}
	close(jobQueue)

	workerCount := min(tm.workerCount, len(jobs))
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		worker := NewWorker(i, tm.source, tm.store, tm.dataCleaner, verifier, &tm.settings, tm.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Start(ctx, runID, jobQueue, resultQueue)
		}()
	}
	go func() {
		wg.Wait()
		close(resultQueue)
	}()

	for result := range resultQueue {
		summary.Add(result)
	}
	summary.Complete()

	tm.logger.Info("Transfer completed",
		zap.String("run_id", runID),
		zap.Int("successfulTables", summary.Successful),
		zap.Int("failedTables", summary.Failed),
		zap.Int64("rowsWritten", summary.RowsWritten),
		zap.Duration("duration", summary.Duration))

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}
