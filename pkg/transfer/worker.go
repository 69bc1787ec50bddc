package transfer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/cleaner"
	"github.com/David-Botos/captest/pkg/connector"
	"github.com/David-Botos/captest/pkg/model"
)

// tableWriter is the part of the store a worker writes through
type tableWriter interface {
	ExportTable(ctx context.Context, schema, table string, t *model.Table) error
	RecordCleaningOperations(ctx context.Context, runID string, ops []model.CleaningOperation) error
}

// jobProgress holds what earlier attempts of a job completed. A retry
// resumes after the last completed step, so rows already committed to
// the store are not inserted again.
type jobProgress struct {
	table    *model.Table
	rowsRead int
	ops      []model.CleaningOperation
	exported bool
	recorded bool
}

// Worker pulls tables from the warehouse into the store
type Worker struct {
	ID          int
	source      connector.DatabaseConnector
	store       tableWriter
	dataCleaner *cleaner.DataCleaner
	verifier    *Verifier
	logger      *zap.Logger
	settings    *settings
}

// NewWorker creates a new worker
func NewWorker(
	id int,
	source connector.DatabaseConnector,
	st tableWriter,
	dataCleaner *cleaner.DataCleaner,
	verifier *Verifier,
	s *settings,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		ID:          id,
		source:      source,
		store:       st,
		dataCleaner: dataCleaner,
		verifier:    verifier,
		logger:      logger.With(zap.Int("workerID", id)),
		settings:    s,
	}
}

// Start processes jobs until the channel closes or ctx is done
func (w *Worker) Start(ctx context.Context, runID string, jobs <-chan TableJob, results chan<- TransferResult) {
	w.logger.Debug("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker stopping due to context cancellation")
			return

		case job, ok := <-jobs:
			if !ok {
				w.logger.Debug("Worker stopping due to closed job channel")
				return
			}

			result := w.ProcessJob(ctx, runID, job)

			select {
			case results <- result:
			case <-ctx.Done():
				w.logger.Warn("Context cancelled while sending result",
					zap.String("table", job.FullName()))
				return
			}
		}
	}
}

// ProcessJob runs a job, retrying transient failures with a linear backoff.
// Each retry starts at the step that failed.
func (w *Worker) ProcessJob(ctx context.Context, runID string, job TableJob) TransferResult {
	progress := &jobProgress{}
	for {
		result := NewTransferResult(job, w.ID)
		err := w.transferTable(ctx, runID, job, progress, result)
		result.Complete(err)
		if err == nil {
			w.logger.Info("Transferred table",
				zap.String("source", result.Source),
				zap.String("dest", result.Dest),
				zap.Int("rows", result.RowsWritten),
				zap.Duration("duration", result.Duration))
			return *result
		}

		if !IsRetryable(err) || !job.IsRetryable() {
			w.logger.Error("Table transfer failed",
				zap.String("source", result.Source),
				zap.Int("retryCount", job.RetryCount),
				zap.Error(err))
			return *result
		}

		job = job.Retry()
		delay := time.Duration(job.RetryCount) * w.settings.retryDelay
		w.logger.Warn("Retrying table transfer",
			zap.String("source", result.Source),
			zap.Int("retryCount", job.RetryCount),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			result.Complete(ctx.Err())
			return *result
		}
	}
}

func (w *Worker) transferTable(ctx context.Context, runID string, job TableJob, p *jobProgress, result *TransferResult) error {
	if p.table == nil {
		q := connector.BuildTableQuery(w.source.DB(), job.Schema, job.Table, job.Start, job.End)
		q.Location = w.settings.location

		t, err := connector.ReadTable(ctx, w.source.DB(), q, w.logger)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", job.FullName(), err)
		}
		p.rowsRead = t.Len()
		p.ops = w.dataCleaner.Clean(t, job.FullName())
		p.ops = append(p.ops, w.dataCleaner.DropDuplicateTimestamps(t, job.FullName())...)
		p.table = t
	}
	t := p.table
	result.RowsRead = p.rowsRead
	result.CleaningOperations = p.ops
	result.Columns = t.Width()

	if !p.exported {
		if err := w.store.ExportTable(ctx, w.settings.destSchema, job.DestTable(), t); err != nil {
			return fmt.Errorf("failed to write %s: %w", job.DestTable(), err)
		}
		p.exported = true
	}
	result.RowsWritten = t.Len()

	if !p.recorded {
		if err := w.store.RecordCleaningOperations(ctx, runID, p.ops); err != nil {
			return err
		}
		p.recorded = true
	}

	if w.verifier != nil {
		ok, stored, err := w.verifier.VerifyRowCount(ctx, w.settings.destSchema, job.DestTable(), t)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s holds %d rows in the pulled span, expected %d", job.DestTable(), stored, t.Len())
		}
	}
	return nil
}
