package transfer

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/David-Botos/captest/pkg/cleaner"
	"github.com/David-Botos/captest/pkg/connector"
	"github.com/David-Botos/captest/pkg/model"
	"github.com/David-Botos/captest/pkg/store"
)

// sqliteSource stands in for the warehouse
type sqliteSource struct {
	db *sqlx.DB
}

func (s *sqliteSource) DB() *sqlx.DB                       { return s.db }
func (s *sqliteSource) Validate(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *sqliteSource) Close() error                       { return s.db.Close() }

var start = time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)

func openMemory(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func newSource(t *testing.T) *sqliteSource {
	t.Helper()
	db := openMemory(t)
	db.MustExec(`CREATE TABLE met (
		"timestamp" TIMESTAMP NOT NULL,
		"irr-poa-" DOUBLE PRECISION NULL,
		"spare" DOUBLE PRECISION NULL
	)`)
	db.MustExec(`CREATE TABLE meter (
		"timestamp" TIMESTAMP NOT NULL,
		"real_pwr-mtr-" DOUBLE PRECISION NULL
	)`)
	for i := 0; i < 6; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		var irr interface{} = 800 + 10*float64(i)
		if i == 2 {
			irr = nil
		}
		db.MustExec(`INSERT INTO met VALUES (?, ?, NULL)`, ts, irr)
		db.MustExec(`INSERT INTO meter VALUES (?, ?)`, ts, 4000+float64(i))
	}
	return &sqliteSource{db: db}
}

func newManager(t *testing.T, src connector.DatabaseConnector) (*TransferManager, *store.Store) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	st, err := store.New(openMemory(t), store.DefaultConfig(), logger)
	require.NoError(t, err)
	require.NoError(t, st.EnsureSchema(context.Background()))

	tm, err := NewTransferManager(src, st, logger)
	require.NoError(t, err)
	return tm.WithWorkerCount(2).WithRetryDelay(time.Millisecond), st
}

func TestNewTransferManagerValidation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	_, err := NewTransferManager(nil, &store.Store{}, logger)
	assert.Error(t, err)
	_, err = NewTransferManager(newSource(t), nil, logger)
	assert.Error(t, err)
	_, err = NewTransferManager(newSource(t), &store.Store{}, nil)
	assert.Error(t, err)
}

func TestTransferTables(t *testing.T) {
	tm, st := newManager(t, newSource(t))
	ctx := context.Background()
	runID := store.NewRunID()

	summary, err := tm.TransferTables(ctx, runID, "", []string{"met", "meter", "missing"}, time.Time{}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, int64(11), summary.RowsWritten)

	met := summary.Result("met")
	require.NotNil(t, met)
	assert.True(t, met.Success)
	assert.Equal(t, 6, met.RowsRead)
	assert.Equal(t, 5, met.RowsWritten)
	assert.Equal(t, 1, met.Columns)
	assert.Len(t, met.CleaningOperations, 2)

	missing := summary.Result("missing")
	require.NotNil(t, missing)
	assert.False(t, missing.Success)
	assert.Error(t, missing.Err)
	assert.Zero(t, missing.RetryCount)
	assert.Nil(t, summary.Result("elsewhere"))

	got, err := connector.ReadTable(ctx, st.DB(),
		connector.BuildTableQuery(st.DB(), "", "met", time.Time{}, time.Time{}), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Len())
	assert.Equal(t, []string{"irr-poa-"}, got.ColumnNames())

	var ops int
	require.NoError(t, st.DB().Get(&ops, `SELECT COUNT(*) FROM cleaning_operations WHERE run_id = ?`, runID))
	assert.Equal(t, 2, ops)

	report := summary.Report()
	assert.Contains(t, report, "source")
	assert.Contains(t, report, "2 succeeded, 1 failed, 11 rows written")
}

func TestTransferWindowAndDest(t *testing.T) {
	tm, st := newManager(t, newSource(t))
	ctx := context.Background()

	job := NewTableJob("", "meter").
		WithWindow(start.Add(time.Minute), start.Add(4*time.Minute)).
		WithDest("meter_window")
	summary, err := tm.WithVerification(false).Transfer(ctx, "run", []TableJob{job})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Successful)
	assert.Equal(t, "meter_window", summary.Results[0].Dest)

	var count int
	require.NoError(t, st.DB().Get(&count, `SELECT COUNT(*) FROM meter_window`))
	assert.Equal(t, 3, count)

	// a new job over the same span collides with the stored timestamps
	summary, err = tm.Transfer(ctx, "run", []TableJob{job})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
}

// flakyStore fails RecordCleaningOperations with a dropped connection a set
// number of times before passing calls through
type flakyStore struct {
	*store.Store
	failures int
	exports  int
}

func (f *flakyStore) ExportTable(ctx context.Context, schema, table string, tbl *model.Table) error {
	f.exports++
	return f.Store.ExportTable(ctx, schema, table, tbl)
}

func (f *flakyStore) RecordCleaningOperations(ctx context.Context, runID string, ops []model.CleaningOperation) error {
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("record cleaning: %w", driver.ErrBadConn)
	}
	return f.Store.RecordCleaningOperations(ctx, runID, ops)
}

func TestProcessJobResumesAfterExport(t *testing.T) {
	logger := zaptest.NewLogger(t)
	st, err := store.New(openMemory(t), store.DefaultConfig(), logger)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, st.EnsureSchema(ctx))

	flaky := &flakyStore{Store: st, failures: 1}
	w := NewWorker(0, newSource(t), flaky, cleaner.NewDataCleaner(logger), NewVerifier(st.DB(), logger),
		&settings{retryDelay: time.Millisecond}, logger)

	result := w.ProcessJob(ctx, "run", NewTableJob("", "met"))
	require.NoError(t, result.Err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.RetryCount)
	assert.Equal(t, 1, flaky.exports)
	assert.Equal(t, 6, result.RowsRead)
	assert.Equal(t, 5, result.RowsWritten)

	var count, ops int
	require.NoError(t, st.DB().Get(&count, `SELECT COUNT(*) FROM met`))
	assert.Equal(t, 5, count)
	require.NoError(t, st.DB().Get(&ops, `SELECT COUNT(*) FROM cleaning_operations WHERE run_id = ?`, "run"))
	assert.Equal(t, 2, ops)
}

func TestTransferNoJobs(t *testing.T) {
	tm, _ := newManager(t, newSource(t))
	summary, err := tm.Transfer(context.Background(), "run", nil)
	require.NoError(t, err)
	assert.Empty(t, summary.Results)
}

func TestTransferCancelled(t *testing.T) {
	tm, _ := newManager(t, newSource(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := tm.TransferTables(ctx, "run", "", []string{"met", "meter"}, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Successful)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{fmt.Errorf("read: %w", connector.ErrNoTimestampColumn), false},
		{fmt.Errorf("query: %w", driver.ErrBadConn), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("database is locked"), true},
		{errors.New("no such table: missing"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryable(tt.err), "%v", tt.err)
	}
}

func TestTableJob(t *testing.T) {
	job := NewTableJob("PLANT", "MET").WithMaxRetries(1)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "PLANT.MET", job.FullName())
	assert.Equal(t, "MET", job.DestTable())
	assert.True(t, job.IsRetryable())

	job = job.Retry()
	assert.Equal(t, 1, job.RetryCount)
	assert.False(t, job.IsRetryable())
}
