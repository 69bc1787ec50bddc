// pkg/store/records.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/converter"
	"github.com/David-Botos/captest/pkg/model"
)

// RecordFilterSteps batch inserts an audit trail in one transaction. Steps
// keep their order through seq.
func (s *Store) RecordFilterSteps(ctx context.Context, runID, sessionID string, steps []model.FilterStep) error {
	if len(steps) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
			INSERT INTO filter_steps
			(run_id, session_id, seq, capdata_name, operation, rows_remaining,
			 rows_removed, arguments, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`))
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, step := range steps {
			if _, err := stmt.ExecContext(ctx,
				runID,
				sessionID,
				i,
				step.Name,
				step.Operation,
				step.RowsRemaining,
				step.RowsRemoved,
				step.Arguments,
				step.RecordedAt,
			); err != nil {
				return fmt.Errorf("failed to insert filter step: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Recorded filter steps",
		zap.String("run_id", runID),
		zap.Int("count", len(steps)))
	return nil
}

// FilterSteps returns the steps recorded for a run, in order
func (s *Store) FilterSteps(ctx context.Context, runID string) ([]model.FilterStep, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var rows []struct {
		Seq           int       `db:"seq"`
		Name          string    `db:"capdata_name"`
		Operation     string    `db:"operation"`
		RowsRemaining int       `db:"rows_remaining"`
		RowsRemoved   int       `db:"rows_removed"`
		Arguments     string    `db:"arguments"`
		RecordedAt    time.Time `db:"recorded_at"`
	}
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT seq, capdata_name, operation, rows_remaining, rows_removed, arguments, recorded_at
		FROM filter_steps WHERE run_id = ? ORDER BY seq
	`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read filter steps: %w", err)
	}

	steps := make([]model.FilterStep, len(rows))
	for i, r := range rows {
		steps[i] = model.FilterStep{
			Name:          r.Name,
			Operation:     r.Operation,
			RowsRemaining: r.RowsRemaining,
			RowsRemoved:   r.RowsRemoved,
			Arguments:     r.Arguments,
			RecordedAt:    r.RecordedAt,
		}
	}
	return steps, nil
}

// RecordReportingConditions stores the rows of rc under name
func (s *Store) RecordReportingConditions(ctx context.Context, runID, name string, rc *model.ReportingConditions) error {
	if rc == nil || len(rc.Rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
			INSERT INTO reporting_conditions
			(run_id, capdata_name, seq, freq, period, poa, t_amb, w_vel)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`))
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, row := range rc.Rows {
			period := sql.NullTime{Time: row.Period, Valid: !row.Period.IsZero()}
			if _, err := stmt.ExecContext(ctx,
				runID,
				name,
				i,
				rc.Freq,
				period,
				converter.ToNullFloat(row.POA),
				converter.ToNullFloat(row.TAmb),
				converter.ToNullFloat(row.WVel),
			); err != nil {
				return fmt.Errorf("failed to insert reporting condition: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Recorded reporting conditions",
		zap.String("run_id", runID),
		zap.String("name", name),
		zap.Int("count", len(rc.Rows)))
	return nil
}

// ReportingConditions reads back the conditions recorded for name in a run
func (s *Store) ReportingConditions(ctx context.Context, runID, name string) (*model.ReportingConditions, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var rows []struct {
		Freq   string          `db:"freq"`
		Period sql.NullTime    `db:"period"`
		POA    sql.NullFloat64 `db:"poa"`
		TAmb   sql.NullFloat64 `db:"t_amb"`
		WVel   sql.NullFloat64 `db:"w_vel"`
	}
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT freq, period, poa, t_amb, w_vel
		FROM reporting_conditions WHERE run_id = ? AND capdata_name = ? ORDER BY seq
	`), runID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read reporting conditions: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no reporting conditions for %s in run %s: %w", name, runID, sql.ErrNoRows)
	}

	rc := &model.ReportingConditions{Freq: rows[0].Freq}
	for _, r := range rows {
		rc.Rows = append(rc.Rows, model.ReportingCondition{
			Period: r.Period.Time,
			POA:    fromNullFloat(r.POA),
			TAmb:   fromNullFloat(r.TAmb),
			WVel:   fromNullFloat(r.WVel),
		})
	}
	return rc, nil
}

func fromNullFloat(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// RecordCleaningOperations stores the cleaning applied while loading
func (s *Store) RecordCleaningOperations(ctx context.Context, runID string, operations []model.CleaningOperation) error {
	if len(operations) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
			INSERT INTO cleaning_operations
			(run_id, source, column_name, operation, reason, rows_affected, cleaned_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`))
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, op := range operations {
			if _, err := stmt.ExecContext(ctx,
				runID,
				op.Source,
				op.ColumnName,
				op.Operation,
				op.Reason,
				op.RowsAffected,
				op.CleanedAt,
			); err != nil {
				return fmt.Errorf("failed to insert cleaning operation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Recorded cleaning operations", zap.Int("count", len(operations)))
	return nil
}
