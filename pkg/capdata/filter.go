// pkg/capdata/filter.go
package capdata

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/model"
)

// Filter narrows a table to the rows it keeps. It must not modify data.
type Filter func(data *model.Table) (*model.Table, error)

const (
	opCount  = "count"
	noFilter = "no filters"
)

// Apply runs f against DataFiltered and appends one audit entry. The first
// filter after a load or reset is preceded by a "count" entry recording the
// starting row count. A failing filter leaves the table and the trail as
// they were.
func (cd *CapData) Apply(operation, args string, f Filter) error {
	before := cd.DataFiltered.Len()
	out, err := f(cd.DataFiltered)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}

	now := cd.now()
	if len(cd.summary) == 0 {
		cd.summary = append(cd.summary, model.FilterStep{
			Name:          cd.Name,
			Operation:     opCount,
			RowsRemaining: before,
			Arguments:     noFilter,
			RecordedAt:    now,
		})
	}
	cd.DataFiltered = out
	cd.summary = append(cd.summary, model.FilterStep{
		Name:          cd.Name,
		Operation:     operation,
		RowsRemaining: out.Len(),
		RowsRemoved:   before - out.Len(),
		Arguments:     args,
		RecordedAt:    now,
	})

	cd.logger.Debug("Applied filter",
		zap.String("operation", operation),
		zap.String("args", args),
		zap.Int("before", before),
		zap.Int("after", out.Len()))
	return nil
}

// FilterIrr keeps rows whose irradiance lies in [low, high]. A non-zero
// refVal makes the bounds fractions of refVal. colName picks the column by
// group key or name; empty uses the poa regression role.
func (cd *CapData) FilterIrr(low, high, refVal float64, colName string) error {
	args := []string{fmt.Sprintf("low=%g", low), fmt.Sprintf("high=%g", high)}
	if refVal != 0 {
		args = append(args, fmt.Sprintf("ref_val=%g", refVal))
	}
	if colName != "" {
		args = append(args, "col_name="+colName)
	}

	return cd.Apply("filter_irr", strings.Join(args, ", "), func(data *model.Table) (*model.Table, error) {
		key := colName
		if key == "" {
			var ok bool
			if key, ok = cd.RegressionCols[RolePOA]; !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownRole, RolePOA)
			}
		}
		irr, err := cd.singleColumn(key, data)
		if err != nil {
			return nil, err
		}

		lo, hi := low, high
		if refVal != 0 {
			lo, hi = low*refVal, high*refVal
		}
		return data.FilterRows(func(i int) bool {
			v := irr.Values[i]
			return v >= lo && v <= hi
		}), nil
	})
}

// FilterTime keeps rows within [start, end]. A zero bound is open.
func (cd *CapData) FilterTime(start, end time.Time) error {
	args := fmt.Sprintf("start=%s, end=%s", formatBound(start), formatBound(end))
	return cd.Apply("filter_time", args, func(data *model.Table) (*model.Table, error) {
		if !start.IsZero() && !end.IsZero() && end.Before(start) {
			return nil, fmt.Errorf("end %s is before start %s", end, start)
		}
		return data.FilterRows(func(i int) bool {
			ts := data.Index[i]
			if !start.IsZero() && ts.Before(start) {
				return false
			}
			return end.IsZero() || !ts.After(end)
		}), nil
	})
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.Format(time.RFC3339)
}

// FilterMissing drops rows with a missing value in any of the given columns.
// Each key may be a regression role, a group key or a column name; with no
// keys every column is checked.
func (cd *CapData) FilterMissing(keys ...string) error {
	args := "all columns"
	if len(keys) > 0 {
		args = strings.Join(keys, ", ")
	}
	return cd.Apply("filter_missing", args, func(data *model.Table) (*model.Table, error) {
		cols := data.Columns
		if len(keys) > 0 {
			cols = nil
			for _, key := range cd.expandRoles(keys) {
				if mapped, ok := cd.RegressionCols[key]; ok {
					key = mapped
				}
				names, err := cd.resolve(key, data)
				if err != nil {
					return nil, err
				}
				for _, name := range names {
					if s := data.Column(name); s != nil {
						cols = append(cols, s)
					}
				}
			}
		}
		return data.FilterRows(func(i int) bool {
			for _, s := range cols {
				if math.IsNaN(s.Values[i]) {
					return false
				}
			}
			return true
		}), nil
	})
}

// FilterCustom keeps the rows for which keep returns true
func (cd *CapData) FilterCustom(name string, keep func(data *model.Table, i int) bool) error {
	return cd.Apply("filter_custom", name, func(data *model.Table) (*model.Table, error) {
		if keep == nil {
			return nil, fmt.Errorf("custom filter %q has no predicate", name)
		}
		return data.FilterRows(func(i int) bool { return keep(data, i) }), nil
	})
}

// FilterPF keeps rows where the absolute power factor of every column in the
// pf groups is at least threshold
func (cd *CapData) FilterPF(threshold float64) error {
	return cd.Apply("filter_pf", fmt.Sprintf("pf=%g", threshold), func(data *model.Table) (*model.Table, error) {
		var cols []*model.Series
		for _, key := range cd.ColumnGroups.Keys() {
			if !strings.HasPrefix(key, "pf-") {
				continue
			}
			for _, name := range cd.ColumnGroups[key] {
				if s := data.Column(name); s != nil {
					cols = append(cols, s)
				}
			}
		}
		if len(cols) == 0 {
			return nil, fmt.Errorf("%w: no power factor columns", ErrUnknownGroup)
		}
		return data.FilterRows(func(i int) bool {
			for _, s := range cols {
				if !(math.Abs(s.Values[i]) >= threshold) {
					return false
				}
			}
			return true
		}), nil
	})
}

// ResetFilter restores DataFiltered to a copy of Data and clears the audit trail
func (cd *CapData) ResetFilter() {
	cd.DataFiltered = cd.Data.Copy()
	cd.summary = nil
	cd.SessionID = uuid.NewString()
	cd.logger.Debug("Reset filters", zap.Int("rows", cd.DataFiltered.Len()))
}
