// pkg/reportcond/reportcond.go
package reportcond

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/capdata"
	"github.com/David-Botos/captest/pkg/model"
)

// ErrMissingRole is returned when a role needed for reporting conditions is not set
var ErrMissingRole = errors.New("regression role required for reporting conditions is not set")

// Options control how reporting conditions are calculated
type Options struct {
	// Aggregation per role; roles absent from the map use the defaults
	Funcs map[string]Aggregator
	// Frequency alias for periodic conditions; empty aggregates all rows
	Freq string
	// Replaces the wind velocity condition when set
	WVel *float64
	// Pick irradiance with IrrBalanced instead of Funcs
	IrrBalanced bool
	// Band used by IrrBalanced, as fractions of the candidate irradiance
	IrrLow  float64
	IrrHigh float64
}

// DefaultFuncs returns the default aggregations: 60th percentile nearest for
// irradiance and the mean for temperature and wind
func DefaultFuncs() map[string]Aggregator {
	return map[string]Aggregator{
		capdata.RolePOA:  PercentileNearest(60),
		capdata.RoleTAmb: Mean,
		capdata.RoleWVel: Mean,
	}
}

// DefaultOptions returns the default options
func DefaultOptions() Options {
	return Options{
		Funcs:   DefaultFuncs(),
		IrrLow:  0.8,
		IrrHigh: 1.2,
	}
}

func (o Options) funcFor(role string) Aggregator {
	if f, ok := o.Funcs[role]; ok && f != nil {
		return f
	}
	return DefaultFuncs()[role]
}

// Calculate aggregates the poa, t_amb and w_vel roles of the filtered data
// into reporting conditions and stores them on cd
func Calculate(cd *capdata.CapData, opts Options) (*model.ReportingConditions, error) {
	cols := make(map[string][]float64, 3)
	for _, role := range []string{capdata.RolePOA, capdata.RoleTAmb, capdata.RoleWVel} {
		s, err := cd.RoleColumn(role, true)
		if errors.Is(err, capdata.ErrUnknownRole) {
			return nil, fmt.Errorf("%w: %s", ErrMissingRole, role)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", role, err)
		}
		cols[role] = s.Values
	}

	index := cd.DataFiltered.Index
	if len(index) == 0 {
		return nil, fmt.Errorf("%w: filtered data of %s is empty", ErrNoData, cd.Name)
	}

	periods := []period{{rows: allRows(len(index))}}
	if opts.Freq != "" {
		freq, err := ParseFrequency(opts.Freq)
		if err != nil {
			return nil, err
		}
		periods = freq.group(index)
	}

	rc := &model.ReportingConditions{Freq: opts.Freq}
	for _, p := range periods {
		row, err := opts.condition(cols, p)
		if err != nil {
			return nil, err
		}
		if opts.WVel != nil {
			row.WVel = *opts.WVel
		}
		rc.Rows = append(rc.Rows, row)
	}

	cd.SetRC(rc)
	cd.Logger().Info("Calculated reporting conditions",
		zap.String("freq", opts.Freq),
		zap.Int("periods", len(rc.Rows)),
		zap.Bool("irr_balanced", opts.IrrBalanced))
	return rc, nil
}

func (o Options) condition(cols map[string][]float64, p period) (model.ReportingCondition, error) {
	row := model.ReportingCondition{Period: p.label}
	poa, tAmb, wVel := cols[capdata.RolePOA], cols[capdata.RoleTAmb], cols[capdata.RoleWVel]

	if !o.IrrBalanced {
		row.POA = o.funcFor(capdata.RolePOA)(present(poa, p.rows))
		row.TAmb = o.funcFor(capdata.RoleTAmb)(present(tAmb, p.rows))
		row.WVel = o.funcFor(capdata.RoleWVel)(present(wVel, p.rows))
		return row, nil
	}

	irr := make([]float64, len(p.rows))
	for i, r := range p.rows {
		irr[i] = poa[r]
	}
	rcIrr, inBand, err := IrrBalanced(irr, o.IrrLow, o.IrrHigh)
	if errors.Is(err, ErrNoData) {
		row.POA, row.TAmb, row.WVel = math.NaN(), math.NaN(), math.NaN()
		return row, nil
	}
	if err != nil {
		return row, err
	}
	rows := make([]int, len(inBand))
	for i, j := range inBand {
		rows[i] = p.rows[j]
	}
	row.POA = rcIrr
	row.TAmb = Mean(present(tAmb, rows))
	row.WVel = Mean(present(wVel, rows))
	return row, nil
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// Labels returns the period labels of rc, in order
func Labels(rc *model.ReportingConditions) []time.Time {
	labels := make([]time.Time, len(rc.Rows))
	for i, row := range rc.Rows {
		labels[i] = row.Period
	}
	return labels
}
