// pkg/reportcond/balanced.go
package reportcond

import (
	"errors"
	"math"
)

const (
	// Fraction of the points around the reporting irradiance that lie above it
	balanceTarget    = 0.4
	balanceTolerance = 1e-3
	balanceMaxIter   = 100
)

// ErrNoData is returned when there are no values to aggregate
var ErrNoData = errors.New("no data")

// IrrBalanced searches for the irradiance rc at which balanceTarget of the
// points within [low*rc, high*rc] lie above rc. The search bisects between
// the smallest and largest positive irradiance for at most balanceMaxIter
// steps; when the target is never met within tolerance the closest
// candidate wins. It returns rc and the positions of the points in its band.
func IrrBalanced(irr []float64, low, high float64) (float64, []int, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range irr {
		if math.IsNaN(v) || v <= 0 {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return math.NaN(), nil, ErrNoData
	}
	if low <= 0 || high <= low {
		return math.NaN(), nil, errors.New("balanced irradiance bounds must satisfy 0 < low < high")
	}

	best, bestErr := lo, math.Inf(1)
	for i := 0; i < balanceMaxIter; i++ {
		mid := (lo + hi) / 2
		frac := fractionAbove(irr, mid, low, high)
		if diff := math.Abs(frac - balanceTarget); diff < bestErr {
			best, bestErr = mid, diff
		}
		if bestErr <= balanceTolerance || hi-lo < 1e-9 {
			break
		}
		if frac > balanceTarget {
			lo = mid
		} else {
			hi = mid
		}
	}
	return best, band(irr, best, low, high), nil
}

// fractionAbove returns the share of points in rc's band that exceed rc
func fractionAbove(irr []float64, rc, low, high float64) float64 {
	in, above := 0, 0
	for _, v := range irr {
		if v >= low*rc && v <= high*rc {
			in++
			if v > rc {
				above++
			}
		}
	}
	if in == 0 {
		return 0
	}
	return float64(above) / float64(in)
}

func band(irr []float64, rc, low, high float64) []int {
	var rows []int
	for i, v := range irr {
		if v >= low*rc && v <= high*rc {
			rows = append(rows, i)
		}
	}
	return rows
}
