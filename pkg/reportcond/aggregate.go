// pkg/reportcond/aggregate.go
package reportcond

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Aggregator reduces the present values of a column to one value. It
// returns NaN for an empty slice.
type Aggregator func(values []float64) float64

// Mean returns the arithmetic mean
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// Median returns the middle value, averaging the two middle values of an
// even-length slice
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := sortedCopy(values)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Min returns the smallest value
func Min(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return floats.Min(values)
}

// Max returns the largest value
func Max(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return floats.Max(values)
}

// PercentileNearest returns an aggregator picking the sorted value nearest
// to the p-th percentile. The fractional rank p/100*(n-1) is rounded half
// to even.
func PercentileNearest(p float64) Aggregator {
	return func(values []float64) float64 {
		n := len(values)
		if n == 0 {
			return math.NaN()
		}
		sorted := sortedCopy(values)
		idx := int(math.RoundToEven(p / 100 * float64(n-1)))
		if idx < 0 {
			idx = 0
		}
		if idx > n-1 {
			idx = n - 1
		}
		return sorted[idx]
	}
}

// ParseAggregator resolves "mean", "median", "min", "max" or "perc_<p>"
func ParseAggregator(name string) (Aggregator, error) {
	switch strings.ToLower(name) {
	case "mean":
		return Mean, nil
	case "median":
		return Median, nil
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	}
	if rest, ok := strings.CutPrefix(strings.ToLower(name), "perc_"); ok {
		p, err := strconv.ParseFloat(rest, 64)
		if err != nil || p < 0 || p > 100 {
			return nil, fmt.Errorf("invalid percentile %q", name)
		}
		return PercentileNearest(p), nil
	}
	return nil, fmt.Errorf("unknown aggregation %q", name)
}

func sortedCopy(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return sorted
}

// present returns the non-missing values of values at rows
func present(values []float64, rows []int) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if !math.IsNaN(values[r]) {
			out = append(out, values[r])
		}
	}
	return out
}
