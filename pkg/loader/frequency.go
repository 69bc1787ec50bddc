// pkg/loader/frequency.go
package loader

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/model"
)

// InferFrequency returns the most common positive delta between sorted
// timestamps. Ties go to the smaller delta; fewer than two distinct
// timestamps give zero.
func InferFrequency(index []time.Time) time.Duration {
	if len(index) < 2 {
		return 0
	}
	sorted := make([]time.Time, len(index))
	copy(sorted, index)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	counts := make(map[time.Duration]int)
	for i := 1; i < len(sorted); i++ {
		if d := sorted[i].Sub(sorted[i-1]); d > 0 {
			counts[d]++
		}
	}

	var best time.Duration
	bestCount := 0
	for d, n := range counts {
		if n > bestCount || (n == bestCount && d < best) {
			best, bestCount = d, n
		}
	}
	return best
}

// FormatFrequency renders a frequency as a short alias such as "5min"
func FormatFrequency(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d%time.Minute == 0:
		return fmt.Sprintf("%dmin", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	default:
		return d.String()
	}
}

// Reindex places t on a grid from its first to its last timestamp at freq.
// Grid points without a row are missing; rows off the grid are dropped and
// repeated timestamps keep their first row.
func Reindex(t *model.Table, freq time.Duration) *model.Table {
	first, last, ok := t.Span()
	if !ok || freq <= 0 {
		return t.Copy()
	}

	pos := make(map[int64]int, t.Len())
	for i, ts := range t.Index {
		if _, seen := pos[ts.UnixNano()]; !seen {
			pos[ts.UnixNano()] = i
		}
	}

	n := int(last.Sub(first)/freq) + 1
	out := model.NewTable(make([]time.Time, n))
	out.Location = t.Location
	rows := make([]int, n)
	for k := 0; k < n; k++ {
		ts := first.Add(time.Duration(k) * freq)
		out.Index[k] = ts
		if r, found := pos[ts.UnixNano()]; found {
			rows[k] = r
		} else {
			rows[k] = -1
		}
	}

	for _, col := range t.Columns {
		s := model.MissingSeries(col.Name, n)
		s.Kind = col.Kind
		for k, r := range rows {
			if r >= 0 {
				s.Values[k] = col.Values[r]
			}
		}
		s.Promote()
		out.Columns = append(out.Columns, s)
	}
	return out
}

// reindexLoadedFiles infers each file's frequency and, when they differ,
// reindexes the finer files to the coarsest one
func (dl *DataLoader) reindexLoadedFiles() (map[string]*model.Table, time.Duration, []time.Duration) {
	keys := dl.Keys()
	freqs := make([]time.Duration, len(keys))
	var common time.Duration
	for i, key := range keys {
		freqs[i] = InferFrequency(dl.LoadedFiles[key].Index)
		if freqs[i] > common {
			common = freqs[i]
		}
	}

	out := make(map[string]*model.Table, len(keys))
	mixed := false
	for i, key := range keys {
		out[key] = dl.LoadedFiles[key]
		if freqs[i] != 0 && freqs[i] != common {
			mixed = true
		}
	}
	if !mixed {
		return out, common, freqs
	}

	labels := make([]string, len(freqs))
	for i, f := range freqs {
		labels[i] = FormatFrequency(f)
	}
	dl.warn("Loaded files have different frequencies; reindexing to the common frequency",
		zap.String("common_freq", FormatFrequency(common)),
		zap.Strings("file_frequencies", labels))

	for i, key := range keys {
		if freqs[i] != 0 && freqs[i] != common {
			out[key] = Reindex(dl.LoadedFiles[key], common)
		}
	}
	return out, common, freqs
}

// reindexGapFree fills gaps in the joined data at the common frequency.
// Data that still holds repeated timestamps is left as is.
func (dl *DataLoader) reindexGapFree(data *model.Table) *model.Table {
	if dl.CommonFreq <= 0 || data.Len() == 0 {
		return data
	}
	if dups := data.DuplicateRows(); len(dups) > 0 {
		dl.warn("Data contains duplicate timestamps; skipping reindex to a gap-free index",
			zap.Int("duplicates", len(dups)))
		return data
	}

	out := Reindex(data, dl.CommonFreq)
	if added := out.Len() - data.Len(); added > 0 {
		dl.logger.Info("Reindexed to a gap-free index",
			zap.Int("rows_added", added),
			zap.String("freq", FormatFrequency(dl.CommonFreq)))
	}
	return out
}
