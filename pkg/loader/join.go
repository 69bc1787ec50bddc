// pkg/loader/join.go
package loader

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/model"
)

// joinFiles outer joins the tables on timestamp. Columns sharing a name are
// merged; where two files both hold a value the later file wins. A timestamp
// repeated within a file keeps all of its rows.
func (dl *DataLoader) joinFiles(files map[string]*model.Table) *model.Table {
	keys := dl.Keys()

	need := make(map[int64]int)
	stamps := make(map[int64]time.Time)
	for _, key := range keys {
		counts := make(map[int64]int)
		for _, ts := range files[key].Index {
			k := ts.UnixNano()
			counts[k]++
			if counts[k] > need[k] {
				need[k] = counts[k]
				stamps[k] = ts
			}
		}
	}

	order := make([]int64, 0, len(need))
	for k := range need {
		order = append(order, k)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	var index []time.Time
	rowsFor := make(map[int64][]int, len(order))
	for _, k := range order {
		for n := 0; n < need[k]; n++ {
			rowsFor[k] = append(rowsFor[k], len(index))
			index = append(index, stamps[k])
		}
	}

	out := model.NewTable(index)
	kinds := make(map[string]model.Kind)
	var names []string
	for _, key := range keys {
		tbl := files[key]
		if out.Location == nil {
			out.Location = tbl.Location
		}
		for _, col := range tbl.Columns {
			kind, seen := kinds[col.Name]
			if !seen {
				names = append(names, col.Name)
				kinds[col.Name] = col.Kind
				continue
			}
			if kind == model.KindInt && col.Kind != model.KindInt {
				kinds[col.Name] = model.KindFloat
			}
		}
	}
	for _, name := range names {
		s := model.MissingSeries(name, len(index))
		s.Kind = kinds[name]
		out.Columns = append(out.Columns, s)
	}

	overlaps := make(map[string]int)
	for _, key := range keys {
		tbl := files[key]
		occurrence := make(map[int64]int)
		for r, ts := range tbl.Index {
			k := ts.UnixNano()
			pos := rowsFor[k][occurrence[k]]
			occurrence[k]++
			for _, col := range tbl.Columns {
				v := col.Values[r]
				if math.IsNaN(v) {
					continue
				}
				dest := out.Column(col.Name)
				if !math.IsNaN(dest.Values[pos]) {
					overlaps[col.Name]++
				}
				dest.Values[pos] = v
			}
		}
	}

	for _, col := range out.Columns {
		col.Promote()
	}

	if len(overlaps) > 0 {
		var cols []string
		for _, name := range names {
			if overlaps[name] > 0 {
				cols = append(cols, name)
			}
		}
		dl.warn("Some columns contain overlapping indices.", zap.Strings("columns", cols))
	}
	return out
}
