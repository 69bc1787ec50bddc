// pkg/model/table.go
package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Kind is the storage class of a series. Values are always held as float64;
// Kind records whether every present value came from an integer source.
type Kind int

const (
	KindFloat Kind = iota
	KindInt
)

// String returns a dtype-style name for the kind
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int64"
	case KindFloat:
		return "float64"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Errors returned by table operations
var (
	ErrColumnNotFound = errors.New("column not found")
	ErrLengthMismatch = errors.New("series length does not match index length")
	ErrDuplicateName  = errors.New("duplicate column name")
)

// Series is a single named column of a Table. NaN marks a missing value.
type Series struct {
	Name   string
	Kind   Kind
	Values []float64
}

// NewSeries creates a series that owns values
func NewSeries(name string, kind Kind, values []float64) *Series {
	return &Series{Name: name, Kind: kind, Values: values}
}

// MissingSeries creates an all-missing float series of length n
func MissingSeries(name string, n int) *Series {
	values := make([]float64, n)
	for i := range values {
		values[i] = math.NaN()
	}
	return &Series{Name: name, Kind: KindFloat, Values: values}
}

// Copy returns a deep copy of the series
func (s *Series) Copy() *Series {
	values := make([]float64, len(s.Values))
	copy(values, s.Values)
	return &Series{Name: s.Name, Kind: s.Kind, Values: values}
}

// Len returns the number of values
func (s *Series) Len() int {
	return len(s.Values)
}

// HasMissing reports whether any value is NaN
func (s *Series) HasMissing() bool {
	for _, v := range s.Values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// AllMissing reports whether every value is NaN (true for an empty series)
func (s *Series) AllMissing() bool {
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Promote converts an integer series holding missing values to float.
// It reports whether the kind changed.
func (s *Series) Promote() bool {
	if s.Kind == KindInt && s.HasMissing() {
		s.Kind = KindFloat
		return true
	}
	return false
}

// Present returns the non-missing values in index order
func (s *Series) Present() []float64 {
	out := make([]float64, 0, len(s.Values))
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Min returns the smallest present value, NaN when all are missing
func (s *Series) Min() float64 {
	m := math.NaN()
	for _, v := range s.Values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(m) || v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest present value, NaN when all are missing
func (s *Series) Max() float64 {
	m := math.NaN()
	for _, v := range s.Values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(m) || v > m {
			m = v
		}
	}
	return m
}

// Table is a timestamp-indexed set of numeric series sharing one index
type Table struct {
	Index   []time.Time
	Columns []*Series
	// Location is the zone of Index; nil when the source timestamps were naive
	Location *time.Location
}

// NewTable creates an empty table over index
func NewTable(index []time.Time) *Table {
	return &Table{Index: index}
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Index)
}

// Width returns the number of columns
func (t *Table) Width() int {
	return len(t.Columns)
}

// Empty reports whether the table has neither rows nor columns
func (t *Table) Empty() bool {
	return t == nil || (len(t.Index) == 0 && len(t.Columns) == 0)
}

// ColumnNames returns the column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named series, or nil
func (t *Table) Column(name string) *Series {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// HasColumn reports whether the table holds a column named name
func (t *Table) HasColumn(name string) bool {
	return t.Column(name) != nil
}

// AddColumn appends s. The series must match the index length and carry a
// name not already present.
func (t *Table) AddColumn(s *Series) error {
	if s.Len() != t.Len() {
		return fmt.Errorf("%w: column %q has %d values, index has %d",
			ErrLengthMismatch, s.Name, s.Len(), t.Len())
	}
	if t.HasColumn(s.Name) {
		return fmt.Errorf("%w: %q", ErrDuplicateName, s.Name)
	}
	t.Columns = append(t.Columns, s)
	return nil
}

// Copy returns a deep copy sharing nothing with t
func (t *Table) Copy() *Table {
	index := make([]time.Time, len(t.Index))
	copy(index, t.Index)
	cp := &Table{Index: index, Location: t.Location}
	cp.Columns = make([]*Series, len(t.Columns))
	for i, c := range t.Columns {
		cp.Columns[i] = c.Copy()
	}
	return cp
}

// Select returns a deep copy holding only the named columns in the given order
func (t *Table) Select(names ...string) (*Table, error) {
	index := make([]time.Time, len(t.Index))
	copy(index, t.Index)
	out := &Table{Index: index, Location: t.Location}
	for _, name := range names {
		c := t.Column(name)
		if c == nil {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
		}
		out.Columns = append(out.Columns, c.Copy())
	}
	return out, nil
}

// DropColumns removes the named columns in place and returns those actually removed
func (t *Table) DropColumns(names ...string) []string {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var dropped []string
	kept := t.Columns[:0]
	for _, c := range t.Columns {
		if drop[c.Name] {
			dropped = append(dropped, c.Name)
			continue
		}
		kept = append(kept, c)
	}
	t.Columns = kept
	return dropped
}

// FilterRows returns a new table holding the rows for which keep returns true
func (t *Table) FilterRows(keep func(i int) bool) *Table {
	var rows []int
	for i := range t.Index {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return t.Take(rows)
}

// Take returns a new table built from the given row positions, in order
func (t *Table) Take(rows []int) *Table {
	out := &Table{Index: make([]time.Time, len(rows)), Location: t.Location}
	for j, r := range rows {
		out.Index[j] = t.Index[r]
	}
	out.Columns = make([]*Series, len(t.Columns))
	for ci, c := range t.Columns {
		values := make([]float64, len(rows))
		for j, r := range rows {
			values[j] = c.Values[r]
		}
		out.Columns[ci] = &Series{Name: c.Name, Kind: c.Kind, Values: values}
	}
	return out
}

// SortByIndex sorts rows by timestamp in place; equal timestamps keep their order
func (t *Table) SortByIndex() {
	if sort.SliceIsSorted(t.Index, func(i, j int) bool { return t.Index[i].Before(t.Index[j]) }) {
		return
	}
	order := make([]int, len(t.Index))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return t.Index[order[i]].Before(t.Index[order[j]])
	})
	sorted := t.Take(order)
	t.Index = sorted.Index
	t.Columns = sorted.Columns
}

// IsSorted reports whether the index is monotonic increasing
func (t *Table) IsSorted() bool {
	for i := 1; i < len(t.Index); i++ {
		if t.Index[i].Before(t.Index[i-1]) {
			return false
		}
	}
	return true
}

// DuplicateRows returns the positions of rows whose timestamp already
// appeared at an earlier position
func (t *Table) DuplicateRows() []int {
	seen := make(map[int64]bool, len(t.Index))
	var dups []int
	for i, ts := range t.Index {
		key := ts.UnixNano()
		if seen[key] {
			dups = append(dups, i)
			continue
		}
		seen[key] = true
	}
	return dups
}

// IsEmptyRow reports whether every column is missing at row i
func (t *Table) IsEmptyRow(i int) bool {
	for _, c := range t.Columns {
		if !math.IsNaN(c.Values[i]) {
			return false
		}
	}
	return true
}

// Value returns the value of column name at row i, NaN when the column is absent
func (t *Table) Value(name string, i int) float64 {
	c := t.Column(name)
	if c == nil {
		return math.NaN()
	}
	return c.Values[i]
}

// Span returns the first and last timestamps of a sorted table
func (t *Table) Span() (time.Time, time.Time, bool) {
	if len(t.Index) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return t.Index[0], t.Index[len(t.Index)-1], true
}
