// pkg/reportcond/frequency.go
package reportcond

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownFrequency is returned for frequency aliases ParseFrequency does not support
var ErrUnknownFrequency = errors.New("unknown frequency")

type freqKind int

const (
	monthStart freqKind = iota
	monthEnd
	quarterStart
	days
	businessQuarter
)

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// Frequency is a calendar offset used to group rows into periods. Each
// period is identified by a bucket key and reported under a label.
type Frequency struct {
	Alias string
	kind  freqKind
	n     int
	// Month ending the fiscal year for business quarters
	yearEnd time.Month
}

// ParseFrequency parses "MS" (month start), "M" (month end, labelled with
// the previous month end), "QS" (quarter start), "<n>D" (n-day bins from
// the first day) and "BQ-<MON>" (business quarters of a year ending in MON,
// labelled with the previous quarter's last business day)
func ParseFrequency(alias string) (Frequency, error) {
	a := strings.ToUpper(strings.TrimSpace(alias))
	switch a {
	case "MS":
		return Frequency{Alias: a, kind: monthStart}, nil
	case "M", "ME":
		return Frequency{Alias: a, kind: monthEnd}, nil
	case "QS":
		return Frequency{Alias: a, kind: quarterStart}, nil
	}
	if mon, ok := strings.CutPrefix(a, "BQ-"); ok {
		m, known := months[mon]
		if !known {
			return Frequency{}, fmt.Errorf("%w: %q", ErrUnknownFrequency, alias)
		}
		return Frequency{Alias: a, kind: businessQuarter, yearEnd: m}, nil
	}
	if num, ok := strings.CutSuffix(a, "D"); ok {
		n := 1
		if num != "" {
			var err error
			if n, err = strconv.Atoi(num); err != nil || n <= 0 {
				return Frequency{}, fmt.Errorf("%w: %q", ErrUnknownFrequency, alias)
			}
		}
		return Frequency{Alias: a, kind: days, n: n}, nil
	}
	return Frequency{}, fmt.Errorf("%w: %q", ErrUnknownFrequency, alias)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func firstOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// lastBusinessDay returns the last weekday of the month holding t
func lastBusinessDay(t time.Time) time.Time {
	d := firstOfMonth(t).AddDate(0, 1, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// isQuarterEnd reports whether m ends a quarter of a year ending in yearEnd
func (f Frequency) isQuarterEnd(m time.Month) bool {
	return (int(m)-int(f.yearEnd)+12)%3 == 0
}

// bucket returns the key of the period holding t. origin is the first
// timestamp of the data.
func (f Frequency) bucket(t, origin time.Time) time.Time {
	switch f.kind {
	case monthStart, monthEnd:
		return firstOfMonth(t)
	case quarterStart:
		first := firstOfMonth(t)
		return first.AddDate(0, -((int(first.Month()) - 1) % 3), 0)
	case days:
		o := midnight(origin)
		span := t.Sub(o)
		width := time.Duration(f.n) * 24 * time.Hour
		return o.Add(span / width * width)
	default:
		first := firstOfMonth(t)
		for !f.isQuarterEnd(first.Month()) {
			first = first.AddDate(0, 1, 0)
		}
		end := lastBusinessDay(first)
		if midnight(t).After(end) {
			end = lastBusinessDay(first.AddDate(0, 3, 0))
		}
		return end
	}
}

// next returns the key of the period after key
func (f Frequency) next(key time.Time) time.Time {
	switch f.kind {
	case monthStart, monthEnd:
		return key.AddDate(0, 1, 0)
	case quarterStart:
		return key.AddDate(0, 3, 0)
	case days:
		return key.Add(time.Duration(f.n) * 24 * time.Hour)
	default:
		return lastBusinessDay(firstOfMonth(key).AddDate(0, 3, 0))
	}
}

// label returns the timestamp a period is reported under
func (f Frequency) label(key time.Time) time.Time {
	switch f.kind {
	case monthEnd:
		return key.AddDate(0, 0, -1)
	case businessQuarter:
		return lastBusinessDay(firstOfMonth(key).AddDate(0, -3, 0))
	default:
		return key
	}
}

// period is a group of row positions under one label
type period struct {
	label time.Time
	rows  []int
}

// group splits a sorted index into consecutive periods, including empty
// periods between the first and last
func (f Frequency) group(index []time.Time) []period {
	if len(index) == 0 {
		return nil
	}
	origin := index[0]
	var periods []period
	key := f.bucket(index[0], origin)
	current := period{label: f.label(key)}
	for i, ts := range index {
		b := f.bucket(ts, origin)
		for b.After(key) {
			periods = append(periods, current)
			key = f.next(key)
			current = period{label: f.label(key)}
		}
		current.rows = append(current.rows, i)
	}
	return append(periods, current)
}
