// pkg/converter/time.go
package converter

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnparseableTimestamp is returned when no known layout parses a value
var ErrUnparseableTimestamp = errors.New("unparseable timestamp")

// monthFirstLayouts are tried in order for every timestamp cell
var monthFirstLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04Z07:00",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"1/2/06 15:04:05",
	"1/2/06 15:04",
	"1/2/06",
	"20060102T150405Z",
}

// dayFirstLayouts are the fallback when a month/day reading fails
var dayFirstLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2/1/06 15:04:05",
	"2/1/06 15:04",
	"2/1/06",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
}

// hasZone reports whether a layout carries an explicit offset
func hasZone(layout string) bool {
	return strings.Contains(layout, "Z07") || strings.Contains(layout, "-07") || strings.HasSuffix(layout, "Z")
}

// DetectTimeLayout analyzes a value to determine its timestamp layout.
// Only month/day-first layouts are considered; "" when nothing parses.
func DetectTimeLayout(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, layout := range monthFirstLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return layout
		}
	}
	return ""
}

// LooksLikeTimestamp reports whether value parses with any known layout,
// day/month-first included
func LooksLikeTimestamp(value string) bool {
	if DetectTimeLayout(value) != "" {
		return true
	}
	value = strings.TrimSpace(value)
	for _, layout := range dayFirstLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// ParseTimestamp parses a single value with the month/day-first layouts.
// Naive values are placed in the converter's default zone.
func (c *TypeConverter) ParseTimestamp(value string) (time.Time, string, error) {
	p := c.NewTimeParser(c.Location())
	return p.parse(strings.TrimSpace(value), monthFirstLayouts)
}

// TimeParser parses a column of timestamp cells, remembering the last layout
// that matched
type TimeParser struct {
	// Zone applied to values without an offset
	Location *time.Location
	// Whether day/month/year layouts are tried when month/day/year fails
	DayFirstFallback bool
	// Preferred layouts tried before the built-in ones
	Layouts []string

	last string
}

// NewTimeParser creates a parser using the converter's fallback setting
func (c *TypeConverter) NewTimeParser(loc *time.Location) *TimeParser {
	if loc == nil {
		loc = time.UTC
	}
	return &TimeParser{
		Location:         loc,
		DayFirstFallback: c.config.DayFirstFallback,
	}
}

// ParsedIndex is the result of parsing a whole column of timestamps
type ParsedIndex struct {
	Times []time.Time
	// DayFirst is set when the column only parsed as day/month/year
	DayFirst bool
	// Zone is set when the values carried their own offset
	Zone *time.Location
}

// parse tries the cached layout, then each layout set in order
func (p *TimeParser) parse(value string, sets ...[]string) (time.Time, string, error) {
	if value == "" {
		return time.Time{}, "", fmt.Errorf("%w: empty value", ErrUnparseableTimestamp)
	}
	if p.last != "" {
		if t, err := p.parseWith(p.last, value); err == nil {
			return t, p.last, nil
		}
	}
	for _, set := range sets {
		for _, layout := range set {
			if t, err := p.parseWith(layout, value); err == nil {
				p.last = layout
				return t, layout, nil
			}
		}
	}
	return time.Time{}, "", fmt.Errorf("%w: %q", ErrUnparseableTimestamp, value)
}

func (p *TimeParser) parseWith(layout, value string) (time.Time, error) {
	if hasZone(layout) {
		return time.Parse(layout, value)
	}
	return time.ParseInLocation(layout, value, p.Location)
}

// Parse parses a single value with the month/day-first layouts
func (p *TimeParser) Parse(value string) (time.Time, error) {
	t, _, err := p.parse(strings.TrimSpace(value), p.Layouts, monthFirstLayouts)
	return t, err
}

// ParseColumn parses every cell month/day first. When any cell fails and the
// fallback is enabled, the whole column is re-read day/month first.
func (p *TimeParser) ParseColumn(cells []string) (*ParsedIndex, error) {
	out, err := p.parseAll(cells, p.Layouts, monthFirstLayouts)
	if err == nil {
		return out, nil
	}
	if !p.DayFirstFallback {
		return nil, err
	}

	p.last = ""
	fallback, fbErr := p.parseAll(cells, dayFirstLayouts)
	if fbErr != nil {
		return nil, err
	}
	fallback.DayFirst = true
	return fallback, nil
}

func (p *TimeParser) parseAll(cells []string, sets ...[]string) (*ParsedIndex, error) {
	out := &ParsedIndex{Times: make([]time.Time, len(cells))}
	for i, cell := range cells {
		t, layout, err := p.parse(strings.TrimSpace(cell), sets...)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if hasZone(layout) && out.Zone == nil {
			out.Zone = t.Location()
		}
		out.Times[i] = t
	}
	return out, nil
}
