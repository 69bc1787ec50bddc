// pkg/reader/header.go
package reader

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/converter"
)

// HeaderSeparator joins the levels of a multi-row header
const HeaderSeparator = "_"

// pvsystDateLayout is the date layout PVsyst hourly exports use
const pvsystDateLayout = "01/02/06 15:04"

// rawFrame is a file split into column names and data rows. Column 0 of
// every row holds the timestamp; names[j] labels column j+1.
type rawFrame struct {
	names   []string
	rows    [][]string
	layouts []string
}

// splitGeneric treats every non-blank row before the first row that starts
// with a timestamp as a header row
func splitGeneric(records [][]string) (*rawFrame, error) {
	header, rows, err := locateData(records)
	if err != nil {
		return nil, err
	}
	return &rawFrame{
		names: FlattenHeader(header, dataWidth(header, rows)),
		rows:  rows,
	}, nil
}

// splitAlsoEnergy names columns from the last three header rows: device
// (parenthetical dropped), channel (last comma-separated part) and unit
func (r *Reader) splitAlsoEnergy(records [][]string, res *Result) (*rawFrame, error) {
	header, rows, err := locateData(records)
	if err != nil {
		return nil, err
	}
	width := dataWidth(header, rows)
	if len(header) < 3 {
		r.warn(res, "AlsoEnergy files have three header rows; falling back to generic header parsing",
			zap.Int("header_rows", len(header)))
		return &rawFrame{names: FlattenHeader(header, width), rows: rows}, nil
	}

	device, channel, unit := header[len(header)-3], header[len(header)-2], header[len(header)-1]
	names := make([]string, width)
	for j := range names {
		one := cell(device, j+1)
		if k := strings.Index(one, "("); k >= 0 {
			one = strings.TrimSpace(one[:k])
		}
		two := cell(channel, j+1)
		if parts := strings.Split(two, ","); len(parts) > 1 {
			two = strings.TrimSpace(parts[len(parts)-1])
		}
		names[j] = one + " " + two + ", " + cell(unit, j+1)
	}
	return &rawFrame{names: dedupe(names), rows: rows}, nil
}

// splitPVsyst skips the metadata block up to the "date" header line and the
// units line that follows it
func splitPVsyst(records [][]string) (*rawFrame, error) {
	start := -1
	for i, row := range records {
		if strings.EqualFold(cell(row, 0), "date") {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: no \"date\" header line", ErrNoTimestamp)
	}

	headerRow := records[start]
	var rows [][]string
	for _, row := range records[start+1:] {
		if !isBlank(row) {
			rows = append(rows, row)
		}
	}
	// units line
	if len(rows) > 0 && !converter.LooksLikeTimestamp(cell(rows[0], 0)) {
		rows = rows[1:]
	}

	names := make([]string, 0, len(headerRow))
	for j := 1; j < len(headerRow); j++ {
		names = append(names, cell(headerRow, j))
	}
	return &rawFrame{
		names:   dedupe(names),
		rows:    rows,
		layouts: []string{pvsystDateLayout},
	}, nil
}

// locateData drops blank rows and splits at the first row whose first cell
// is a timestamp
func locateData(records [][]string) (header, rows [][]string, err error) {
	start := -1
	var kept [][]string
	for _, row := range records {
		if isBlank(row) {
			continue
		}
		if start < 0 && converter.LooksLikeTimestamp(cell(row, 0)) {
			start = len(kept)
		}
		kept = append(kept, row)
	}
	if start < 0 {
		return nil, nil, ErrNoTimestamp
	}
	return kept[:start], kept[start:], nil
}

// dataWidth is the number of value columns, excluding the timestamp column
func dataWidth(header, rows [][]string) int {
	width := 0
	for _, set := range [][][]string{header, rows} {
		for _, row := range set {
			if len(row)-1 > width {
				width = len(row) - 1
			}
		}
	}
	return width
}

// FlattenHeader joins the header levels of each of width value columns with
// HeaderSeparator, omitting empty levels. Column 0 of each header row is the
// index label and is ignored.
func FlattenHeader(header [][]string, width int) []string {
	names := make([]string, width)
	for j := range names {
		var levels []string
		for _, row := range header {
			if level := cell(row, j+1); level != "" {
				levels = append(levels, level)
			}
		}
		names[j] = strings.Join(levels, HeaderSeparator)
	}
	return dedupe(names)
}

// dedupe names unnamed columns by position and suffixes repeated names
func dedupe(names []string) []string {
	seen := make(map[string]int, len(names))
	out := make([]string, len(names))
	for j, name := range names {
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", j+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		} else {
			seen[name] = 1
		}
		out[j] = name
	}
	return out
}
