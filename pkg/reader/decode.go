// pkg/reader/decode.go
package reader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// decodeText returns data as UTF-8. Files that are not valid UTF-8 are
// taken to be Windows-1252, which also covers latin-1 exports.
func decodeText(data []byte) ([]byte, error) {
	data = trimBOM(data)
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode as windows-1252: %w", err)
	}
	return decoded, nil
}

// sniffDelimiter picks the most frequent of comma, semicolon and tab in the
// first lines of data
func sniffDelimiter(data []byte) rune {
	counts := map[rune]int{}
	lines := bytes.SplitN(data, []byte("\n"), 25)
	if len(lines) == 25 {
		lines = lines[:24]
	}
	for _, line := range lines {
		counts[','] += bytes.Count(line, []byte(","))
		counts[';'] += bytes.Count(line, []byte(";"))
		counts['\t'] += bytes.Count(line, []byte("\t"))
	}
	best := ','
	for _, r := range []rune{';', '\t'} {
		if counts[r] > counts[best] {
			best = r
		}
	}
	return best
}

// readDelimited splits delimited text into records. Rows may have differing
// lengths and quotes are handled leniently.
func readDelimited(data []byte, comma rune) ([][]string, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	if comma == 0 {
		comma = sniffDelimiter(text)
	}

	cr := csv.NewReader(bytes.NewReader(text))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var records [][]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse delimited data: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

// readWorkbook returns the displayed cell values of one sheet
func readWorkbook(rd io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}
