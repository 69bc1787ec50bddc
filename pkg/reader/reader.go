// pkg/reader/reader.go
package reader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/cleaner"
	"github.com/David-Botos/captest/pkg/converter"
	"github.com/David-Botos/captest/pkg/model"
)

// ErrNoTimestamp is returned when no row of a file starts with a parseable timestamp
var ErrNoTimestamp = errors.New("no parseable timestamp found")

// Source selects the header conventions used to read a file
type Source int

const (
	SourceGeneric Source = iota
	SourceAlsoEnergy
	SourcePVsyst
)

func (s Source) String() string {
	switch s {
	case SourceAlsoEnergy:
		return "AlsoEnergy"
	case SourcePVsyst:
		return "PVsyst"
	default:
		return "generic"
	}
}

// ParseSource converts a source name to a Source. Empty means generic.
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "generic", "das":
		return SourceGeneric, nil
	case "alsoenergy", "ae":
		return SourceAlsoEnergy, nil
	case "pvsyst":
		return SourcePVsyst, nil
	default:
		return SourceGeneric, fmt.Errorf("unknown source format: %q", name)
	}
}

// Config controls how a single file is read
type Config struct {
	// Header conventions of the file
	Source Source
	// Zone of naive timestamps; nil leaves the index naive (held as UTC)
	Location *time.Location
	// PVsyst E_Grid values are divided by this factor when non-zero
	EGridUnitFactor float64
	// Field delimiter; zero sniffs it from the first lines
	Comma rune
	// Sheet read from xlsx workbooks; empty reads the first sheet
	Sheet string
	// Cell and timestamp coercion settings
	Converter converter.TypeConverterConfig
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Source:    SourceGeneric,
		Converter: converter.DefaultConfig(),
	}
}

// Result is a read table plus everything noteworthy that happened while reading it
type Result struct {
	Name     string
	Table    *model.Table
	Warnings []string
	Cleaning []model.CleaningOperation
	// DayFirst is set when the index only parsed day/month/year
	DayFirst bool
}

// Reader reads single time-series files into tables
type Reader struct {
	config    Config
	logger    *zap.Logger
	converter *converter.TypeConverter
	cleaner   *cleaner.DataCleaner
}

// New creates a Reader. A nil logger falls back to the global zap logger.
func New(config Config, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("reader")
	return &Reader{
		config:    config,
		logger:    logger,
		converter: converter.NewTypeConverterWithConfig(logger, config.Converter),
		cleaner:   cleaner.NewDataCleaner(logger),
	}
}

// ReadFile reads path with the global logger
func ReadFile(path string, config Config) (*Result, error) {
	return New(config, nil).ReadFile(path)
}

// ReadFile reads one csv or xlsx file
func (r *Reader) ReadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return r.Read(f, filepath.Base(path))
}

// Read reads a file's contents from rd. name selects the format by extension
// and labels warnings.
func (r *Reader) Read(rd io.Reader, name string) (*Result, error) {
	var (
		records [][]string
		err     error
	)
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		records, err = readWorkbook(rd, r.config.Sheet)
	} else {
		var data []byte
		data, err = io.ReadAll(rd)
		if err == nil {
			records, err = readDelimited(data, r.config.Comma)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	res := &Result{Name: name}
	var frame *rawFrame
	switch r.config.Source {
	case SourcePVsyst:
		frame, err = splitPVsyst(records)
	case SourceAlsoEnergy:
		frame, err = r.splitAlsoEnergy(records, res)
	default:
		frame, err = splitGeneric(records)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if err := r.build(frame, res); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if r.config.Source == SourcePVsyst {
		if err := r.adjustPVsyst(res); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	r.logger.Debug("Read file",
		zap.String("file", name),
		zap.Stringer("source", r.config.Source),
		zap.Int("rows", res.Table.Len()),
		zap.Int("columns", res.Table.Width()))
	return res, nil
}

// warn logs msg and keeps it on the result
func (r *Reader) warn(res *Result, msg string, fields ...zap.Field) {
	res.Warnings = append(res.Warnings, msg)
	r.logger.Warn(msg, append([]zap.Field{zap.String("file", res.Name)}, fields...)...)
}

// build coerces a raw frame into a cleaned table
func (r *Reader) build(frame *rawFrame, res *Result) error {
	cells := make([]string, len(frame.rows))
	for i, row := range frame.rows {
		cells[i] = cell(row, 0)
	}

	loc := r.config.Location
	if loc == nil {
		loc = time.UTC
	}
	parser := r.converter.NewTimeParser(loc)
	parser.Layouts = frame.layouts
	parsed, err := parser.ParseColumn(cells)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoTimestamp, err)
	}
	if parsed.DayFirst {
		res.DayFirst = true
		r.warn(res, "Dates are not in month/day/year format. Trying day/month/year format.")
	}

	tbl := model.NewTable(parsed.Times)
	tbl.Location = r.config.Location
	if parsed.Zone != nil {
		if r.config.Location != nil && len(parsed.Times) > 0 {
			_, fileOffset := parsed.Times[0].Zone()
			_, declared := parsed.Times[0].In(r.config.Location).Zone()
			if fileOffset != declared {
				r.warn(res, "Declared timezone conflicts with the timezone in the file; using the file's timezone",
					zap.String("declared", r.config.Location.String()),
					zap.String("file_zone", parsed.Zone.String()))
			}
		}
		tbl.Location = parsed.Zone
	}

	for j, name := range frame.names {
		values := make([]float64, len(frame.rows))
		kind := model.KindInt
		for i, row := range frame.rows {
			v, isInt, ok := r.converter.ParseNumber(cell(row, j+1))
			values[i] = v
			if ok && !isInt {
				kind = model.KindFloat
			}
		}
		if err := tbl.AddColumn(model.NewSeries(name, kind, values)); err != nil {
			return err
		}
	}

	res.Cleaning = append(res.Cleaning, r.cleaner.Clean(tbl, res.Name)...)
	tbl.SortByIndex()
	res.Table = tbl
	return nil
}

// cell returns row[j] trimmed, or "" past the end of a ragged row
func cell(row []string, j int) string {
	if j >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[j])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func trimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}
