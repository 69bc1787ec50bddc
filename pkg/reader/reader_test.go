package reader

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var aug1 = time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC)

// minuteRows renders n one-minute rows of two integer columns
func minuteRows(start time.Time, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		fmt.Fprintf(&b, "%s,%d,%d\n", ts.Format("2006-01-02 15:04:05"), i, i+20)
	}
	return b.String()
}

func read(t *testing.T, content, name string, cfg Config) *Result {
	t.Helper()
	res, err := New(cfg, zap.NewNop()).Read(strings.NewReader(content), name)
	require.NoError(t, err)
	return res
}

func TestReadWellFormattedFile(t *testing.T) {
	res := read(t, ",met1_poa1,met1_poa2\n"+minuteRows(aug1, 20), "simple_data.csv", DefaultConfig())

	tbl := res.Table
	assert.Equal(t, 20, tbl.Len())
	assert.Equal(t, []string{"met1_poa1", "met1_poa2"}, tbl.ColumnNames())
	assert.Equal(t, aug1, tbl.Index[0])
	assert.Equal(t, 21.0, tbl.Column("met1_poa2").Values[1])
	assert.Empty(t, res.Warnings)
	assert.Nil(t, tbl.Location)
}

func TestReadHeaderVariants(t *testing.T) {
	tests := []struct {
		name   string
		header string
		first  string
	}{
		{"double headers", ",met1,met2\n,poa,poa\n", "met1_poa"},
		{"blank row before data", ",met1_poa1,met1_poa2\n,,\n", "met1_poa1"},
		{"double headers with blank", ",met1,met2\n,,\n,poa,poa\n", "met1_poa"},
		{"blank rows at start", ",,\n\n,met1_poa1,met1_poa2\n", "met1_poa1"},
		{"index label", "timestamp,met1_poa1,met1_poa2\n", "met1_poa1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := read(t, tt.header+minuteRows(aug1, 20), "f.csv", DefaultConfig())
			assert.Equal(t, 20, res.Table.Len())
			require.NotEmpty(t, res.Table.Columns)
			assert.Equal(t, tt.first, res.Table.Columns[0].Name)
		})
	}
}

func TestFlattenHeader(t *testing.T) {
	two := FlattenHeader([][]string{{"", "met1", "met1"}, {"", "poa1", "ghi1"}}, 2)
	assert.Equal(t, []string{"met1_poa1", "met1_ghi1"}, two)

	three := FlattenHeader([][]string{
		{"", "met1", "met1", "met1"},
		{"", "poa", "poa", "ghi"},
		{"", "1", "2", ""},
	}, 3)
	assert.Equal(t, []string{"met1_poa_1", "met1_poa_2", "met1_ghi"}, three)

	assert.Equal(t, []string{"a", "Unnamed: 2", "a.1"}, FlattenHeader([][]string{{"", "a", "", "a"}}, 3))
}

func TestReadDropsNonNumericColumnsAndEmptyRows(t *testing.T) {
	content := ",poa,status,temp\n" +
		"2022-08-01 00:00:00,800,ok,20.5\n" +
		"2022-08-01 00:01:00,,ok,\n" +
		"2022-08-01 00:02:00,810,fault,21\n"

	res := read(t, content, "f.csv", DefaultConfig())

	assert.Equal(t, []string{"poa", "temp"}, res.Table.ColumnNames())
	assert.Equal(t, 2, res.Table.Len())
	assert.NotEmpty(t, res.Cleaning)
}

func TestNewWithoutLogger(t *testing.T) {
	r := New(DefaultConfig(), nil)
	require.NotNil(t, r.cleaner)
	res, err := r.Read(strings.NewReader(",poa,blank\n"+
		"2022-08-01 00:00:00,1,\n"+
		"2022-08-01 00:01:00,2,\n"), "blank.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"poa"}, res.Table.ColumnNames())
	assert.NotEmpty(t, res.Cleaning)
}

func TestReadNoTimestamp(t *testing.T) {
	_, err := New(DefaultConfig(), zap.NewNop()).Read(strings.NewReader("a,b\nx,1\ny,2\n"), "bad.csv")
	assert.ErrorIs(t, err, ErrNoTimestamp)
}

func TestReadAlsoEnergyHeaders(t *testing.T) {
	content := "Example Project,Example Project,Example Project\n" +
		`,Weather Station 1 (Standard w/ POA GHI),Elkor Production Meter` + "\n" +
		`,"Weather Station 1 (Standard w/ POA GHI), Sun","Elkor Production Meter, PowerFactor"` + "\n" +
		",W/m^2,\n" +
		"2022-08-01 00:00:00,800,0.99\n" +
		"2022-08-01 00:01:00,805,0.98\n"

	cfg := DefaultConfig()
	cfg.Source = SourceAlsoEnergy
	res := read(t, content, "ae.csv", cfg)

	assert.Equal(t, []string{
		"Weather Station 1 Sun, W/m^2",
		"Elkor Production Meter PowerFactor, ",
	}, res.Table.ColumnNames())
	assert.Equal(t, 2, res.Table.Len())
}

func TestReadAlsoEnergyShortHeaderFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = SourceAlsoEnergy
	res := read(t, ",poa\n2022-08-01 00:00:00,800\n", "ae.csv", cfg)

	assert.Equal(t, []string{"poa"}, res.Table.ColumnNames())
	assert.Len(t, res.Warnings, 1)
}

func pvsystFile(dates []string) string {
	var b strings.Builder
	b.WriteString("PVSYST V6.88\n\nSimulation variant,Site simulation\n;\n")
	b.WriteString("date,E_Grid,GlobInc,T Amb,WindVel\n")
	b.WriteString(",kWh,kWh/m²,°C,m/s\n")
	for i, d := range dates {
		fmt.Fprintf(&b, "%s,%d,%d,%.1f,%.1f\n", d, 5_469_083+i, 800+i, 20.5, 3.0)
	}
	return b.String()
}

func TestReadPVsyst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = SourcePVsyst
	res := read(t, pvsystFile([]string{"01/01/90 12:00", "01/01/90 13:00"}), "pvsyst.csv", cfg)

	tbl := res.Table
	assert.Equal(t, []string{PVsystEGrid, PVsystGlobInc, PVsystTAmb, PVsystWindVel}, tbl.ColumnNames())
	assert.Equal(t, time.Date(1990, 1, 1, 12, 0, 0, 0, time.UTC), tbl.Index[0])
	assert.Equal(t, 5_469_083.0, tbl.Column(PVsystEGrid).Values[0])
	assert.False(t, res.DayFirst)
}

func TestReadPVsystScalesEGrid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = SourcePVsyst
	cfg.EGridUnitFactor = 1000
	res := read(t, pvsystFile([]string{"01/01/90 12:00"}), "pvsyst.csv", cfg)

	assert.InDelta(t, 5_469.083, res.Table.Column(PVsystEGrid).Values[0], 1e-9)
}

func TestReadPVsystDayMonthYear(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	cfg := DefaultConfig()
	cfg.Source = SourcePVsyst

	res, err := New(cfg, zap.New(core)).Read(
		strings.NewReader(pvsystFile([]string{"12/01/90 12:00", "13/01/90 12:00"})), "pvsyst.csv")
	require.NoError(t, err)

	assert.True(t, res.DayFirst)
	assert.Equal(t, time.Date(1990, 1, 13, 12, 0, 0, 0, time.UTC), res.Table.Index[1])
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 1, logs.FilterMessageSnippet("day/month/year").Len())
}

func TestReadPVsystWithoutDateLine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = SourcePVsyst
	_, err := New(cfg, zap.NewNop()).Read(strings.NewReader("a,b\n1,2\n"), "pvsyst.csv")
	assert.ErrorIs(t, err, ErrNoTimestamp)
}

func TestReadWindows1252(t *testing.T) {
	content := []byte(",TempF_\xb0F\n2022-08-01 00:00:00,70\n")
	res := read(t, string(content), "latin.csv", DefaultConfig())
	assert.Equal(t, []string{"TempF_°F"}, res.Table.ColumnNames())
}

func TestReadSemicolonDelimited(t *testing.T) {
	content := ";poa;temp\n2022-08-01 00:00:00;800;20\n2022-08-01 00:01:00;801;21\n"
	res := read(t, content, "semi.csv", DefaultConfig())
	assert.Equal(t, []string{"poa", "temp"}, res.Table.ColumnNames())
}

func TestReadTimezoneConflict(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Location = time.FixedZone("UTC+5", 5*3600)
	res := read(t, ",poa\n2022-08-01T00:00:00-07:00,800\n", "tz.csv", cfg)

	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "timezone")
	_, offset := res.Table.Index[0].Zone()
	assert.Equal(t, -7*3600, offset)
}

func TestReadDeclaredTimezone(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*3600)
	cfg := DefaultConfig()
	cfg.Location = loc
	res := read(t, ",poa\n2022-08-01 00:00:00,800\n", "tz.csv", cfg)

	assert.Empty(t, res.Warnings)
	assert.Equal(t, loc, res.Table.Location)
	assert.True(t, res.Table.Index[0].Equal(time.Date(2022, 8, 1, 7, 0, 0, 0, time.UTC)))
}

func TestReadFileXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"", "met1_poa1", "met1_poa2"}))
	for i := 0; i < 5; i++ {
		ts := aug1.Add(time.Duration(i) * time.Minute).Format("2006-01-02 15:04:05")
		require.NoError(t, f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &[]interface{}{ts, i, i + 20}))
	}
	path := filepath.Join(t.TempDir(), "das.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	res, err := New(DefaultConfig(), zap.NewNop()).ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Table.Len())
	assert.Equal(t, []string{"met1_poa1", "met1_poa2"}, res.Table.ColumnNames())
	assert.Equal(t, 24.0, res.Table.Column("met1_poa2").Values[4])
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.csv"), DefaultConfig())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadMissingValuesPromoteKind(t *testing.T) {
	content := ",a,b\n2022-08-01 00:00:00,1,1\n2022-08-01 00:01:00,,2\n"
	res := read(t, content, "f.csv", DefaultConfig())
	a := res.Table.Column("a")
	assert.Equal(t, "float64", a.Kind.String())
	assert.True(t, math.IsNaN(a.Values[1]))
	assert.Equal(t, "int64", res.Table.Column("b").Kind.String())
}

func TestParseSource(t *testing.T) {
	s, err := ParseSource("AlsoEnergy")
	require.NoError(t, err)
	assert.Equal(t, SourceAlsoEnergy, s)

	s, err = ParseSource("")
	require.NoError(t, err)
	assert.Equal(t, SourceGeneric, s)

	_, err = ParseSource("unknown")
	assert.Error(t, err)
}
