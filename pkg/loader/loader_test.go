package loader

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/David-Botos/captest/pkg/config"
	"github.com/David-Botos/captest/pkg/model"
)

func dateRange(start time.Time, freq time.Duration, periods int) []time.Time {
	index := make([]time.Time, periods)
	for i := range index {
		index[i] = start.Add(time.Duration(i) * freq)
	}
	return index
}

func arange(from, to int) []float64 {
	values := make([]float64, 0, to-from)
	for v := from; v < to; v++ {
		values = append(values, float64(v))
	}
	return values
}

func frame(t *testing.T, index []time.Time, cols ...*model.Series) *model.Table {
	t.Helper()
	tbl := model.NewTable(index)
	for _, c := range cols {
		require.NoError(t, tbl.AddColumn(c))
	}
	return tbl
}

func intCol(name string, values []float64) *model.Series {
	return model.NewSeries(name, model.KindInt, values)
}

func floatCol(name string, values []float64) *model.Series {
	return model.NewSeries(name, model.KindFloat, values)
}

var (
	jan1 = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2 = jan1.AddDate(0, 0, 1)
)

func writeMinuteFile(t *testing.T, dir, name string, start time.Time, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(",met1_poa1,met1_poa2\n")
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		fmt.Fprintf(&b, "%s,%d,%d\n", ts.Format("2006-01-02 15:04:05"), i, i+20)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func writeThreeDays(t *testing.T) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for i := 1; i <= 3; i++ {
		start := time.Date(2022, 8, i, 0, 0, 0, 0, time.UTC)
		paths = append(paths, writeMinuteFile(t, dir, fmt.Sprintf("file_%d.csv", i), start, 20))
	}
	return dir, paths
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
}

func TestSetFilesToLoad(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  []string
	}{
		{"all csv", []string{"c.csv", "a.csv", "b.csv"}, []string{"a.csv", "b.csv", "c.csv"}},
		{"not all csv", []string{"a.csv", "b.parquet", "c.csv"}, []string{"a.csv", "c.csv"}},
		{"upper case extension", []string{"test1.csv", "test3.CSV", "test4.txt"}, []string{"test1.csv", "test3.CSV"}},
		{"pvsyst skipped", []string{"a.csv", "pvsyst.csv", "PVsyst_data.csv"}, []string{"a.csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			touch(t, dir, tt.files...)

			dl := New(dir, DefaultConfig(), zap.NewNop())
			require.NoError(t, dl.SetFilesToLoad())

			var want []string
			for _, name := range tt.want {
				want = append(want, filepath.Join(dir, name))
			}
			assert.Equal(t, want, dl.FilesToLoad)
		})
	}
}

func TestSetFilesToLoadNoFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.html", "b.pdf")
	core, logs := observer.New(zapcore.WarnLevel)

	dl := New(dir, DefaultConfig(), zap.New(core))
	require.NoError(t, dl.SetFilesToLoad())

	assert.Empty(t, dl.FilesToLoad)
	require.Len(t, dl.Warnings, 1)
	assert.Contains(t, dl.Warnings[0], "No files with csv extension were found in the directory")
	assert.Equal(t, 1, logs.Len())

	require.NoError(t, dl.Load(context.Background()))
	assert.Equal(t, 0, dl.Data.Len())
}

func TestInferFrequency(t *testing.T) {
	assert.Equal(t, time.Hour, InferFrequency(dateRange(jan1, time.Hour, 24)))
	assert.Equal(t, time.Duration(0), InferFrequency(dateRange(jan1, time.Hour, 1)))

	// one 5-minute gap and one 10-minute gap tie; the smaller wins
	tie := []time.Time{jan1, jan1.Add(5 * time.Minute), jan1.Add(15 * time.Minute)}
	assert.Equal(t, 5*time.Minute, InferFrequency(tie))

	unsorted := []time.Time{jan1.Add(2 * time.Minute), jan1, jan1.Add(time.Minute)}
	assert.Equal(t, time.Minute, InferFrequency(unsorted))
}

func TestFormatFrequency(t *testing.T) {
	assert.Equal(t, "60min", FormatFrequency(time.Hour))
	assert.Equal(t, "5min", FormatFrequency(5*time.Minute))
	assert.Equal(t, "30s", FormatFrequency(30*time.Second))
	assert.Equal(t, "", FormatFrequency(0))
}

func TestReindexLoadedFiles(t *testing.T) {
	dl := New("", DefaultConfig(), zap.NewNop())
	dl.LoadedFiles = map[string]*model.Table{
		"day1": frame(t, dateRange(jan1, time.Hour, 24), intCol("a", arange(0, 24))),
		"day2": frame(t, dateRange(jan1, 5*time.Minute, 24*6), intCol("a", arange(0, 24*6))),
		"day3": frame(t, dateRange(jan1, time.Hour, 24), intCol("a", arange(0, 24))),
	}

	reindexed, common, freqs := dl.reindexLoadedFiles()

	assert.Equal(t, "60min", FormatFrequency(common))
	var labels []string
	for _, f := range freqs {
		labels = append(labels, FormatFrequency(f))
	}
	assert.Equal(t, []string{"60min", "5min", "60min"}, labels)

	day2 := reindexed["day2"]
	assert.Equal(t, 24, day2.Len())
	assert.Equal(t, 12.0, day2.Column("a").Values[1])
	assert.Equal(t, model.KindInt, day2.Column("a").Kind)
	assert.Len(t, dl.Warnings, 1)
}

func TestJoinFiles(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]*model.Table
		rows     int
		cols     int
		kinds    map[string]model.Kind
		warnings int
		check    func(t *testing.T, data *model.Table)
	}{
		{
			name: "same headers",
			files: map[string]*model.Table{
				"day1": frame(t, dateRange(jan1, time.Hour, 24), intCol("a", arange(0, 24)), intCol("b", arange(24, 48))),
				"day2": frame(t, dateRange(jan2, time.Hour, 24), floatCol("a", arange(24, 48)), intCol("b", arange(0, 24))),
			},
			rows:  48,
			cols:  2,
			kinds: map[string]model.Kind{"a": model.KindFloat, "b": model.KindInt},
		},
		{
			name: "same headers same index",
			files: map[string]*model.Table{
				"day1": frame(t, dateRange(jan1, time.Hour, 24), intCol("a", arange(0, 24)), intCol("b", arange(24, 48))),
				"day2": frame(t, dateRange(jan1, time.Hour, 24), intCol("a", arange(24, 48)), intCol("b", arange(0, 24))),
			},
			rows:     24,
			cols:     2,
			kinds:    map[string]model.Kind{"a": model.KindInt, "b": model.KindInt},
			warnings: 1,
			check: func(t *testing.T, data *model.Table) {
				assert.Equal(t, arange(24, 48), data.Column("a").Values)
			},
		},
		{
			name: "different headers",
			files: map[string]*model.Table{
				"day1": frame(t, dateRange(jan1, time.Hour, 24), intCol("a", arange(0, 24)), intCol("b", arange(24, 48))),
				"day2": frame(t, dateRange(jan1, time.Hour, 24), floatCol("c", arange(24, 48)), intCol("d", arange(0, 24))),
			},
			rows: 24,
			cols: 4,
			kinds: map[string]model.Kind{
				"a": model.KindInt, "b": model.KindInt, "c": model.KindFloat, "d": model.KindInt,
			},
			check: func(t *testing.T, data *model.Table) {
				for _, c := range data.Columns {
					assert.False(t, c.HasMissing(), c.Name)
				}
			},
		},
		{
			name: "different headers and days",
			files: map[string]*model.Table{
				"day1": frame(t, dateRange(jan1, time.Hour, 24), intCol("a", arange(0, 24)), intCol("b", arange(24, 48))),
				"day2": frame(t, dateRange(jan2, time.Hour, 24), intCol("c", arange(24, 48)), intCol("d", arange(0, 24))),
			},
			rows: 48,
			cols: 4,
			kinds: map[string]model.Kind{
				"a": model.KindFloat, "b": model.KindFloat, "c": model.KindFloat, "d": model.KindFloat,
			},
			check: func(t *testing.T, data *model.Table) {
				for i := 0; i < 24; i++ {
					assert.True(t, math.IsNaN(data.Value("c", i)))
					assert.True(t, math.IsNaN(data.Value("a", i+24)))
				}
			},
		},
		{
			name: "overlapping headers",
			files: map[string]*model.Table{
				"day1": frame(t, dateRange(jan1, time.Hour, 24), intCol("a", arange(0, 24)), intCol("b", arange(24, 48))),
				"day2": frame(t, dateRange(jan2, time.Hour, 24), intCol("b", arange(0, 24)), intCol("c", arange(24, 48))),
			},
			rows:  48,
			cols:  3,
			kinds: map[string]model.Kind{"a": model.KindFloat, "b": model.KindInt, "c": model.KindFloat},
			check: func(t *testing.T, data *model.Table) {
				assert.Equal(t, jan1, data.Index[0])
				assert.Equal(t, jan2.Add(23*time.Hour), data.Index[47])
				assert.Equal(t, []string{"a", "b", "c"}, data.ColumnNames())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dl := New("", DefaultConfig(), zap.NewNop())
			dl.LoadedFiles = tt.files
			dl.CommonFreq = time.Hour

			data := dl.joinFiles(dl.LoadedFiles)

			assert.Equal(t, tt.rows, data.Len())
			assert.Equal(t, tt.cols, data.Width())
			assert.True(t, data.IsSorted())
			for name, kind := range tt.kinds {
				assert.Equal(t, kind, data.Column(name).Kind, name)
			}
			assert.Len(t, dl.Warnings, tt.warnings)
			if tt.check != nil {
				tt.check(t, data)
			}
		})
	}
}

func TestLoadSingleFile(t *testing.T) {
	path := writeMinuteFile(t, t.TempDir(), "single_file.csv", time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC), 20)

	dl := New(path, DefaultConfig(), zap.NewNop())
	require.NoError(t, dl.Load(context.Background()))

	assert.Equal(t, 20, dl.Data.Len())
	assert.Equal(t, 2, dl.Data.Width())
	assert.Contains(t, dl.LoadedFiles, "single_file")
	assert.Equal(t, time.Minute, dl.CommonFreq)
}

func TestLoadAllFilesInDirectory(t *testing.T) {
	dir, _ := writeThreeDays(t)

	dl := New(dir, DefaultConfig(), zap.NewNop())
	require.NoError(t, dl.Load(context.Background()))

	assert.Equal(t, 60, dl.Data.Len())
	assert.Equal(t, 2, dl.Data.Width())
	assert.Equal(t, []string{"file_1", "file_2", "file_3"}, dl.Keys())
	assert.Empty(t, dl.Warnings)
}

func TestLoadSpecificFiles(t *testing.T) {
	dir, paths := writeThreeDays(t)

	dl := New(dir, DefaultConfig(), zap.NewNop())
	dl.FilesToLoad = []string{paths[0], paths[2]}
	require.NoError(t, dl.Load(context.Background()))

	assert.Equal(t, 40, dl.Data.Len())
	assert.Equal(t,
		dateRange(time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC), time.Minute, 20),
		dl.LoadedFiles["file_1"].Index)
	assert.Equal(t,
		dateRange(time.Date(2022, 8, 3, 0, 0, 0, 0, time.UTC), time.Minute, 20),
		dl.LoadedFiles["file_3"].Index)
	assert.NotContains(t, dl.LoadedFiles, "file_2")
}

func TestLoadGapFreeReindex(t *testing.T) {
	dir, _ := writeThreeDays(t)

	cfg := DefaultConfig()
	cfg.Reindex = true
	cfg.DropDuplicates = false
	dl := New(dir, cfg, zap.NewNop())
	require.NoError(t, dl.Load(context.Background()))

	assert.Equal(t, 2900, dl.Data.Len())
	assert.Equal(t, 2, dl.Data.Width())
	assert.Equal(t, model.KindFloat, dl.Data.Column("met1_poa1").Kind)
}

func writeDuplicateFile(t *testing.T) string {
	t.Helper()
	content := ",poa\n" +
		"2022-08-01 00:00:00,1\n" +
		"2022-08-01 00:01:00,2\n" +
		"2022-08-01 00:01:00,3\n" +
		"2022-08-01 00:03:00,4\n"
	path := filepath.Join(t.TempDir(), "dups.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDuplicatesKeptSkipsReindex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reindex = true
	cfg.DropDuplicates = false
	dl := New(writeDuplicateFile(t), cfg, zap.NewNop())
	require.NoError(t, dl.Load(context.Background()))

	assert.Equal(t, 4, dl.Data.Len())
	assert.Equal(t, []float64{1, 2, 3, 4}, dl.Data.Column("poa").Values)
	require.Len(t, dl.Warnings, 1)
	assert.Contains(t, dl.Warnings[0], "duplicate timestamps")
}

func TestLoadDuplicatesDropped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reindex = true
	dl := New(writeDuplicateFile(t), cfg, zap.NewNop())
	require.NoError(t, dl.Load(context.Background()))

	assert.Equal(t, 4, dl.Data.Len())
	poa := dl.Data.Column("poa").Values
	assert.Equal(t, []float64{1, 2}, poa[:2])
	assert.True(t, math.IsNaN(poa[2]))
	assert.Equal(t, 4.0, poa[3])
	assert.Empty(t, dl.Warnings)
}

func TestLoadCancelled(t *testing.T) {
	dir, _ := writeThreeDays(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dl := New(dir, DefaultConfig(), zap.NewNop())
	assert.ErrorIs(t, dl.Load(ctx), context.Canceled)
}

func TestLoadMissingPath(t *testing.T) {
	dl := New(filepath.Join(t.TempDir(), "absent"), DefaultConfig(), zap.NewNop())
	assert.Error(t, dl.Load(context.Background()))
}

func TestConfigFrom(t *testing.T) {
	assert.Equal(t, DefaultConfig().Workers, ConfigFrom(nil).Workers)

	cfg := ConfigFrom(&config.Config{LoaderWorkers: 7, Timezone: "America/Denver"})
	assert.Equal(t, 7, cfg.Workers)
	require.NotNil(t, cfg.Reader.Location)
	assert.Equal(t, "America/Denver", cfg.Reader.Location.String())
	assert.Equal(t, ".csv", cfg.Extension)

	cfg = ConfigFrom(&config.Config{})
	assert.Equal(t, DefaultConfig().Workers, cfg.Workers)
	assert.Nil(t, cfg.Reader.Location)
}
