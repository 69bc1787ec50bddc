// pkg/loader/loader.go
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/David-Botos/captest/pkg/cleaner"
	"github.com/David-Botos/captest/pkg/config"
	"github.com/David-Botos/captest/pkg/model"
	"github.com/David-Botos/captest/pkg/reader"
)

// Config controls file discovery, joining and reindexing
type Config struct {
	// Settings for each file read
	Reader reader.Config
	// Extension of files picked up in directory mode, matched case-insensitively
	Extension string
	// Maximum number of files read concurrently
	Workers int
	// Reindex the joined data onto a gap-free grid at the common frequency
	Reindex bool
	// Drop repeated timestamps (keeping the first) instead of only warning
	DropDuplicates bool
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Reader:         reader.DefaultConfig(),
		Extension:      ".csv",
		Workers:        4,
		Reindex:        false,
		DropDuplicates: true,
	}
}

// ConfigFrom applies the process settings to the default configuration:
// LOADER_WORKERS bounds concurrent reads and DATA_TIMEZONE places naive timestamps
func ConfigFrom(app *config.Config) Config {
	cfg := DefaultConfig()
	if app == nil {
		return cfg
	}
	if app.LoaderWorkers > 0 {
		cfg.Workers = app.LoaderWorkers
	}
	cfg.Reader.Location = app.Location()
	return cfg
}

// DataLoader reads one file or a directory of files into a single joined table
type DataLoader struct {
	// File or directory to load
	Path string
	// Files read in directory mode; filled by SetFilesToLoad when left nil
	FilesToLoad []string
	// Each file's table keyed by file name without extension
	LoadedFiles map[string]*model.Table
	// Native frequency of each loaded file, in load order
	FileFrequencies []time.Duration
	// Coarsest file frequency
	CommonFreq time.Duration
	// Joined result
	Data *model.Table
	// Every warning raised while loading
	Warnings []string
	// Cleaning applied to the individual files and the joined data
	Cleaning []model.CleaningOperation

	config  Config
	logger  *zap.Logger
	reader  *reader.Reader
	cleaner *cleaner.DataCleaner
	order   []string
}

// New creates a DataLoader for path. A nil logger falls back to the global zap logger.
func New(path string, config Config, logger *zap.Logger) *DataLoader {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("loader")
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Extension == "" {
		config.Extension = ".csv"
	}
	return &DataLoader{
		Path:    path,
		config:  config,
		logger:  logger,
		reader:  reader.New(config.Reader, logger),
		cleaner: cleaner.NewDataCleaner(logger),
	}
}

func (dl *DataLoader) warn(msg string, fields ...zap.Field) {
	dl.Warnings = append(dl.Warnings, msg)
	dl.logger.Warn(msg, fields...)
}

// SetFilesToLoad lists the files in Path with the configured extension,
// sorted by name
func (dl *DataLoader) SetFilesToLoad() error {
	entries, err := os.ReadDir(dl.Path)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dl.Path, err)
	}

	pvsystOnly := dl.config.Reader.Source == reader.SourcePVsyst
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), dl.config.Extension) {
			continue
		}
		isPVsyst := strings.Contains(strings.ToLower(entry.Name()), "pvsyst")
		if isPVsyst != pvsystOnly {
			dl.logger.Info("Skipped file", zap.String("file", entry.Name()))
			continue
		}
		files = append(files, filepath.Join(dl.Path, entry.Name()))
	}
	sort.Strings(files)

	if len(files) == 0 {
		dl.warn(fmt.Sprintf("No files with %s extension were found in the directory: %s",
			strings.TrimPrefix(dl.config.Extension, "."), dl.Path))
	}
	dl.FilesToLoad = files
	return nil
}

// Load reads the files, reindexes them to a common frequency and joins them
// into Data
func (dl *DataLoader) Load(ctx context.Context) error {
	info, err := os.Stat(dl.Path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", dl.Path, err)
	}

	files := []string{dl.Path}
	if info.IsDir() {
		if dl.FilesToLoad == nil {
			if err := dl.SetFilesToLoad(); err != nil {
				return err
			}
		}
		files = dl.FilesToLoad
	}
	if len(files) == 0 {
		dl.LoadedFiles = map[string]*model.Table{}
		dl.Data = model.NewTable(nil)
		return nil
	}

	results, err := dl.readFiles(ctx, files)
	if err != nil {
		return err
	}

	dl.LoadedFiles = make(map[string]*model.Table, len(results))
	dl.order = dl.order[:0]
	for i, res := range results {
		for _, w := range res.Warnings {
			dl.Warnings = append(dl.Warnings, res.Name+": "+w)
		}
		dl.Cleaning = append(dl.Cleaning, res.Cleaning...)

		key := stem(files[i])
		if _, taken := dl.LoadedFiles[key]; taken {
			key = filepath.Base(files[i])
		}
		if dl.config.DropDuplicates {
			dl.Cleaning = append(dl.Cleaning, dl.cleaner.DropDuplicateTimestamps(res.Table, res.Name)...)
		}
		dl.LoadedFiles[key] = res.Table
		dl.order = append(dl.order, key)
	}

	reindexed, common, freqs := dl.reindexLoadedFiles()
	dl.CommonFreq = common
	dl.FileFrequencies = freqs

	dl.Data = dl.joinFiles(reindexed)

	if dl.config.Reindex {
		dl.Data = dl.reindexGapFree(dl.Data)
	}

	dl.logger.Info("Loaded data",
		zap.Int("files", len(files)),
		zap.Int("rows", dl.Data.Len()),
		zap.Int("columns", dl.Data.Width()),
		zap.Int("rows_dropped", cleaner.CountRemovedRows(dl.Cleaning)),
		zap.String("common_freq", FormatFrequency(common)))
	return nil
}

// readFiles reads files concurrently and returns the results in input order
func (dl *DataLoader) readFiles(ctx context.Context, files []string) ([]*reader.Result, error) {
	results := make([]*reader.Result, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dl.config.Workers)

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := dl.reader.ReadFile(path)
			if err != nil {
				return err
			}
			results[i] = res
			dl.logger.Debug("Read file", zap.String("file", path))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load files: %w", err)
	}
	return results, nil
}

// Keys returns the LoadedFiles keys in load order, or sorted when the map
// was filled directly
func (dl *DataLoader) Keys() []string {
	if len(dl.order) == len(dl.LoadedFiles) {
		return append([]string(nil), dl.order...)
	}
	keys := make([]string, 0, len(dl.LoadedFiles))
	for k := range dl.LoadedFiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
