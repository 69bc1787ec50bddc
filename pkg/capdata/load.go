// pkg/capdata/load.go
package capdata

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/columngroups"
	"github.com/David-Botos/captest/pkg/loader"
	"github.com/David-Botos/captest/pkg/reader"
)

type loadSettings struct {
	name       string
	loader     loader.Config
	files      []string
	groupsPath string
	classify   columngroups.Options
	setRegCols bool
	logger     *zap.Logger
}

// Option configures LoadData and LoadPVsyst
type Option func(*loadSettings)

// WithName sets the CapData name; the default is the file or directory name
func WithName(name string) Option {
	return func(s *loadSettings) { s.name = name }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *loadSettings) { s.logger = logger }
}

// WithLoaderConfig replaces the loader configuration
func WithLoaderConfig(cfg loader.Config) Option {
	return func(s *loadSettings) { s.loader = cfg }
}

// WithSource sets the file format hint
func WithSource(source reader.Source) Option {
	return func(s *loadSettings) { s.loader.Reader.Source = source }
}

// WithLocation sets the zone for timestamps without an offset
func WithLocation(loc *time.Location) Option {
	return func(s *loadSettings) { s.loader.Reader.Location = loc }
}

// WithEGridUnitFactor scales the PVsyst E_Grid column
func WithEGridUnitFactor(factor float64) Option {
	return func(s *loadSettings) { s.loader.Reader.EGridUnitFactor = factor }
}

// WithDropDuplicates controls whether repeated timestamps are dropped
func WithDropDuplicates(drop bool) Option {
	return func(s *loadSettings) { s.loader.DropDuplicates = drop }
}

// WithReindex controls reindexing onto a gap-free grid
func WithReindex(reindex bool) Option {
	return func(s *loadSettings) { s.loader.Reindex = reindex }
}

// WithFiles limits a directory load to the named files. Relative names are
// taken relative to the directory.
func WithFiles(names ...string) Option {
	return func(s *loadSettings) { s.files = names }
}

// WithColumnGroupsFile reads the column groups from a JSON or YAML file
// instead of classifying the columns
func WithColumnGroupsFile(path string) Option {
	return func(s *loadSettings) { s.groupsPath = path }
}

// WithClassifierOptions sets the classifier options
func WithClassifierOptions(opts columngroups.Options) Option {
	return func(s *loadSettings) { s.classify = opts }
}

// WithRegressionCols controls whether regression roles are assigned on load
func WithRegressionCols(set bool) Option {
	return func(s *loadSettings) { s.setRegCols = set }
}

func newSettings(path string, opts []Option) *loadSettings {
	cfg := loader.DefaultConfig()
	cfg.Reindex = true
	s := &loadSettings{
		name:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		loader:     cfg,
		classify:   columngroups.DefaultOptions(),
		setRegCols: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.L()
	}
	return s
}

// LoadData loads measured data from a file or a directory of files, groups
// the columns and, unless disabled, assigns regression roles from the
// groups found
func LoadData(ctx context.Context, path string, opts ...Option) (*CapData, error) {
	s := newSettings(path, opts)
	cd, err := load(ctx, path, s)
	if err != nil {
		return nil, err
	}
	if s.setRegCols {
		cd.assignRegressionCols()
	}
	return cd, nil
}

// LoadPVsyst loads a PVsyst hourly export. Unless disabled, the regression
// roles are set to E_Grid, GlobInc, T_Amb and WindVel.
func LoadPVsyst(ctx context.Context, path string, opts ...Option) (*CapData, error) {
	s := newSettings(path, append([]Option{WithSource(reader.SourcePVsyst)}, opts...))
	cd, err := load(ctx, path, s)
	if err != nil {
		return nil, err
	}
	if s.setRegCols {
		cd.SetRegressionCols(reader.PVsystEGrid, reader.PVsystGlobInc, reader.PVsystTAmb, reader.PVsystWindVel)
	}
	return cd, nil
}

func load(ctx context.Context, path string, s *loadSettings) (*CapData, error) {
	dl := loader.New(path, s.loader, s.logger)
	for _, name := range s.files {
		if !filepath.IsAbs(name) {
			name = filepath.Join(path, name)
		}
		dl.FilesToLoad = append(dl.FilesToLoad, name)
	}
	if err := dl.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	cd := New(s.name, s.logger)
	cd.Warnings = append(cd.Warnings, dl.Warnings...)
	cd.SetData(dl.Data)

	if s.groupsPath != "" {
		groups, err := columngroups.ReadFile(s.groupsPath)
		if err != nil {
			return nil, err
		}
		cd.SetColumnGroups(groups)
		if err := groups.Validate(cd.Data); err != nil {
			cd.warn("Column groups file does not match the data", zap.Error(err))
		}
		return cd, nil
	}

	res, err := columngroups.NewClassifier(s.classify, s.logger).Classify(cd.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to group columns: %w", err)
	}
	cd.ColumnGroups = res.Groups
	cd.Warnings = append(cd.Warnings, res.Warnings...)
	return cd, nil
}

// rolePrefixes lists group key prefixes for each role, most specific first
var rolePrefixes = map[string][]string{
	RolePower: {"real_pwr-mtr-", "real_pwr-"},
	RolePOA:   {"irr-poa-"},
	RoleTAmb:  {"temp-amb-"},
	RoleWVel:  {"wind-"},
}

// assignRegressionCols maps each role to the single group matching it. Roles
// matched by several groups are left unset.
func (cd *CapData) assignRegressionCols() {
	keys := cd.ColumnGroups.Keys()
	for _, role := range Roles {
		for _, prefix := range rolePrefixes[role] {
			var matches []string
			for _, key := range keys {
				if strings.HasPrefix(key, prefix) {
					matches = append(matches, key)
				}
			}
			if len(matches) == 0 {
				continue
			}
			if len(matches) == 1 {
				cd.RegressionCols[role] = matches[0]
			} else {
				cd.warn("Several column groups match a regression role; set it explicitly",
					zap.String("role", role),
					zap.Strings("groups", matches))
			}
			break
		}
	}
	cd.logger.Debug("Assigned regression columns", zap.Any("regression_cols", cd.RegressionCols))
}
