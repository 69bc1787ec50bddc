// pkg/columngroups/classify.go
package columngroups

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/model"
)

// Options control classification
type Options struct {
	// Check observed values against each category's bounds
	BoundsCheck bool
	// Log a warning for every out-of-bounds column
	Warn bool
	// Lookup tables; nil uses the package tables
	TypeDefs      Defs
	SubTypeDefs   Defs
	EquipmentDefs Defs
}

// DefaultOptions returns the default options
func DefaultOptions() Options {
	return Options{
		BoundsCheck: true,
		Warn:        true,
	}
}

// BoundsFlag records a column whose values fall outside its category's bounds
type BoundsFlag struct {
	Column   string
	Key      string
	Min      float64
	Max      float64
	Bounds   Bounds
	BelowMin bool
	AboveMax bool
}

// Messages describes each violated bound, naming the offending value
func (f BoundsFlag) Messages() []string {
	var msgs []string
	if f.BelowMin {
		msgs = append(msgs, fmt.Sprintf("%g in %s is below %g for %s", f.Min, f.Column, f.Bounds.Min, f.Key))
	}
	if f.AboveMax {
		msgs = append(msgs, fmt.Sprintf("%g in %s is above %g for %s", f.Max, f.Column, f.Bounds.Max, f.Key))
	}
	return msgs
}

// Result holds the groups found for a table and any bounds violations
type Result struct {
	Groups   ColumnGroups
	Flags    []BoundsFlag
	Warnings []string
}

// SeriesType returns the first category of defs with a substring contained
// in the series name, ignoring case, or "" when none matches. When
// boundsCheck is set and the category has bounds, values outside them still
// yield the category along with a flag.
func SeriesType(s *model.Series, defs Defs, boundsCheck bool) (string, *BoundsFlag) {
	name := strings.ToLower(s.Name)
	for _, def := range defs {
		for _, search := range def.Search {
			if !strings.Contains(name, strings.ToLower(search)) {
				continue
			}
			if !boundsCheck || def.Bounds == nil || s.AllMissing() {
				return def.Key, nil
			}
			lo, hi := s.Min(), s.Max()
			below, above := lo < def.Bounds.Min, hi > def.Bounds.Max
			if !below && !above {
				return def.Key, nil
			}
			return def.Key, &BoundsFlag{
				Column:   s.Name,
				Key:      def.Key,
				Min:      lo,
				Max:      hi,
				Bounds:   *def.Bounds,
				BelowMin: below,
				AboveMax: above,
			}
		}
	}
	return "", nil
}

// Classifier groups the columns of tables by category
type Classifier struct {
	logger *zap.Logger
	opts   Options
}

// NewClassifier creates a Classifier. A nil logger falls back to the global zap logger.
func NewClassifier(opts Options, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.L()
	}
	if opts.TypeDefs == nil {
		opts.TypeDefs = TypeDefs
	}
	if opts.SubTypeDefs == nil {
		opts.SubTypeDefs = SubTypeDefs
	}
	if opts.EquipmentDefs == nil {
		opts.EquipmentDefs = EquipmentDefs
	}
	return &Classifier{logger: logger.Named("columngroups"), opts: opts}
}

// Classify groups every column of t under a "type-subtype-equipment" key
func Classify(t *model.Table, opts Options) (*Result, error) {
	return NewClassifier(opts, nil).Classify(t)
}

// Classify groups every column of t under a "type-subtype-equipment" key.
// Columns within a group are sorted by name.
func (c *Classifier) Classify(t *model.Table) (*Result, error) {
	if t == nil {
		return nil, errors.New("table cannot be nil")
	}

	res := &Result{Groups: ColumnGroups{}}
	for _, col := range t.Columns {
		typ, flag := SeriesType(col, c.opts.TypeDefs, c.opts.BoundsCheck)
		sub, _ := SeriesType(col, c.opts.SubTypeDefs, false)
		equip, _ := SeriesType(col, c.opts.EquipmentDefs, false)

		if flag != nil {
			res.Flags = append(res.Flags, *flag)
			if c.opts.Warn {
				for _, msg := range flag.Messages() {
					res.Warnings = append(res.Warnings, msg)
					c.logger.Warn(msg,
						zap.String("column", flag.Column),
						zap.String("type", flag.Key),
						zap.Float64("min", flag.Min),
						zap.Float64("max", flag.Max))
				}
			}
		}

		key := Key(typ, sub, equip)
		res.Groups[key] = append(res.Groups[key], col.Name)
	}

	for key := range res.Groups {
		sort.Strings(res.Groups[key])
	}

	c.logger.Debug("Classified columns",
		zap.Int("columns", t.Width()),
		zap.Int("groups", len(res.Groups)),
		zap.Int("flagged", len(res.Flags)))
	return res, nil
}

// Key joins type, sub-type and equipment labels into a group key
func Key(typ, sub, equip string) string {
	return strings.Join([]string{typ, sub, equip}, KeySeparator)
}
