// pkg/columngroups/groups.go
package columngroups

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v2"

	"github.com/David-Botos/captest/pkg/model"
)

var (
	// ErrUnknownGroup is returned when a group key is not in the mapping
	ErrUnknownGroup = errors.New("unknown column group")
	// ErrUnsupportedFormat is returned for sidecar files that are neither JSON nor YAML
	ErrUnsupportedFormat = errors.New("unsupported column groups file format")
)

// ColumnGroups maps group keys to the raw column names in each group
type ColumnGroups map[string][]string

// Keys returns the group keys in sorted order, without IndexKey
func (cg ColumnGroups) Keys() []string {
	keys := make([]string, 0, len(cg))
	for k := range cg {
		if k == IndexKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Columns returns the columns of the given groups, in argument order
func (cg ColumnGroups) Columns(keys ...string) ([]string, error) {
	var cols []string
	for _, key := range keys {
		group, ok := cg[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, key)
		}
		cols = append(cols, group...)
	}
	return cols, nil
}

// GroupOf returns the key of the group holding column, or "" when none does
func (cg ColumnGroups) GroupOf(column string) string {
	for key, cols := range cg {
		for _, c := range cols {
			if c == column {
				return key
			}
		}
	}
	return ""
}

// DropColumns removes columns from every group. Groups left empty are removed.
func (cg ColumnGroups) DropColumns(columns ...string) {
	drop := make(map[string]bool, len(columns))
	for _, c := range columns {
		drop[c] = true
	}
	for key, cols := range cg {
		kept := cols[:0]
		for _, c := range cols {
			if !drop[c] {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			delete(cg, key)
			continue
		}
		cg[key] = kept
	}
}

// Copy returns a deep copy
func (cg ColumnGroups) Copy() ColumnGroups {
	if cg == nil {
		return nil
	}
	out := make(ColumnGroups, len(cg))
	for k, v := range cg {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Equal reports whether both mappings hold the same keys and columns in the
// same order. Nil and empty groups are equal.
func (cg ColumnGroups) Equal(other ColumnGroups) bool {
	return cmp.Equal(map[string][]string(cg), map[string][]string(other), cmpopts.EquateEmpty())
}

// Validate checks that every column of t is in exactly one group and that
// every grouped column exists in t
func (cg ColumnGroups) Validate(t *model.Table) error {
	seen := make(map[string]string)
	var problems []string
	for _, key := range sortedKeys(cg) {
		for _, c := range cg[key] {
			if prev, dup := seen[c]; dup {
				problems = append(problems, fmt.Sprintf("column %q is in groups %q and %q", c, prev, key))
				continue
			}
			seen[c] = key
			if !t.HasColumn(c) {
				problems = append(problems, fmt.Sprintf("column %q in group %q is not in the data", c, key))
			}
		}
	}
	for _, name := range t.ColumnNames() {
		if _, ok := seen[name]; !ok {
			problems = append(problems, fmt.Sprintf("column %q is not in any group", name))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid column groups: %s", strings.Join(problems, "; "))
	}
	return nil
}

func sortedKeys(cg ColumnGroups) []string {
	keys := make([]string, 0, len(cg))
	for k := range cg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ReadFile loads a column groups mapping from a JSON or YAML file. JSON files
// may carry comments and trailing commas.
func ReadFile(path string) (ColumnGroups, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read column groups file: %w", err)
	}

	groups := ColumnGroups{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		std, err := hujson.Standardize(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if err := json.Unmarshal(std, &groups); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &groups); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return groups, nil
}
