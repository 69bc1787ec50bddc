// pkg/capdata/views.go
package capdata

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/model"
)

// View returns the columns of the given groups from Data
func (cd *CapData) View(keys ...string) (*model.Table, error) {
	return cd.view(cd.Data, keys)
}

// ViewFiltered returns the columns of the given groups from DataFiltered
func (cd *CapData) ViewFiltered(keys ...string) (*model.Table, error) {
	return cd.view(cd.DataFiltered, keys)
}

// ViewIndex selects groups by their position in ColumnGroups.Keys()
func (cd *CapData) ViewIndex(idx ...int) (*model.Table, error) {
	keys := cd.ColumnGroups.Keys()
	selected := make([]string, 0, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(keys) {
			return nil, fmt.Errorf("%w: index %d out of range [0, %d)", ErrUnknownGroup, i, len(keys))
		}
		selected = append(selected, keys[i])
	}
	return cd.View(selected...)
}

func (cd *CapData) view(data *model.Table, keys []string) (*model.Table, error) {
	var cols []string
	for _, key := range keys {
		resolved, err := cd.resolve(key, data)
		if err != nil {
			return nil, err
		}
		cols = append(cols, resolved...)
	}
	return data.Select(cols...)
}

// resolve turns a group key or raw column name into column names
func (cd *CapData) resolve(key string, data *model.Table) ([]string, error) {
	if cols, ok := cd.ColumnGroups[key]; ok {
		return cols, nil
	}
	if data.HasColumn(key) {
		return []string{key}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, key)
}

// expandRoles turns role arguments into role names, expanding RoleAll
func (cd *CapData) expandRoles(roles []string) []string {
	if len(roles) == 1 && roles[0] == RoleAll {
		var all []string
		for _, role := range Roles {
			if _, ok := cd.RegressionCols[role]; ok {
				all = append(all, role)
			}
		}
		return all
	}
	return roles
}

// RView returns the columns assigned to the given regression roles. "all"
// selects every assigned role.
func (cd *CapData) RView(filtered bool, roles ...string) (*model.Table, error) {
	data := cd.Data
	if filtered {
		data = cd.DataFiltered
	}

	var cols []string
	for _, role := range cd.expandRoles(roles) {
		key, ok := cd.RegressionCols[role]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
		resolved, err := cd.resolve(key, data)
		if err != nil {
			return nil, fmt.Errorf("role %s: %w", role, err)
		}
		cols = append(cols, resolved...)
	}
	return data.Select(cols...)
}

// RoleColumn returns the single column assigned to role. A role that maps to
// a group of several columns is ambiguous: a warning is logged and
// ErrAmbiguousColumn returned.
func (cd *CapData) RoleColumn(role string, filtered bool) (*model.Series, error) {
	key, ok := cd.RegressionCols[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	data := cd.Data
	if filtered {
		data = cd.DataFiltered
	}
	return cd.singleColumn(key, data)
}

// singleColumn resolves a group key or column name that must name one column
func (cd *CapData) singleColumn(key string, data *model.Table) (*model.Series, error) {
	cols, err := cd.resolve(key, data)
	if err != nil {
		return nil, err
	}
	if len(cols) != 1 {
		cd.warn("Multiple columns found for a single-column operation; aggregate the group first or pass a column name",
			zap.String("key", key),
			zap.Strings("columns", cols))
		return nil, fmt.Errorf("%w: %q holds %d columns", ErrAmbiguousColumn, key, len(cols))
	}
	s := data.Column(cols[0])
	if s == nil {
		return nil, fmt.Errorf("%w: column %q", ErrUnknownGroup, cols[0])
	}
	return s, nil
}
