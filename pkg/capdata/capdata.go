// pkg/capdata/capdata.go
package capdata

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/David-Botos/captest/pkg/columngroups"
	"github.com/David-Botos/captest/pkg/model"
)

var (
	// ErrAmbiguousColumn is returned when a role or group resolves to more than one column
	ErrAmbiguousColumn = errors.New("ambiguous column")
	// ErrUnknownGroup is returned when a key names neither a group nor a column
	ErrUnknownGroup = columngroups.ErrUnknownGroup
	// ErrUnknownRole is returned for roles with no column assigned
	ErrUnknownRole = errors.New("regression role not set")
)

// Regression roles
const (
	RolePower = "power"
	RolePOA   = "poa"
	RoleTAmb  = "t_amb"
	RoleWVel  = "w_vel"

	// RoleAll selects every assigned role
	RoleAll = "all"
)

// Roles lists the regression roles in their canonical order
var Roles = []string{RolePower, RolePOA, RoleTAmb, RoleWVel}

// CapData holds the measured or simulated data of a capacity test. Filters
// narrow DataFiltered; Data is never changed by filtering.
type CapData struct {
	Name string
	// Data as loaded
	Data *model.Table
	// Working copy narrowed by filters
	DataFiltered *model.Table
	// Group key to raw column names
	ColumnGroups columngroups.ColumnGroups
	// Role to group key or raw column name
	RegressionCols map[string]string
	// Reporting conditions, once calculated
	RC *model.ReportingConditions
	// Warnings raised while loading and filtering
	Warnings []string
	// SessionID identifies the current audit trail; a reset starts a new one
	SessionID string

	summary []model.FilterStep
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an empty CapData. A nil logger falls back to the global zap logger.
func New(name string, logger *zap.Logger) *CapData {
	if logger == nil {
		logger = zap.L()
	}
	return &CapData{
		Name:           name,
		Data:           model.NewTable(nil),
		DataFiltered:   model.NewTable(nil),
		ColumnGroups:   columngroups.ColumnGroups{},
		RegressionCols: map[string]string{},
		SessionID:      uuid.NewString(),
		logger:         logger.Named("capdata").With(zap.String("name", name)),
		now:            time.Now,
	}
}

// Logger returns the CapData's logger
func (cd *CapData) Logger() *zap.Logger {
	return cd.logger
}

func (cd *CapData) warn(msg string, fields ...zap.Field) {
	cd.Warnings = append(cd.Warnings, msg)
	cd.logger.Warn(msg, fields...)
}

// SetData replaces the data, resets the working copy and clears the audit trail
func (cd *CapData) SetData(t *model.Table) {
	cd.Data = t
	cd.ResetFilter()
}

// Copy returns a deep copy sharing no tables, mappings or audit entries
func (cd *CapData) Copy() *CapData {
	cp := &CapData{
		Name:           cd.Name,
		Data:           cd.Data.Copy(),
		DataFiltered:   cd.DataFiltered.Copy(),
		ColumnGroups:   cd.ColumnGroups.Copy(),
		RegressionCols: make(map[string]string, len(cd.RegressionCols)),
		Warnings:       append([]string(nil), cd.Warnings...),
		SessionID:      cd.SessionID,
		summary:        append([]model.FilterStep(nil), cd.summary...),
		logger:         cd.logger,
		now:            cd.now,
	}
	for k, v := range cd.RegressionCols {
		cp.RegressionCols[k] = v
	}
	if cd.RC != nil {
		rc := *cd.RC
		rc.Rows = append([]model.ReportingCondition(nil), cd.RC.Rows...)
		cp.RC = &rc
	}
	return cp
}

// Empty reports whether no data has been loaded
func (cd *CapData) Empty() bool {
	return cd.Data.Empty()
}

// SetRegressionCols assigns the group key or column name used for each role.
// Empty arguments leave the role unset.
func (cd *CapData) SetRegressionCols(power, poa, tAmb, wVel string) {
	cd.RegressionCols = map[string]string{}
	for role, value := range map[string]string{
		RolePower: power,
		RolePOA:   poa,
		RoleTAmb:  tAmb,
		RoleWVel:  wVel,
	} {
		if value != "" {
			cd.RegressionCols[role] = value
		}
	}
}

// SetRC stores reporting conditions calculated for this data
func (cd *CapData) SetRC(rc *model.ReportingConditions) {
	cd.RC = rc
}

// SetColumnGroups replaces the column groups with a copy of cg
func (cd *CapData) SetColumnGroups(cg columngroups.ColumnGroups) {
	cd.ColumnGroups = cg.Copy()
}

// DropCols removes columns from the data, the working copy and the column groups
func (cd *CapData) DropCols(columns ...string) {
	dropped := cd.Data.DropColumns(columns...)
	cd.DataFiltered.DropColumns(columns...)
	cd.ColumnGroups.DropColumns(columns...)
	cd.logger.Debug("Dropped columns", zap.Strings("columns", dropped))
}
