// pkg/reader/pvsyst.go
package reader

import "go.uber.org/zap"

// PVsyst column names
const (
	PVsystEGrid   = "E_Grid"
	PVsystGlobInc = "GlobInc"
	PVsystTAmb    = "T_Amb"
	PVsystWindVel = "WindVel"

	pvsystTAmbRaw = "T Amb"
)

// adjustPVsyst normalizes the ambient temperature name and applies the
// E_Grid unit factor
func (r *Reader) adjustPVsyst(res *Result) error {
	ops, err := r.cleaner.RenameColumn(res.Table, res.Name, pvsystTAmbRaw, PVsystTAmb)
	if err != nil {
		return err
	}
	res.Cleaning = append(res.Cleaning, ops...)

	if r.config.EGridUnitFactor != 0 {
		if !res.Table.HasColumn(PVsystEGrid) {
			r.warn(res, "E_Grid unit factor set but the file has no E_Grid column",
				zap.Float64("factor", r.config.EGridUnitFactor))
			return nil
		}
		res.Cleaning = append(res.Cleaning,
			r.cleaner.ScaleColumn(res.Table, res.Name, PVsystEGrid, r.config.EGridUnitFactor)...)
	}
	return nil
}
