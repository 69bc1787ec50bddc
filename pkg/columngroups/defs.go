// pkg/columngroups/defs.go
package columngroups

// Bounds is the plausible (min, max) range of a category's values
type Bounds struct {
	Min float64
	Max float64
}

// Def is one row of a lookup table: a category and the case-insensitive
// substrings that select it. Bounds is nil for tables without a range check.
type Def struct {
	Key    string
	Search []string
	Bounds *Bounds
}

// Defs is an ordered lookup table. Order matters: the first matching
// substring of the first matching Def wins.
type Defs []Def

// KeySeparator joins type, sub-type and equipment labels into a group key
const KeySeparator = "-"

// IndexKey is the group of a column holding the rendered index; views skip it
const IndexKey = "index--"

// TypeDefs assigns the measurement category. Search strings are not shared
// between categories.
var TypeDefs = Defs{
	{Key: "irr", Search: []string{"irradiance", "irr", "plane of array", "poa", "ghi",
		"global", "glob", "w/m^2", "w/m2", "w/m", "w/"}, Bounds: &Bounds{-10, 1500}},
	{Key: "temp", Search: []string{"temperature", "temp", "degrees", "deg", "ambient",
		"amb", "cell temperature", "TArray"}, Bounds: &Bounds{-49, 127}},
	{Key: "wind", Search: []string{"wind", "speed"}, Bounds: &Bounds{0, 18}},
	{Key: "pf", Search: []string{"power factor", "factor", "pf"}, Bounds: &Bounds{-1, 1}},
	{Key: "op_state", Search: []string{"operating state", "state", "op", "status"}, Bounds: &Bounds{0, 10}},
	{Key: "real_pwr", Search: []string{"real power", "ac power", "e_grid"}, Bounds: &Bounds{-1e6, 1e12}},
	{Key: "shade", Search: []string{"fshdbm", "shd", "shade"}, Bounds: &Bounds{0, 1}},
	{Key: "pvsyt_losses", Search: []string{"IL Pmax", "IL Pmin", "IL Vmax", "IL Vmin"}, Bounds: &Bounds{-1e9, 1e8}},
	{Key: "index", Search: []string{"index"}},
}

// SubTypeDefs assigns the sub-category, without a range check
var SubTypeDefs = Defs{
	{Key: "ghi", Search: []string{"sun2", "global horizontal", "ghi", "global", "GlobHor"}},
	{Key: "poa", Search: []string{"sun", "plane of array", "poa", "GlobInc"}},
	{Key: "amb", Search: []string{"TempF", "ambient", "amb"}},
	{Key: "mod", Search: []string{"Temp1", "module", "mod", "TArray"}},
	{Key: "mtr", Search: []string{"revenue meter", "rev meter", "billing meter", "meter"}},
	{Key: "inv", Search: []string{"inverter", "inv"}},
}

// EquipmentDefs assigns the irradiance sensor kind, without a range check
var EquipmentDefs = Defs{
	{Key: "ref_cell", Search: []string{"reference cell", "reference", "ref", "referance", "pvel"}},
	{Key: "pyran", Search: []string{"pyranometer", "pyran"}},
	{Key: "clear_sky", Search: []string{"csky"}},
}
