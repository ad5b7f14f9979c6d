package domain

// MetalConstant holds the reference values for one metal.
type MetalConstant struct {
	StandardLimit     float64 // S
	IdealValue        float64 // I
	BaselineAbundance float64 // B
}

// metalOrder is the column order rows are parsed in.
var metalOrder = []string{"Pb", "Cd", "Zn", "Cu", "Ni", "Mn", "As", "Cr"}

// constantTable maps metal symbols to their reference values.
type constantTable map[string]MetalConstant

var metalConstants = constantTable{
	"Zn": {StandardLimit: 15000, IdealValue: 5000, BaselineAbundance: 70},
	"Cd": {StandardLimit: 10, IdealValue: 5, BaselineAbundance: 0.5},
	"Pb": {StandardLimit: 15, IdealValue: 10, BaselineAbundance: 20},
	"Cu": {StandardLimit: 1500, IdealValue: 50, BaselineAbundance: 25},
	"Ni": {StandardLimit: 100, IdealValue: 20, BaselineAbundance: 40},
	"Mn": {StandardLimit: 300, IdealValue: 100, BaselineAbundance: 850},
	"As": {StandardLimit: 50, IdealValue: 10, BaselineAbundance: 10},
	"Cr": {StandardLimit: 100, IdealValue: 1, BaselineAbundance: 90},
}

// LookupConstant returns the reference values for a metal symbol.
// Lookup is exact-match and case-sensitive ("Pb", not "pb").
func LookupConstant(metal string) (MetalConstant, bool) {
	c, ok := metalConstants[metal]
	return c, ok
}

// KnownMetals returns the recognized metal symbols in parse order.
func KnownMetals() []string {
	out := make([]string, len(metalOrder))
	copy(out, metalOrder)
	return out
}
