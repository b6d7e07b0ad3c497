// Package kinetics provides reaction-rate evaluation for the reactor
// network simulator. The integration engine consumes the Kinetics
// interface; BulkKinetics and InterfaceKinetics are concrete mass-action
// implementations for homogeneous gas chemistry and heterogeneous surface
// chemistry.
package kinetics

import (
	"errors"
	"math"

	"github.com/LostSunset/cantera/thermo"
)

var (
	ErrReactionBounds = errors.New("kinetics: reaction index out of range")
	ErrSpeciesBounds  = errors.New("kinetics: species index out of range")
)

// Kinetics is the rate-evaluation contract consumed by reactors. The
// species space may span more than one phase; KineticsSpeciesIndex maps a
// species name to its position in the production-rate vector.
type Kinetics interface {
	NReactions() int
	NTotalSpecies() int

	// GetNetProductionRates fills wdot with net molar production rates
	// for every kinetics species. Units are kmol/m^3/s for bulk
	// mechanisms and kmol/m^2/s for interface mechanisms.
	GetNetProductionRates(wdot []float64)

	Multiplier(i int) float64
	SetMultiplier(i int, f float64) error

	KineticsSpeciesIndex(name string) int

	// ReactionEquation returns a printable form of reaction i, used to
	// label sensitivity parameters.
	ReactionEquation(i int) string
}

// Arrhenius holds modified-Arrhenius rate parameters:
// k(T) = A * T^B * exp(-Ea / (R*T)), with Ea in J/kmol.
type Arrhenius struct {
	A  float64
	B  float64
	Ea float64
}

// Eval returns the rate coefficient at temperature t.
func (a Arrhenius) Eval(t float64) float64 {
	k := a.A
	if a.B != 0 {
		k *= math.Pow(t, a.B)
	}
	if a.Ea != 0 {
		k *= math.Exp(-a.Ea / (thermo.GasConstant * t))
	}
	return k
}

// Stoich is one stoichiometric term: species index (in the owning
// mechanism's species space) and coefficient.
type Stoich struct {
	Species int
	Coeff   float64
}
