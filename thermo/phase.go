// Package thermo provides thermodynamic property evaluation for the
// reactor network simulator. The core integration engine consumes the
// ThermoPhase interface; IdealGasPhase is a concrete constant-heat-capacity
// implementation suitable for well-mixed gas reactors.
package thermo

import "errors"

// GasConstant is the universal gas constant in J/kmol/K.
const GasConstant = 8314.462618

// T298 is the reference temperature for formation enthalpies, in K.
const T298 = 298.15

var (
	ErrStateSize      = errors.New("thermo: state buffer has wrong length")
	ErrInvalidState   = errors.New("thermo: temperature and density must be positive")
	ErrSpeciesBounds  = errors.New("thermo: species index out of range")
	ErrUnknownSpecies = errors.New("thermo: unknown species")
)

// ThermoPhase is the property-evaluation contract consumed by reactors.
// A phase holds an intensive state (temperature, density, composition);
// reactors save and restore that state around every residual evaluation
// so that several reactors may share one phase object. The last writer
// wins: whoever called a state setter most recently determines what the
// accessors report.
type ThermoPhase interface {
	Name() string
	NSpecies() int
	SpeciesName(k int) string
	SpeciesIndex(name string) int

	// MolecularWeights returns the species molecular weights in kg/kmol.
	// The returned slice is owned by the phase and must not be modified.
	MolecularWeights() []float64
	MeanMolecularWeight() float64

	Temperature() float64
	Density() float64
	Pressure() float64

	// SetStateTD sets the temperature and mass density, keeping the
	// current composition.
	SetStateTD(t, rho float64) error
	SetDensity(rho float64) error

	// SetMassFractionsNoNorm sets the composition without normalizing.
	// Trial states handed out by an integrator need not sum to one;
	// intensive properties are evaluated against the normalized
	// composition on demand.
	SetMassFractionsNoNorm(y []float64) error
	MassFractions() []float64
	GetMassFractions(y []float64)

	// GetConcentrations fills c with molar concentrations in kmol/m^3.
	GetConcentrations(c []float64)

	IntEnergyMass() float64
	EnthalpyMass() float64
	CpMass() float64
	CvMass() float64

	// GetPartialMolarEnthalpies fills h with the per-species molar
	// enthalpies in J/kmol at the current temperature.
	GetPartialMolarEnthalpies(h []float64)

	// MinTemp and MaxTemp bound the range over which property
	// evaluation is valid; root finding never probes outside it.
	MinTemp() float64
	MaxTemp() float64

	// StateSize is the length of the save/restore buffer:
	// [temperature, density, mass fractions...].
	StateSize() int
	SaveState(buf []float64) error
	RestoreState(buf []float64) error

	// Formation-enthalpy perturbation hooks used by species-enthalpy
	// sensitivity parameters. ModifyHf298 sets the 298.15 K formation
	// enthalpy of species k (J/kmol); ResetHf298 restores the value the
	// phase was constructed with.
	Hf298(k int) float64
	ModifyHf298(k int, h float64) error
	ResetHf298(k int)
}
