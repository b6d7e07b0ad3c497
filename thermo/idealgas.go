package thermo

import "fmt"

// Species describes one gas-phase species with constant molar heat capacity.
type Species struct {
	Name string
	// MolecularWeight in kg/kmol.
	MolecularWeight float64
	// Cp is the constant-pressure molar heat capacity in J/kmol/K.
	Cp float64
	// Hf298 is the molar formation enthalpy at 298.15 K in J/kmol.
	Hf298 float64
}

// IdealGasPhase is a mixture of ideal-gas species with constant heat
// capacities. Enthalpies are linear in temperature, so the internal energy
// is strictly monotonic in T and temperature recovery from energy always
// has a unique root inside the valid range.
type IdealGasPhase struct {
	name    string
	species []Species
	index   map[string]int
	mw      []float64
	hf298   []float64 // current formation enthalpies, perturbable
	hf0     []float64 // construction-time values for reset

	temp float64
	rho  float64
	y    []float64

	minTemp float64
	maxTemp float64
}

// NewIdealGasPhase creates a phase at 300 K, 1 kg/m^3, with the first
// species at unit mass fraction.
func NewIdealGasPhase(name string, species []Species) *IdealGasPhase {
	p := &IdealGasPhase{
		name:    name,
		species: species,
		index:   make(map[string]int, len(species)),
		mw:      make([]float64, len(species)),
		hf298:   make([]float64, len(species)),
		hf0:     make([]float64, len(species)),
		temp:    300.0,
		rho:     1.0,
		y:       make([]float64, len(species)),
		minTemp: 100.0,
		maxTemp: 5000.0,
	}
	for k, s := range species {
		p.index[s.Name] = k
		p.mw[k] = s.MolecularWeight
		p.hf298[k] = s.Hf298
		p.hf0[k] = s.Hf298
	}
	if len(p.y) > 0 {
		p.y[0] = 1.0
	}
	return p
}

// SetTempLimits overrides the valid temperature range.
func (p *IdealGasPhase) SetTempLimits(tmin, tmax float64) {
	p.minTemp = tmin
	p.maxTemp = tmax
}

func (p *IdealGasPhase) Name() string  { return p.name }
func (p *IdealGasPhase) NSpecies() int { return len(p.species) }

func (p *IdealGasPhase) SpeciesName(k int) string {
	if k < 0 || k >= len(p.species) {
		return ""
	}
	return p.species[k].Name
}

func (p *IdealGasPhase) SpeciesIndex(name string) int {
	if k, ok := p.index[name]; ok {
		return k
	}
	return -1
}

func (p *IdealGasPhase) MolecularWeights() []float64 { return p.mw }

func (p *IdealGasPhase) MeanMolecularWeight() float64 {
	sumY := 0.0
	sumYW := 0.0
	for k, yk := range p.y {
		sumY += yk
		sumYW += yk / p.mw[k]
	}
	if sumYW == 0 {
		return 0
	}
	return sumY / sumYW
}

func (p *IdealGasPhase) Temperature() float64 { return p.temp }
func (p *IdealGasPhase) Density() float64     { return p.rho }

func (p *IdealGasPhase) Pressure() float64 {
	return p.rho * GasConstant * p.temp / p.MeanMolecularWeight()
}

func (p *IdealGasPhase) SetStateTD(t, rho float64) error {
	if t <= 0 || rho <= 0 {
		return fmt.Errorf("%w: T=%g, rho=%g", ErrInvalidState, t, rho)
	}
	p.temp = t
	p.rho = rho
	return nil
}

func (p *IdealGasPhase) SetDensity(rho float64) error {
	if rho <= 0 {
		return fmt.Errorf("%w: rho=%g", ErrInvalidState, rho)
	}
	p.rho = rho
	return nil
}

// SetState sets temperature, density and composition together.
func (p *IdealGasPhase) SetState(t, rho float64, y []float64) error {
	if err := p.SetStateTD(t, rho); err != nil {
		return err
	}
	return p.SetMassFractionsNoNorm(y)
}

func (p *IdealGasPhase) SetMassFractionsNoNorm(y []float64) error {
	if len(y) != len(p.y) {
		return fmt.Errorf("%w: got %d mass fractions for %d species",
			ErrStateSize, len(y), len(p.y))
	}
	copy(p.y, y)
	return nil
}

func (p *IdealGasPhase) MassFractions() []float64 { return p.y }

func (p *IdealGasPhase) GetMassFractions(y []float64) { copy(y, p.y) }

func (p *IdealGasPhase) GetConcentrations(c []float64) {
	for k := range p.y {
		c[k] = p.rho * p.yNorm(k) / p.mw[k]
	}
}

// yNorm returns the normalized mass fraction of species k.
func (p *IdealGasPhase) yNorm(k int) float64 {
	sum := 0.0
	for _, yk := range p.y {
		sum += yk
	}
	if sum == 0 {
		return 0
	}
	return p.y[k] / sum
}

// EnthalpyMass returns the specific enthalpy in J/kg.
func (p *IdealGasPhase) EnthalpyMass() float64 {
	sum := 0.0
	norm := 0.0
	for k, yk := range p.y {
		hk := p.hf298[k] + p.species[k].Cp*(p.temp-T298)
		sum += yk * hk / p.mw[k]
		norm += yk
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// IntEnergyMass returns the specific internal energy in J/kg.
func (p *IdealGasPhase) IntEnergyMass() float64 {
	return p.EnthalpyMass() - GasConstant*p.temp/p.MeanMolecularWeight()
}

// CpMass returns the specific heat at constant pressure in J/kg/K.
func (p *IdealGasPhase) CpMass() float64 {
	sum := 0.0
	norm := 0.0
	for k, yk := range p.y {
		sum += yk * p.species[k].Cp / p.mw[k]
		norm += yk
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// GetPartialMolarEnthalpies fills h with per-species molar enthalpies in
// J/kmol at the current temperature.
func (p *IdealGasPhase) GetPartialMolarEnthalpies(h []float64) {
	for k := range p.species {
		h[k] = p.hf298[k] + p.species[k].Cp*(p.temp-T298)
	}
}

// CvMass returns the specific heat at constant volume in J/kg/K.
func (p *IdealGasPhase) CvMass() float64 {
	return p.CpMass() - GasConstant/p.MeanMolecularWeight()
}

func (p *IdealGasPhase) MinTemp() float64 { return p.minTemp }
func (p *IdealGasPhase) MaxTemp() float64 { return p.maxTemp }

func (p *IdealGasPhase) StateSize() int { return 2 + len(p.y) }

func (p *IdealGasPhase) SaveState(buf []float64) error {
	if len(buf) != p.StateSize() {
		return fmt.Errorf("%w: need %d, got %d", ErrStateSize, p.StateSize(), len(buf))
	}
	buf[0] = p.temp
	buf[1] = p.rho
	copy(buf[2:], p.y)
	return nil
}

func (p *IdealGasPhase) RestoreState(buf []float64) error {
	if len(buf) != p.StateSize() {
		return fmt.Errorf("%w: need %d, got %d", ErrStateSize, p.StateSize(), len(buf))
	}
	p.temp = buf[0]
	p.rho = buf[1]
	copy(p.y, buf[2:])
	return nil
}

func (p *IdealGasPhase) Hf298(k int) float64 {
	if k < 0 || k >= len(p.hf298) {
		return 0
	}
	return p.hf298[k]
}

func (p *IdealGasPhase) ModifyHf298(k int, h float64) error {
	if k < 0 || k >= len(p.hf298) {
		return fmt.Errorf("%w: %d", ErrSpeciesBounds, k)
	}
	p.hf298[k] = h
	return nil
}

func (p *IdealGasPhase) ResetHf298(k int) {
	if k < 0 || k >= len(p.hf298) {
		return
	}
	p.hf298[k] = p.hf0[k]
}
