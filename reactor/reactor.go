package reactor

import (
	"fmt"
	"math"

	"github.com/LostSunset/cantera/kinetics"
	"github.com/LostSunset/cantera/thermo"
)

// Reactor is a well-mixed control volume with a mass-based state vector:
//
//	y[0]          total mass (kg)
//	y[1]          volume (m^3)
//	y[2]          total internal energy (J); frozen when the energy
//	              equation is disabled
//	y[3:3+K]      species mass fractions
//	y[3+K:]       surface coverages, one block per attached surface
type Reactor struct {
	base
}

// NewReactor creates a reactor holding the given phase. kin may be nil
// for a chemistry-free reactor; chemistry is enabled automatically when a
// mechanism with at least one reaction is supplied.
func NewReactor(phase thermo.ThermoPhase, kin kinetics.Kinetics, name string) *Reactor {
	return &Reactor{base: newBase(phase, kin, name)}
}

// AddSurface attaches a reactor surface; its coverages extend the state
// vector, so the network must be reinitialized afterwards.
func (r *Reactor) AddSurface(s *ReactorSurface) error {
	if s.Kinetics().KineticsSpeciesIndex(r.phase.SpeciesName(0)) < 0 {
		return fmt.Errorf("%w: surface mechanism does not include bulk phase %q",
			ErrSensitivityRange, r.phase.Name())
	}
	s.attach(&r.base)
	r.surfaces = append(r.surfaces, s)
	if r.net != nil {
		r.net.SetNeedsReinit()
	}
	return nil
}

// Initialize sizes the work arrays and caches connector state. It must be
// called (normally via the network) before any residual evaluation.
func (r *Reactor) Initialize(t0 float64) error {
	if r.phase == nil || (r.chem && r.kin == nil) {
		return fmt.Errorf("%w: reactor %q", ErrEmptyReactor, r.name)
	}
	if err := r.phase.RestoreState(r.state); err != nil {
		return err
	}
	r.sdot = make([]float64, r.nsp)
	r.wdot = make([]float64, r.nsp)
	if err := r.updateConnected(true); err != nil {
		return err
	}

	r.nvSurf = 0
	maxnt := 0
	for _, s := range r.surfaces {
		r.nvSurf += s.Thermo().NSpecies()
		if nt := s.Kinetics().NTotalSpecies(); nt > maxnt {
			maxnt = nt
		}
	}
	r.nv = r.nsp + 3 + r.nvSurf
	r.work = make([]float64, maxnt)
	return nil
}

// NEq returns the length of the reactor's local state vector.
func (r *Reactor) NEq() int { return r.nv }

// GetState populates y from the current thermodynamic state.
func (r *Reactor) GetState(y []float64) error {
	if r.phase == nil {
		return fmt.Errorf("%w: reactor %q", ErrEmptyReactor, r.name)
	}
	if err := r.phase.RestoreState(r.state); err != nil {
		return err
	}
	r.mass = r.phase.Density() * r.vol
	y[0] = r.mass
	y[1] = r.vol
	y[2] = r.phase.IntEnergyMass() * r.mass
	r.phase.GetMassFractions(y[3 : 3+r.nsp])
	r.getSurfaceInitialConditions(y[3+r.nsp:])
	return nil
}

// UpdateState sets the internal thermodynamic state from a trial vector,
// solving implicitly for temperature when the energy equation is on.
func (r *Reactor) UpdateState(y []float64) error {
	r.mass = y[0]
	r.vol = y[1]
	if err := r.phase.SetMassFractionsNoNorm(y[3 : 3+r.nsp]); err != nil {
		return err
	}
	if r.energy {
		if err := r.solveTemperature(y[2], r.mass, r.vol); err != nil {
			return err
		}
	} else {
		if err := r.phase.SetDensity(r.mass / r.vol); err != nil {
			return err
		}
	}
	if err := r.updateConnected(true); err != nil {
		return err
	}
	return r.updateSurfaceState(y[3+r.nsp:])
}

// Eval writes the residual slice for the reactor at the current state:
// lhs carries multiplicative mass weightings (default 1), rhs additive
// rates, so the network forms ydot = rhs/lhs component-wise.
func (r *Reactor) Eval(time float64, lhs, rhs []float64) error {
	r.evalWalls()
	if err := r.phase.RestoreState(r.state); err != nil {
		return err
	}
	mw := r.phase.MolecularWeights()
	y := r.phase.MassFractions()

	if err := r.evalSurfaces(rhs[3+r.nsp:], r.sdot); err != nil {
		return err
	}
	// Mass added to the gas phase by surface reactions.
	mdotSurf := 0.0
	for k := 0; k < r.nsp; k++ {
		mdotSurf += r.sdot[k] * mw[k]
	}
	rhs[0] = mdotSurf

	// Volume equation.
	rhs[1] = r.vdot

	if r.chem {
		r.kin.GetNetProductionRates(r.wdot)
	} else {
		for k := range r.wdot {
			r.wdot[k] = 0
		}
	}

	for k := 0; k < r.nsp; k++ {
		// Production in the gas phase and from surfaces, diluted by the
		// net surface mass flux.
		rhs[3+k] = (r.wdot[k]*r.vol+r.sdot[k])*mw[k] - y[k]*mdotSurf
		lhs[3+k] = r.mass
	}

	// Energy equation: dU/dt = -P dV/dt + Qdot + sum(mdot_in h_in) - mdot_out h.
	if r.energy {
		rhs[2] = -r.phase.Pressure()*r.vdot + r.qdot
	} else {
		rhs[2] = 0
	}

	for _, outlet := range r.outlets {
		mdot := outlet.MassFlowRate()
		rhs[0] -= mdot
		if r.energy {
			rhs[2] -= mdot * r.enthalpy
		}
	}

	for _, inlet := range r.inlets {
		mdot := inlet.MassFlowRate()
		rhs[0] += mdot
		for k := 0; k < r.nsp; k++ {
			// Species flow in, and dilution of everything else.
			rhs[3+k] += inlet.OutletSpeciesMassFlowRate(k) - mdot*y[k]
		}
		if r.energy {
			rhs[2] += mdot * inlet.EnthalpyMass()
		}
	}
	return nil
}

// EvalDAE is not available: this reactor is governed by ODEs.
func (r *Reactor) EvalDAE(time float64, y, ydot, residual []float64) error {
	return fmt.Errorf("%w: %q", ErrNotDAE, r.name)
}

// GetConstraints marks every component as differential.
func (r *Reactor) GetConstraints(c []float64) {
	for i := 0; i < r.nv; i++ {
		c[i] = 1
	}
}

func (r *Reactor) IsODE() bool                   { return true }
func (r *Reactor) TimeIsIndependent() bool       { return true }
func (r *Reactor) PreconditionerSupported() bool { return false }

// SteadyConstraints returns the algebraic components held fixed by the
// steady-state solver: the volume. The steady solver requires the energy
// equation and cannot handle surfaces.
func (r *Reactor) SteadyConstraints() ([]int, error) {
	if !r.energy {
		return nil, fmt.Errorf("%w: reactor %q", ErrSteadyEnergy, r.name)
	}
	if len(r.surfaces) != 0 {
		return nil, fmt.Errorf("%w: reactor %q", ErrSteadySurfaces, r.name)
	}
	return []int{1}, nil
}

// speciesIndex resolves a gas species name, then surface species in
// attachment order.
func (r *Reactor) speciesIndex(name string) int {
	if k := r.phase.SpeciesIndex(name); k >= 0 {
		return k
	}
	offset := r.nsp
	for _, s := range r.surfaces {
		if k := s.Thermo().SpeciesIndex(name); k >= 0 {
			return k + offset
		}
		offset += s.Thermo().NSpecies()
	}
	return -1
}

// ComponentIndex maps a component name to its position in the local state
// vector, or -1.
func (r *Reactor) ComponentIndex(name string) int {
	if k := r.speciesIndex(name); k >= 0 {
		return k + 3
	}
	switch name {
	case "mass":
		return 0
	case "volume":
		return 1
	case "int_energy":
		return 2
	}
	return -1
}

func (r *Reactor) ComponentName(k int) (string, error) {
	switch {
	case k == 0:
		return "mass", nil
	case k == 1:
		return "volume", nil
	case k == 2:
		return "int_energy", nil
	case k >= 3 && k < r.nv:
		k -= 3
		if k < r.nsp {
			return r.phase.SpeciesName(k), nil
		}
		k -= r.nsp
		for _, s := range r.surfaces {
			if k < s.Thermo().NSpecies() {
				return s.Thermo().SpeciesName(k), nil
			}
			k -= s.Thermo().NSpecies()
		}
	}
	return "", fmt.Errorf("%w: %d", ErrComponentBounds, k)
}

func (r *Reactor) UpperBound(k int) (float64, error) {
	switch {
	case k >= 0 && k < 3:
		return BigNumber, nil
	case k >= 3 && k < r.nv:
		return 1.0, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrComponentBounds, k)
}

func (r *Reactor) LowerBound(k int) (float64, error) {
	switch {
	case k == 0 || k == 1:
		return 0, nil
	case k == 2:
		return -BigNumber, nil
	case k >= 3 && k < r.nv:
		return -Tiny, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrComponentBounds, k)
}

// ResetBadValues clips species and coverage components to be non-negative
// after an accepted step.
func (r *Reactor) ResetBadValues(y []float64) {
	for k := 3; k < r.nv; k++ {
		y[k] = math.Max(y[k], 0)
	}
}

// SetAdvanceLimit sets the advance limit for the named component; a
// non-positive limit removes it.
func (r *Reactor) SetAdvanceLimit(name string, limit float64) error {
	k := r.ComponentIndex(name)
	if k < 0 {
		return fmt.Errorf("%w: %q", ErrNoComponent, name)
	}
	if r.nv == 0 {
		return fmt.Errorf("%w: reactor %q must be initialized first", ErrNotInNetwork, r.name)
	}
	if r.advanceLimits == nil {
		r.advanceLimits = make([]float64, r.nv)
		for i := range r.advanceLimits {
			r.advanceLimits[i] = -1
		}
	}
	r.advanceLimits[k] = limit
	if !anyPositive(r.advanceLimits) {
		r.advanceLimits = nil
	}
	return nil
}

// FiniteDifferenceJacobian computes a sparse Jacobian of the reactor's
// own ydot with respect to its own state by one-sided differences.
func (r *Reactor) FiniteDifferenceJacobian() (*SparseJacobian, error) {
	if r.nv == 0 {
		return nil, fmt.Errorf("%w: reactor %q must be initialized first",
			ErrEmptyReactor, r.name)
	}
	atol := 1e-15
	time := 0.0
	if r.net != nil {
		atol = r.net.Atol()
		time = r.net.SimTime()
	}
	return finiteDifferenceJacobian(r, time, atol)
}
