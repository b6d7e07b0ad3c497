package reactor

import (
	"fmt"
	"math"

	"github.com/LostSunset/cantera/kinetics"
	"github.com/LostSunset/cantera/thermo"
)

// MoleReactor is a well-mixed control volume with a mole-based state
// vector:
//
//	y[0]     total internal energy (J)
//	y[1]     volume (m^3)
//	y[2:]    species amounts (kmol)
//
// Total mass is implied by the species amounts, so the mole formulation
// has no separate mass equation and its Jacobian structure is regular
// enough for the preconditioned integrator path.
type MoleReactor struct {
	base
}

func NewMoleReactor(phase thermo.ThermoPhase, kin kinetics.Kinetics, name string) *MoleReactor {
	return &MoleReactor{base: newBase(phase, kin, name)}
}

// AddSurface is not supported for mole-based reactors.
func (r *MoleReactor) AddSurface(s *ReactorSurface) error {
	return fmt.Errorf("%w: %q", ErrSurfaceUnsupported, r.name)
}

func (r *MoleReactor) Initialize(t0 float64) error {
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
	r.nv = r.nsp + 2
	return nil
}

func (r *MoleReactor) NEq() int { return r.nv }

func (r *MoleReactor) GetState(y []float64) error {
	if r.phase == nil {
		return fmt.Errorf("%w: reactor %q", ErrEmptyReactor, r.name)
	}
	if err := r.phase.RestoreState(r.state); err != nil {
		return err
	}
	r.mass = r.phase.Density() * r.vol
	y[0] = r.phase.IntEnergyMass() * r.mass
	y[1] = r.vol
	mw := r.phase.MolecularWeights()
	yk := r.phase.MassFractions()
	for k := 0; k < r.nsp; k++ {
		y[2+k] = yk[k] * r.mass / mw[k]
	}
	return nil
}

func (r *MoleReactor) UpdateState(y []float64) error {
	mw := r.phase.MolecularWeights()
	r.mass = 0
	for k := 0; k < r.nsp; k++ {
		r.mass += y[2+k] * mw[k]
	}
	r.vol = y[1]

	yk := make([]float64, r.nsp)
	if r.mass > 0 {
		for k := 0; k < r.nsp; k++ {
			yk[k] = y[2+k] * mw[k] / r.mass
		}
	}
	if err := r.phase.SetMassFractionsNoNorm(yk); err != nil {
		return err
	}
	if r.energy {
		if err := r.solveTemperature(y[0], r.mass, r.vol); err != nil {
			return err
		}
	} else {
		if err := r.phase.SetDensity(r.mass / r.vol); err != nil {
			return err
		}
	}
	return r.updateConnected(true)
}

func (r *MoleReactor) Eval(time float64, lhs, rhs []float64) error {
	r.evalWalls()
	if err := r.phase.RestoreState(r.state); err != nil {
		return err
	}
	mw := r.phase.MolecularWeights()
	yk := r.phase.MassFractions()

	if r.energy {
		rhs[0] = -r.phase.Pressure()*r.vdot + r.qdot
	} else {
		rhs[0] = 0
	}
	rhs[1] = r.vdot

	if r.chem {
		r.kin.GetNetProductionRates(r.wdot)
	} else {
		for k := range r.wdot {
			r.wdot[k] = 0
		}
	}
	for k := 0; k < r.nsp; k++ {
		rhs[2+k] = r.wdot[k] * r.vol
	}

	for _, outlet := range r.outlets {
		mdot := outlet.MassFlowRate()
		for k := 0; k < r.nsp; k++ {
			rhs[2+k] -= mdot * yk[k] / mw[k]
		}
		if r.energy {
			rhs[0] -= mdot * r.enthalpy
		}
	}
	for _, inlet := range r.inlets {
		for k := 0; k < r.nsp; k++ {
			rhs[2+k] += inlet.OutletSpeciesMassFlowRate(k) / mw[k]
		}
		if r.energy {
			rhs[0] += inlet.MassFlowRate() * inlet.EnthalpyMass()
		}
	}
	return nil
}

// EvalDAE is not available: this reactor is governed by ODEs.
func (r *MoleReactor) EvalDAE(time float64, y, ydot, residual []float64) error {
	return fmt.Errorf("%w: %q", ErrNotDAE, r.name)
}

func (r *MoleReactor) GetConstraints(c []float64) {
	for i := 0; i < r.nv; i++ {
		c[i] = 1
	}
}

func (r *MoleReactor) IsODE() bool                   { return true }
func (r *MoleReactor) TimeIsIndependent() bool       { return true }
func (r *MoleReactor) PreconditionerSupported() bool { return true }

// SteadyConstraints holds the volume fixed; the energy equation must be
// enabled.
func (r *MoleReactor) SteadyConstraints() ([]int, error) {
	if !r.energy {
		return nil, fmt.Errorf("%w: reactor %q", ErrSteadyEnergy, r.name)
	}
	return []int{1}, nil
}

func (r *MoleReactor) ComponentIndex(name string) int {
	if k := r.phase.SpeciesIndex(name); k >= 0 {
		return k + 2
	}
	switch name {
	case "int_energy":
		return 0
	case "volume":
		return 1
	}
	return -1
}

func (r *MoleReactor) ComponentName(k int) (string, error) {
	switch {
	case k == 0:
		return "int_energy", nil
	case k == 1:
		return "volume", nil
	case k >= 2 && k < r.nv:
		return r.phase.SpeciesName(k - 2), nil
	}
	return "", fmt.Errorf("%w: %d", ErrComponentBounds, k)
}

func (r *MoleReactor) UpperBound(k int) (float64, error) {
	if k >= 0 && k < r.nv {
		return BigNumber, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrComponentBounds, k)
}

func (r *MoleReactor) LowerBound(k int) (float64, error) {
	switch {
	case k == 0:
		return -BigNumber, nil
	case k == 1:
		return 0, nil
	case k >= 2 && k < r.nv:
		return -Tiny, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrComponentBounds, k)
}

// ResetBadValues clips species amounts to be non-negative.
func (r *MoleReactor) ResetBadValues(y []float64) {
	for k := 2; k < r.nv; k++ {
		y[k] = math.Max(y[k], 0)
	}
}

func (r *MoleReactor) SetAdvanceLimit(name string, limit float64) error {
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

// FiniteDifferenceJacobian computes d(ndot)/dn by one-sided differences
// over the reactor's own state.
func (r *MoleReactor) FiniteDifferenceJacobian() (*SparseJacobian, error) {
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
