package reactor

import (
	"fmt"
	"math"

	"github.com/LostSunset/cantera/kinetics"
	"github.com/LostSunset/cantera/thermo"
)

// FlowReactor models steady one-dimensional plug flow as a DAE system in
// the axial coordinate:
//
//	y[0]     mass density (kg/m^3)
//	y[1]     flow speed (m/s)
//	y[2]     pressure (Pa); algebraic, pinned by the equation of state
//	y[3]     temperature (K)
//	y[4:]    species mass fractions
//
// The independent variable is distance along the reactor, not time, so a
// flow reactor cannot share a network with time-domain reactors.
type FlowReactor struct {
	base

	speed float64
	area  float64

	hk []float64
}

func NewFlowReactor(phase thermo.ThermoPhase, kin kinetics.Kinetics, name string) *FlowReactor {
	return &FlowReactor{base: newBase(phase, kin, name), area: 1.0}
}

// AddSurface is not supported for flow reactors.
func (r *FlowReactor) AddSurface(s *ReactorSurface) error {
	return fmt.Errorf("%w: %q", ErrSurfaceUnsupported, r.name)
}

// Area returns the cross-sectional area in m^2.
func (r *FlowReactor) Area() float64     { return r.area }
func (r *FlowReactor) SetArea(a float64) { r.area = a }

// Speed returns the axial flow speed in m/s.
func (r *FlowReactor) Speed() float64 { return r.speed }

// SetMassFlowRate fixes the inlet mass flow in kg/s, setting the flow
// speed from the current density and cross section.
func (r *FlowReactor) SetMassFlowRate(mdot float64) {
	r.speed = mdot / (r.phase.Density() * r.area)
	if r.net != nil {
		r.net.SetNeedsReinit()
	}
}

func (r *FlowReactor) Initialize(t0 float64) error {
	if r.phase == nil || (r.chem && r.kin == nil) {
		return fmt.Errorf("%w: reactor %q", ErrEmptyReactor, r.name)
	}
	if err := r.phase.RestoreState(r.state); err != nil {
		return err
	}
	r.wdot = make([]float64, r.nsp)
	r.hk = make([]float64, r.nsp)
	r.nvSurf = 0
	r.nv = r.nsp + 4
	return nil
}

func (r *FlowReactor) NEq() int { return r.nv }

func (r *FlowReactor) GetState(y []float64) error {
	if r.phase == nil {
		return fmt.Errorf("%w: reactor %q", ErrEmptyReactor, r.name)
	}
	if err := r.phase.RestoreState(r.state); err != nil {
		return err
	}
	y[0] = r.phase.Density()
	y[1] = r.speed
	y[2] = r.phase.Pressure()
	y[3] = r.phase.Temperature()
	r.phase.GetMassFractions(y[4 : 4+r.nsp])
	return nil
}

func (r *FlowReactor) UpdateState(y []float64) error {
	if err := r.phase.SetMassFractionsNoNorm(y[4 : 4+r.nsp]); err != nil {
		return err
	}
	if err := r.phase.SetStateTD(y[3], y[0]); err != nil {
		return err
	}
	r.speed = y[1]
	r.pressure = y[2]
	return r.updateConnected(false)
}

// Eval is not available: the flow reactor is governed by a DAE residual.
func (r *FlowReactor) Eval(time float64, lhs, rhs []float64) error {
	return fmt.Errorf("%w: %q", ErrNotODE, r.name)
}

// EvalDAE writes the residual of the plug-flow equations: continuity,
// momentum, the ideal gas law (algebraic), energy and species transport.
// Derivatives are with respect to distance.
func (r *FlowReactor) EvalDAE(time float64, y, ydot, residual []float64) error {
	if err := r.phase.RestoreState(r.state); err != nil {
		return err
	}
	rho := y[0]
	u := y[1]
	temp := y[3]
	mw := r.phase.MolecularWeights()

	if r.chem {
		r.kin.GetNetProductionRates(r.wdot)
	} else {
		for k := range r.wdot {
			r.wdot[k] = 0
		}
	}

	// Continuity: d(rho u)/dz = 0.
	residual[0] = u*ydot[0] + rho*ydot[1]
	// Momentum: rho u du/dz + dP/dz = 0.
	residual[1] = rho*u*ydot[1] + ydot[2]
	// Equation of state pins the pressure component.
	residual[2] = temp*thermo.GasConstant*rho/r.phase.MeanMolecularWeight() - y[2]
	// Energy: rho u cp dT/dz = -sum_k h_k wdot_k.
	if r.energy {
		r.phase.GetPartialMolarEnthalpies(r.hk)
		hrr := 0.0
		for k := 0; k < r.nsp; k++ {
			hrr += r.hk[k] * r.wdot[k]
		}
		residual[3] = rho*u*r.phase.CpMass()*ydot[3] + hrr
	} else {
		residual[3] = ydot[3]
	}
	// Species: rho u dY_k/dz = wdot_k W_k.
	for k := 0; k < r.nsp; k++ {
		residual[4+k] = rho*u*ydot[4+k] - r.wdot[k]*mw[k]
	}
	return nil
}

// GetConstraints marks the pressure component as algebraic.
func (r *FlowReactor) GetConstraints(c []float64) {
	for i := 0; i < r.nv; i++ {
		c[i] = 1
	}
	c[2] = 0
}

func (r *FlowReactor) IsODE() bool                   { return false }
func (r *FlowReactor) TimeIsIndependent() bool       { return false }
func (r *FlowReactor) PreconditionerSupported() bool { return false }

func (r *FlowReactor) SteadyConstraints() ([]int, error) {
	return nil, fmt.Errorf("%w: reactor %q", ErrSteadyUnsupported, r.name)
}

func (r *FlowReactor) ComponentIndex(name string) int {
	if k := r.phase.SpeciesIndex(name); k >= 0 {
		return k + 4
	}
	switch name {
	case "density":
		return 0
	case "speed":
		return 1
	case "pressure":
		return 2
	case "temperature":
		return 3
	}
	return -1
}

func (r *FlowReactor) ComponentName(k int) (string, error) {
	switch {
	case k == 0:
		return "density", nil
	case k == 1:
		return "speed", nil
	case k == 2:
		return "pressure", nil
	case k == 3:
		return "temperature", nil
	case k >= 4 && k < r.nv:
		return r.phase.SpeciesName(k - 4), nil
	}
	return "", fmt.Errorf("%w: %d", ErrComponentBounds, k)
}

func (r *FlowReactor) UpperBound(k int) (float64, error) {
	switch {
	case k >= 0 && k < 4:
		return BigNumber, nil
	case k >= 4 && k < r.nv:
		return 1.0, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrComponentBounds, k)
}

func (r *FlowReactor) LowerBound(k int) (float64, error) {
	switch {
	case k >= 0 && k < 4:
		return 0, nil
	case k >= 4 && k < r.nv:
		return -Tiny, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrComponentBounds, k)
}

func (r *FlowReactor) ResetBadValues(y []float64) {
	for k := 4; k < r.nv; k++ {
		y[k] = math.Max(y[k], 0)
	}
}
