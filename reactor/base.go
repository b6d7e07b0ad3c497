// Package reactor implements zero-dimensional control volumes and the
// connectors (walls, flow devices, surfaces) that couple them. Reactors
// own a contiguous local state vector and evaluate their contribution to
// a network-wide residual; the network package assembles those slices
// into one global system and drives the integrator.
package reactor

import (
	"fmt"

	"github.com/LostSunset/cantera/kinetics"
	"github.com/LostSunset/cantera/thermo"
)

// Network is the view a reactor has of the network that owns it.
type Network interface {
	// SimTime returns the current value of the independent variable
	// (time, or distance for flow reactors).
	SimTime() float64
	Rtol() float64
	Atol() float64

	// RegisterSensitivityParameter adds a global sensitivity parameter
	// and returns its index. Fails once the integrator is live.
	RegisterSensitivityParameter(name string, value, scale float64) (int, error)

	// SetNeedsReinit marks the network's integrator as stale after a
	// structural or state change.
	SetNeedsReinit()
}

// Node is the contents-level view connectors have of either side of an
// edge. Both reactors and reservoirs satisfy it. Accessors report the
// state saved by the most recent updateState/syncState, so evaluation
// order within one residual call is significant.
type Node interface {
	Name() string
	Contents() thermo.ThermoPhase
	Pressure() float64
	Temperature() float64
	EnthalpyMass() float64
	MassFraction(k int) float64
}

// hosts used by connector constructors to register themselves.
type wallHost interface{ addWall(w *Wall, lr int) }
type flowHost interface {
	addInlet(d FlowDevice)
	addOutlet(d FlowDevice)
}

type sensKind int

const (
	sensReaction sensKind = iota
	sensEnthalpy
)

// sensParam ties a global sensitivity parameter index to a local target
// (reaction multiplier or species formation enthalpy) and records the
// baseline for reset.
type sensParam struct {
	local  int
	global int
	value  float64
	kind   sensKind
}

// base holds the state and machinery shared by all reactor variants.
type base struct {
	name  string
	phase thermo.ThermoPhase
	kin   kinetics.Kinetics
	net   Network

	vol       float64
	mass      float64
	pressure  float64
	enthalpy  float64
	intEnergy float64
	state     []float64

	energy bool
	chem   bool
	nsp    int

	surfaces []*ReactorSurface
	walls    []*Wall
	lr       []int
	inlets   []FlowDevice
	outlets  []FlowDevice

	vdot float64
	qdot float64
	sdot []float64
	wdot []float64
	work []float64

	nv     int
	nvSurf int

	advanceLimits []float64
	sensParams    []sensParam
}

func newBase(phase thermo.ThermoPhase, kin kinetics.Kinetics, name string) base {
	b := base{
		name:   name,
		phase:  phase,
		kin:    kin,
		vol:    1.0,
		energy: true,
		nsp:    phase.NSpecies(),
		state:  make([]float64, phase.StateSize()),
	}
	b.chem = kin != nil && kin.NReactions() > 0
	phase.SaveState(b.state)
	b.mass = phase.Density() * b.vol
	b.pressure = phase.Pressure()
	b.enthalpy = phase.EnthalpyMass()
	b.intEnergy = phase.IntEnergyMass()
	return b
}

func (b *base) Name() string        { return b.name }
func (b *base) SetName(name string) { b.name = name }

func (b *base) Contents() thermo.ThermoPhase { return b.phase }

func (b *base) Volume() float64 { return b.vol }

// SetVolume sets the reactor volume in m^3 and re-syncs derived state.
func (b *base) SetVolume(v float64) {
	b.vol = v
	b.syncState()
}

func (b *base) Mass() float64         { return b.mass }
func (b *base) Pressure() float64     { return b.pressure }
func (b *base) EnthalpyMass() float64 { return b.enthalpy }

func (b *base) Temperature() float64 { return b.state[0] }

// MassFraction reads from the saved state, not the live phase, so the
// value is stable while other reactors sharing the phase evaluate.
func (b *base) MassFraction(k int) float64 {
	if k < 0 || k >= b.nsp {
		return 0
	}
	return b.state[2+k]
}

func (b *base) EnergyEnabled() bool  { return b.energy }
func (b *base) SetEnergy(flag bool)  { b.energy = flag }
func (b *base) ChemistryEnabled() bool { return b.chem }
func (b *base) SetChemistry(flag bool) { b.chem = flag }

func (b *base) SetNetwork(net Network) { b.net = net }

func (b *base) addWall(w *Wall, lr int) {
	b.walls = append(b.walls, w)
	b.lr = append(b.lr, lr)
	if b.net != nil {
		b.net.SetNeedsReinit()
	}
}

func (b *base) addInlet(d FlowDevice) {
	b.inlets = append(b.inlets, d)
	if b.net != nil {
		b.net.SetNeedsReinit()
	}
}

func (b *base) addOutlet(d FlowDevice) {
	b.outlets = append(b.outlets, d)
	if b.net != nil {
		b.net.SetNeedsReinit()
	}
}

func (b *base) NWalls() int   { return len(b.walls) }
func (b *base) NInlets() int  { return len(b.inlets) }
func (b *base) NOutlets() int { return len(b.outlets) }
func (b *base) NSurfs() int   { return len(b.surfaces) }

func (b *base) Surface(i int) *ReactorSurface { return b.surfaces[i] }

// SyncState records the phase's current state as the reactor's own and
// invalidates the network's integrator. Call after mutating the shared
// phase directly.
func (b *base) SyncState() {
	b.syncState()
	if b.net != nil {
		b.net.SetNeedsReinit()
	}
}

func (b *base) syncState() {
	b.phase.SaveState(b.state)
	if b.energy {
		b.enthalpy = b.phase.EnthalpyMass()
		b.intEnergy = b.phase.IntEnergyMass()
	}
	b.pressure = b.phase.Pressure()
	b.mass = b.phase.Density() * b.vol
}

// updateConnected caches the parameters other connected reactors read and
// refreshes the mass flow rates of attached devices at the current value
// of the independent variable.
func (b *base) updateConnected(updatePressure bool) error {
	b.enthalpy = b.phase.EnthalpyMass()
	if updatePressure {
		b.pressure = b.phase.Pressure()
	}
	b.intEnergy = b.phase.IntEnergyMass()
	b.phase.SaveState(b.state)

	t := 0.0
	if b.net != nil {
		t = b.net.SimTime()
	}
	for _, out := range b.outlets {
		if err := out.UpdateMassFlowRate(t); err != nil {
			return err
		}
	}
	for _, in := range b.inlets {
		if err := in.UpdateMassFlowRate(t); err != nil {
			return err
		}
	}
	for _, w := range b.walls {
		w.SetSimTime(t)
	}
	return nil
}

// evalWalls accumulates the net volume expansion rate and heat input from
// all attached walls, signed by which side of each wall this reactor is on.
func (b *base) evalWalls() {
	b.vdot = 0
	b.qdot = 0
	for i, w := range b.walls {
		f := float64(2*b.lr[i] - 1)
		b.vdot -= f * w.ExpansionRate()
		b.qdot += f * w.HeatRate()
	}
}

// getSurfaceInitialConditions copies attached surface coverages into y.
func (b *base) getSurfaceInitialConditions(y []float64) {
	loc := 0
	for _, s := range b.surfaces {
		s.GetCoverages(y[loc:])
		loc += s.Thermo().NSpecies()
	}
}

// updateSurfaceState scatters trial coverages back to the surfaces.
func (b *base) updateSurfaceState(y []float64) error {
	loc := 0
	for _, s := range b.surfaces {
		nk := s.Thermo().NSpecies()
		if err := s.SetCoverages(y[loc : loc+nk]); err != nil {
			return err
		}
		loc += nk
	}
	return nil
}

// evalSurfaces writes the coverage rates of change into rhs and
// accumulates the net bulk-species source (kmol/s) into sdot.
func (b *base) evalSurfaces(rhs, sdot []float64) error {
	for k := range sdot {
		sdot[k] = 0
	}
	loc := 0
	for _, s := range b.surfaces {
		kin := s.Kinetics()
		surf := s.Thermo()

		rs0 := 1.0 / surf.SiteDensity()
		nk := surf.NSpecies()
		s.SyncState()
		kin.GetNetProductionRates(b.work)

		// First coverage is determined by the site sum rule.
		sum := 0.0
		for k := 1; k < nk; k++ {
			rhs[loc+k] = b.work[k] * rs0 * surf.Size(k)
			sum -= rhs[loc+k]
		}
		rhs[loc] = sum
		loc += nk

		bulkloc := kin.KineticsSpeciesIndex(b.phase.SpeciesName(0))
		if bulkloc < 0 {
			return fmt.Errorf("%w: surface %q does not include bulk species %q",
				ErrSensitivityRange, s.Name(), b.phase.SpeciesName(0))
		}
		area := s.Area()
		for k := 0; k < b.nsp; k++ {
			sdot[k] += b.work[bulkloc+k] * area
		}
	}
	return nil
}

// AddSensitivityReaction registers reaction rxn of the bulk mechanism as
// a sensitivity parameter on the owning network.
func (b *base) AddSensitivityReaction(rxn int) error {
	if !b.chem {
		return fmt.Errorf("%w: reactor %q", ErrChemistryDisabled, b.name)
	}
	if rxn < 0 || rxn >= b.kin.NReactions() {
		return fmt.Errorf("%w: reaction number %d", ErrSensitivityRange, rxn)
	}
	if b.net == nil {
		return fmt.Errorf("%w: %q", ErrNotInNetwork, b.name)
	}
	p, err := b.net.RegisterSensitivityParameter(
		b.name+": "+b.kin.ReactionEquation(rxn), 1.0, 1.0)
	if err != nil {
		return err
	}
	b.sensParams = append(b.sensParams,
		sensParam{local: rxn, global: p, value: 1.0, kind: sensReaction})
	return nil
}

// AddSensitivitySpeciesEnthalpy registers the formation enthalpy of gas
// species k as a sensitivity parameter on the owning network.
func (b *base) AddSensitivitySpeciesEnthalpy(k int) error {
	if k < 0 || k >= b.nsp {
		return fmt.Errorf("%w: species index %d", ErrSensitivityRange, k)
	}
	if b.net == nil {
		return fmt.Errorf("%w: %q", ErrNotInNetwork, b.name)
	}
	p, err := b.net.RegisterSensitivityParameter(
		b.name+": "+b.phase.SpeciesName(k)+" enthalpy",
		0.0, thermo.GasConstant*thermo.T298)
	if err != nil {
		return err
	}
	b.sensParams = append(b.sensParams,
		sensParam{local: k, global: p, value: b.phase.Hf298(k), kind: sensEnthalpy})
	return nil
}

// NSensParams counts parameters registered by this reactor and its surfaces.
func (b *base) NSensParams() int {
	n := len(b.sensParams)
	for _, s := range b.surfaces {
		n += s.NSensParams()
	}
	return n
}

// ApplySensitivity perturbs kinetics multipliers and formation enthalpies
// by the supplied parameter values. Must be paired with ResetSensitivity
// around every residual evaluation.
func (b *base) ApplySensitivity(params []float64) {
	if params == nil {
		return
	}
	for i := range b.sensParams {
		p := &b.sensParams[i]
		switch p.kind {
		case sensReaction:
			p.value = b.kin.Multiplier(p.local)
			b.kin.SetMultiplier(p.local, p.value*params[p.global])
		case sensEnthalpy:
			b.phase.ModifyHf298(p.local, p.value+params[p.global])
		}
	}
	for _, s := range b.surfaces {
		s.applySensitivity(params)
	}
}

// ResetSensitivity restores every perturbed multiplier and enthalpy to its
// pre-apply baseline.
func (b *base) ResetSensitivity(params []float64) {
	if params == nil {
		return
	}
	for i := range b.sensParams {
		p := &b.sensParams[i]
		switch p.kind {
		case sensReaction:
			b.kin.SetMultiplier(p.local, p.value)
		case sensEnthalpy:
			b.phase.ResetHf298(p.local)
		}
	}
	for _, s := range b.surfaces {
		s.resetSensitivity(params)
	}
}

// HasAdvanceLimits reports whether any component carries a per-step limit.
func (b *base) HasAdvanceLimits() bool { return len(b.advanceLimits) > 0 }

// SetAdvanceLimits sets per-component advance limits; -1 disables a
// component's limit. If no entry is positive the limit vector is dropped
// entirely, restoring the unlimited fast path.
func (b *base) SetAdvanceLimits(limits []float64) error {
	if len(limits) != b.nv {
		return fmt.Errorf("%w: got %d limits for %d components",
			ErrComponentBounds, len(limits), b.nv)
	}
	b.advanceLimits = append(b.advanceLimits[:0], limits...)
	if !anyPositive(b.advanceLimits) {
		b.advanceLimits = nil
	}
	return nil
}

// GetAdvanceLimits fills limits (-1 for unbounded) and reports whether
// any limit is set.
func (b *base) GetAdvanceLimits(limits []float64) bool {
	if b.HasAdvanceLimits() {
		copy(limits, b.advanceLimits)
		return true
	}
	for i := 0; i < b.nv && i < len(limits); i++ {
		limits[i] = -1
	}
	return false
}

func anyPositive(v []float64) bool {
	for _, x := range v {
		if x > 0 {
			return true
		}
	}
	return false
}
