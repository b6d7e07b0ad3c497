package reactor

import (
	"fmt"
	"math"
)

// FlowDevice is a one-way mass-flow connector between two reactors. The
// flow rate is refreshed by the upstream and downstream reactors during
// their state updates; between refreshes MassFlowRate reports the cached
// value.
type FlowDevice interface {
	Name() string
	In() Node
	Out() Node
	MassFlowRate() float64
	UpdateMassFlowRate(t float64) error

	// OutletSpeciesMassFlowRate returns the mass flow of the outlet
	// reactor's species k, translated through the species index map
	// built when the device was attached. Species absent from the inlet
	// contribute zero.
	OutletSpeciesMassFlowRate(k int) float64

	// EnthalpyMass returns the specific enthalpy of the upstream contents.
	EnthalpyMass() float64
}

// flowDevice carries the state shared by all flow device types,
// including the inlet/outlet species index maps.
type flowDevice struct {
	name    string
	in, out Node
	mdot    float64

	nspIn, nspOut int
	in2out        []int
	out2in        []int

	tfunc func(t float64) float64
	pfunc func(deltaP float64) float64

	// self points at the concrete device so the hosts register the
	// outer type, not the embedded base.
	self FlowDevice
}

// attach wires the device between two nodes and builds the species index
// maps translating between their (possibly different) species orderings.
// The maps are built once and never mutated.
func (d *flowDevice) attach(in, out Node) {
	d.in = in
	d.out = out
	if h, ok := in.(flowHost); ok {
		h.addOutlet(d.self)
	}
	if h, ok := out.(flowHost); ok {
		h.addInlet(d.self)
	}

	mixin := in.Contents()
	mixout := out.Contents()
	d.nspIn = mixin.NSpecies()
	d.nspOut = mixout.NSpecies()
	d.in2out = make([]int, d.nspIn)
	d.out2in = make([]int, d.nspOut)
	for ki := 0; ki < d.nspIn; ki++ {
		d.in2out[ki] = mixout.SpeciesIndex(mixin.SpeciesName(ki))
	}
	for ko := 0; ko < d.nspOut; ko++ {
		d.out2in[ko] = mixin.SpeciesIndex(mixout.SpeciesName(ko))
	}
}

func (d *flowDevice) Name() string { return d.name }
func (d *flowDevice) In() Node     { return d.in }
func (d *flowDevice) Out() Node    { return d.out }

func (d *flowDevice) MassFlowRate() float64 { return d.mdot }

func (d *flowDevice) OutletSpeciesMassFlowRate(k int) float64 {
	if k < 0 || k >= d.nspOut {
		return 0
	}
	ki := d.out2in[k]
	if ki < 0 {
		return 0
	}
	return d.mdot * d.in.MassFraction(ki)
}

func (d *flowDevice) EnthalpyMass() float64 { return d.in.EnthalpyMass() }

// SetTimeFunction scales the flow coefficient by a function of the
// independent variable.
func (d *flowDevice) SetTimeFunction(f func(t float64) float64) { d.tfunc = f }

// SetPressureFunction maps the pressure difference across the device to a
// flow scaling. When unset, the raw pressure difference is used.
func (d *flowDevice) SetPressureFunction(f func(deltaP float64) float64) { d.pfunc = f }

func (d *flowDevice) evalTimeFunction(t float64) float64 {
	if d.tfunc != nil {
		return d.tfunc(t)
	}
	return 1
}

func (d *flowDevice) evalPressureFunction() float64 {
	deltaP := d.in.Pressure() - d.out.Pressure()
	if d.pfunc != nil {
		return d.pfunc(deltaP)
	}
	return deltaP
}

// MassFlowController maintains a prescribed mass flow rate independent of
// the pressure difference: mdot = coeff * tfunc(t), clamped to be
// non-negative.
type MassFlowController struct {
	flowDevice
	coeff float64
	ready bool
}

// NewMassFlowController creates a controller from in to out. Set the flow
// rate with SetMassFlowRate before advancing the network.
func NewMassFlowController(in, out Node, name string) *MassFlowController {
	m := &MassFlowController{}
	m.flowDevice.name = name
	m.flowDevice.self = m
	m.attach(in, out)
	return m
}

// SetMassFlowRate fixes the base mass flow rate in kg/s.
func (m *MassFlowController) SetMassFlowRate(mdot float64) {
	m.coeff = mdot
	m.ready = true
}

func (m *MassFlowController) UpdateMassFlowRate(t float64) error {
	if !m.ready {
		return fmt.Errorf("%w: mass flow controller %q", ErrDeviceNotReady, m.name)
	}
	m.mdot = math.Max(m.coeff*m.evalTimeFunction(t), 0)
	return nil
}

// Valve lets mass flow in proportion to the pressure difference across
// it: mdot = coeff * tfunc(t) * pfunc(deltaP), clamped to be
// non-negative.
type Valve struct {
	flowDevice
	coeff float64
	ready bool
}

func NewValve(in, out Node, name string) *Valve {
	v := &Valve{}
	v.flowDevice.name = name
	v.flowDevice.self = v
	v.attach(in, out)
	return v
}

// SetValveCoeff sets the proportionality between pressure difference and
// mass flow, kg/s/Pa.
func (v *Valve) SetValveCoeff(c float64) {
	v.coeff = c
	v.ready = true
}

func (v *Valve) UpdateMassFlowRate(t float64) error {
	if !v.ready {
		return fmt.Errorf("%w: valve %q", ErrDeviceNotReady, v.name)
	}
	mdot := v.coeff * v.evalTimeFunction(t) * v.evalPressureFunction()
	v.mdot = math.Max(mdot, 0)
	return nil
}

// PressureController tracks a primary flow device, adding a correction
// proportional to the pressure difference so the upstream reactor holds
// its pressure: mdot = primary + coeff * pfunc(deltaP), clamped to be
// non-negative.
type PressureController struct {
	flowDevice
	coeff   float64
	primary FlowDevice
	ready   bool
}

func NewPressureController(in, out Node, name string) *PressureController {
	p := &PressureController{}
	p.flowDevice.name = name
	p.flowDevice.self = p
	p.attach(in, out)
	return p
}

// SetPressureCoeff sets the proportionality of the pressure correction.
func (p *PressureController) SetPressureCoeff(c float64) {
	p.coeff = c
	p.ready = p.primary != nil
}

// SetPrimary sets the flow device this controller tracks.
func (p *PressureController) SetPrimary(d FlowDevice) {
	p.primary = d
	p.ready = true
}

func (p *PressureController) UpdateMassFlowRate(t float64) error {
	if !p.ready || p.primary == nil {
		return fmt.Errorf("%w: pressure controller %q", ErrDeviceNotReady, p.name)
	}
	mdot := p.coeff * p.evalPressureFunction()
	if err := p.primary.UpdateMassFlowRate(t); err != nil {
		return err
	}
	mdot += p.primary.MassFlowRate()
	p.mdot = math.Max(mdot, 0)
	return nil
}
