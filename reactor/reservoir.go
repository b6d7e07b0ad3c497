package reactor

import (
	"github.com/LostSunset/cantera/thermo"
)

// Reservoir is an infinite buffer with a fixed state. It terminates
// network edges: flow devices draw from it or discharge into it and
// walls can push against it, but nothing a connector does changes its
// contents.
type Reservoir struct {
	name  string
	phase thermo.ThermoPhase

	pressure float64
	enthalpy float64
	state    []float64
}

// NewReservoir creates a reservoir holding a snapshot of the phase's
// current state.
func NewReservoir(phase thermo.ThermoPhase, name string) *Reservoir {
	r := &Reservoir{
		name:  name,
		phase: phase,
		state: make([]float64, phase.StateSize()),
	}
	r.syncState()
	return r
}

func (r *Reservoir) Name() string { return r.name }

func (r *Reservoir) Contents() thermo.ThermoPhase { return r.phase }

// SyncState re-snapshots the phase. Call after mutating the shared phase
// to make the new state visible to connected devices.
func (r *Reservoir) SyncState() { r.syncState() }

func (r *Reservoir) syncState() {
	r.phase.SaveState(r.state)
	r.pressure = r.phase.Pressure()
	r.enthalpy = r.phase.EnthalpyMass()
}

func (r *Reservoir) Pressure() float64     { return r.pressure }
func (r *Reservoir) Temperature() float64  { return r.state[0] }
func (r *Reservoir) EnthalpyMass() float64 { return r.enthalpy }

func (r *Reservoir) MassFraction(k int) float64 {
	if k < 0 || k >= r.phase.NSpecies() {
		return 0
	}
	return r.state[2+k]
}
