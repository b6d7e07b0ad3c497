package reactor

import "math"

// StefanBoltz is the Stefan-Boltzmann constant in W/m^2/K^4.
const StefanBoltz = 5.670374419e-8

// Wall joins two reactors with a movable, heat-conducting boundary. A
// positive expansion rate moves the wall toward the right reactor,
// growing the left volume; a positive heat rate transfers heat from left
// to right.
type Wall struct {
	name        string
	left, right Node

	area       float64
	expansionK float64 // m/s per Pa of pressure difference
	heatCoeff  float64 // W/m^2/K
	emissivity float64

	velocity func(t float64) float64 // prescribed wall velocity, m/s
	heatFlux func(t float64) float64 // prescribed heat flux, W/m^2

	time float64
}

// NewWall creates a wall of 1 m^2 between left and right and registers it
// on both reactors (reservoirs are passive and skipped).
func NewWall(left, right Node, name string) *Wall {
	w := &Wall{name: name, left: left, right: right, area: 1.0}
	if h, ok := left.(wallHost); ok {
		h.addWall(w, 0)
	}
	if h, ok := right.(wallHost); ok {
		h.addWall(w, 1)
	}
	return w
}

func (w *Wall) Name() string { return w.name }

func (w *Wall) Left() Node  { return w.left }
func (w *Wall) Right() Node { return w.right }

func (w *Wall) Area() float64     { return w.area }
func (w *Wall) SetArea(a float64) { w.area = a }

// SetExpansionRateCoeff sets the proportionality between pressure
// difference and wall velocity.
func (w *Wall) SetExpansionRateCoeff(k float64) { w.expansionK = k }

// SetHeatTransferCoeff sets the overall conductive heat transfer
// coefficient.
func (w *Wall) SetHeatTransferCoeff(u float64) { w.heatCoeff = u }

// SetEmissivity enables radiative transfer between the two sides.
func (w *Wall) SetEmissivity(eps float64) { w.emissivity = eps }

// SetVelocity prescribes an additional wall velocity as a function of the
// independent variable.
func (w *Wall) SetVelocity(f func(t float64) float64) { w.velocity = f }

// SetHeatFlux prescribes an additional heat flux as a function of the
// independent variable.
func (w *Wall) SetHeatFlux(f func(t float64) float64) { w.heatFlux = f }

// SetSimTime records the current independent-variable value used by the
// prescribed velocity and flux functions.
func (w *Wall) SetSimTime(t float64) { w.time = t }

// ExpansionRate returns the rate of volume change of the left reactor in
// m^3/s.
func (w *Wall) ExpansionRate() float64 {
	rate := w.expansionK * w.area * (w.left.Pressure() - w.right.Pressure())
	if w.velocity != nil {
		rate += w.velocity(w.time) * w.area
	}
	return rate
}

// HeatRate returns the heat flowing from the left to the right reactor in
// W.
func (w *Wall) HeatRate() float64 {
	tl := w.left.Temperature()
	tr := w.right.Temperature()
	q := w.heatCoeff * w.area * (tl - tr)
	if w.emissivity > 0 {
		q += w.emissivity * StefanBoltz * w.area *
			(math.Pow(tl, 4) - math.Pow(tr, 4))
	}
	if w.heatFlux != nil {
		q += w.heatFlux(w.time) * w.area
	}
	return q
}
