package reactor

import (
	"fmt"

	"github.com/LostSunset/cantera/kinetics"
	"github.com/LostSunset/cantera/thermo"
)

// ReactorSurface wraps a heterogeneous mechanism attached to a reactor's
// boundary. It contributes one coverage ODE per surface species and a net
// species source to the bulk phase, scaled by its area.
type ReactorSurface struct {
	name    string
	kin     *kinetics.InterfaceKinetics
	area    float64
	host    *base
	sensParams []sensParam
}

// NewReactorSurface creates a surface of 1 m^2 for the given interface
// mechanism. Attach it to a reactor with Reactor.AddSurface.
func NewReactorSurface(kin *kinetics.InterfaceKinetics, name string) *ReactorSurface {
	return &ReactorSurface{name: name, kin: kin, area: 1.0}
}

func (s *ReactorSurface) Name() string        { return s.name }
func (s *ReactorSurface) SetName(name string) { s.name = name }

func (s *ReactorSurface) Kinetics() *kinetics.InterfaceKinetics { return s.kin }
func (s *ReactorSurface) Thermo() *thermo.SurfPhase             { return s.kin.Surface() }

func (s *ReactorSurface) Area() float64 { return s.area }

func (s *ReactorSurface) SetArea(a float64) {
	s.area = a
	if s.host != nil && s.host.net != nil {
		s.host.net.SetNeedsReinit()
	}
}

func (s *ReactorSurface) attach(host *base) { s.host = host }

// GetCoverages copies the current site coverages into theta.
func (s *ReactorSurface) GetCoverages(theta []float64) {
	s.Thermo().GetCoverages(theta)
}

// SetCoverages sets trial coverages without normalization.
func (s *ReactorSurface) SetCoverages(theta []float64) error {
	return s.Thermo().SetCoveragesNoNorm(theta)
}

// SyncState slaves the surface temperature to the bulk phase before rate
// evaluation.
func (s *ReactorSurface) SyncState() {
	if s.host != nil {
		s.Thermo().SetTemperature(s.host.phase.Temperature())
	}
}

// AddSensitivityReaction registers surface reaction rxn as a sensitivity
// parameter on the network owning the host reactor.
func (s *ReactorSurface) AddSensitivityReaction(rxn int) error {
	if rxn < 0 || rxn >= s.kin.NReactions() {
		return fmt.Errorf("%w: surface reaction number %d", ErrSensitivityRange, rxn)
	}
	if s.host == nil || s.host.net == nil {
		return fmt.Errorf("%w: surface %q", ErrNotInNetwork, s.name)
	}
	p, err := s.host.net.RegisterSensitivityParameter(
		s.name+": "+s.kin.ReactionEquation(rxn), 1.0, 1.0)
	if err != nil {
		return err
	}
	s.sensParams = append(s.sensParams,
		sensParam{local: rxn, global: p, value: 1.0, kind: sensReaction})
	return nil
}

func (s *ReactorSurface) NSensParams() int { return len(s.sensParams) }

func (s *ReactorSurface) applySensitivity(params []float64) {
	for i := range s.sensParams {
		p := &s.sensParams[i]
		p.value = s.kin.Multiplier(p.local)
		s.kin.SetMultiplier(p.local, p.value*params[p.global])
	}
}

func (s *ReactorSurface) resetSensitivity(params []float64) {
	for i := range s.sensParams {
		p := &s.sensParams[i]
		s.kin.SetMultiplier(p.local, p.value)
	}
}
