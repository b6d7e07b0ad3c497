package kinetics

import (
	"fmt"

	"github.com/LostSunset/cantera/thermo"
)

// SurfReaction is one irreversible heterogeneous reaction. Species
// indices refer to the interface mechanism's combined species space:
// surface species first, then the gas species offset by the number of
// surface species.
type SurfReaction struct {
	Reactants []Stoich
	Products  []Stoich
	Rate      Arrhenius
}

// InterfaceKinetics evaluates heterogeneous reaction rates at a gas/surface
// interface. Production rates are per unit area (kmol/m^2/s) over the
// combined species space [surface..., gas...].
type InterfaceKinetics struct {
	surf      *thermo.SurfPhase
	gas       *thermo.IdealGasPhase
	reactions []SurfReaction
	mult      []float64
	conc      []float64
}

// NewInterfaceKinetics creates a surface mechanism coupling surf and gas.
func NewInterfaceKinetics(surf *thermo.SurfPhase, gas *thermo.IdealGasPhase,
	reactions []SurfReaction) *InterfaceKinetics {
	k := &InterfaceKinetics{
		surf:      surf,
		gas:       gas,
		reactions: reactions,
		mult:      make([]float64, len(reactions)),
		conc:      make([]float64, surf.NSpecies()+gas.NSpecies()),
	}
	for i := range k.mult {
		k.mult[i] = 1.0
	}
	return k
}

// Surface returns the surface phase of the interface.
func (k *InterfaceKinetics) Surface() *thermo.SurfPhase { return k.surf }

func (k *InterfaceKinetics) NReactions() int { return len(k.reactions) }

func (k *InterfaceKinetics) NTotalSpecies() int {
	return k.surf.NSpecies() + k.gas.NSpecies()
}

func (k *InterfaceKinetics) GetNetProductionRates(wdot []float64) {
	for i := range wdot {
		wdot[i] = 0
	}
	nSurf := k.surf.NSpecies()
	for j := 0; j < nSurf; j++ {
		k.conc[j] = k.surf.Concentration(j)
	}
	k.gas.GetConcentrations(k.conc[nSurf:])
	t := k.surf.Temperature()

	for i := range k.reactions {
		r := &k.reactions[i]
		rate := k.mult[i] * r.Rate.Eval(t)
		for _, s := range r.Reactants {
			c := k.conc[s.Species]
			if c <= 0 {
				rate = 0
				break
			}
			rate *= pow(c, s.Coeff)
		}
		if rate == 0 {
			continue
		}
		for _, s := range r.Reactants {
			wdot[s.Species] -= rate * s.Coeff
		}
		for _, s := range r.Products {
			wdot[s.Species] += rate * s.Coeff
		}
	}
}

func (k *InterfaceKinetics) Multiplier(i int) float64 {
	if i < 0 || i >= len(k.mult) {
		return 0
	}
	return k.mult[i]
}

func (k *InterfaceKinetics) SetMultiplier(i int, f float64) error {
	if i < 0 || i >= len(k.mult) {
		return fmt.Errorf("%w: %d", ErrReactionBounds, i)
	}
	k.mult[i] = f
	return nil
}

// KineticsSpeciesIndex resolves surface species first, then gas species
// offset by the surface species count.
func (k *InterfaceKinetics) KineticsSpeciesIndex(name string) int {
	if j := k.surf.SpeciesIndex(name); j >= 0 {
		return j
	}
	if j := k.gas.SpeciesIndex(name); j >= 0 {
		return k.surf.NSpecies() + j
	}
	return -1
}

func (k *InterfaceKinetics) ReactionEquation(i int) string {
	if i < 0 || i >= len(k.reactions) {
		return ""
	}
	name := func(j int) string {
		if j < k.surf.NSpecies() {
			return k.surf.SpeciesName(j)
		}
		return k.gas.SpeciesName(j - k.surf.NSpecies())
	}
	r := &k.reactions[i]
	return equation(r.Reactants, r.Products, name)
}
