package kinetics

import (
	"fmt"
	"math"
	"strings"

	"github.com/LostSunset/cantera/thermo"
)

// Reaction is one irreversible gas-phase reaction with mass-action
// kinetics. Species indices refer to the gas phase.
type Reaction struct {
	Reactants []Stoich
	Products  []Stoich
	Rate      Arrhenius
}

// BulkKinetics evaluates homogeneous gas-phase reaction rates for an
// ideal-gas mixture. The rate of each reaction is the Arrhenius
// coefficient times the product of reactant concentrations, scaled by the
// reaction's multiplier.
type BulkKinetics struct {
	gas       *thermo.IdealGasPhase
	reactions []Reaction
	mult      []float64
	conc      []float64
}

// NewBulkKinetics creates a mechanism for the given gas phase.
func NewBulkKinetics(gas *thermo.IdealGasPhase, reactions []Reaction) *BulkKinetics {
	k := &BulkKinetics{
		gas:       gas,
		reactions: reactions,
		mult:      make([]float64, len(reactions)),
		conc:      make([]float64, gas.NSpecies()),
	}
	for i := range k.mult {
		k.mult[i] = 1.0
	}
	return k
}

// Gas returns the phase this mechanism evaluates rates against.
func (k *BulkKinetics) Gas() *thermo.IdealGasPhase { return k.gas }

func (k *BulkKinetics) NReactions() int    { return len(k.reactions) }
func (k *BulkKinetics) NTotalSpecies() int { return k.gas.NSpecies() }

func (k *BulkKinetics) GetNetProductionRates(wdot []float64) {
	for i := range wdot {
		wdot[i] = 0
	}
	k.gas.GetConcentrations(k.conc)
	t := k.gas.Temperature()

	for i := range k.reactions {
		r := &k.reactions[i]
		rate := k.mult[i] * r.Rate.Eval(t)

		// Mass action: rate scales with each reactant concentration.
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

func (k *BulkKinetics) Multiplier(i int) float64 {
	if i < 0 || i >= len(k.mult) {
		return 0
	}
	return k.mult[i]
}

func (k *BulkKinetics) SetMultiplier(i int, f float64) error {
	if i < 0 || i >= len(k.mult) {
		return fmt.Errorf("%w: %d", ErrReactionBounds, i)
	}
	k.mult[i] = f
	return nil
}

func (k *BulkKinetics) KineticsSpeciesIndex(name string) int {
	return k.gas.SpeciesIndex(name)
}

func (k *BulkKinetics) ReactionEquation(i int) string {
	if i < 0 || i >= len(k.reactions) {
		return ""
	}
	r := &k.reactions[i]
	return equation(r.Reactants, r.Products, k.gas.SpeciesName)
}

// equation produces "A + 2 B => C" style reaction strings.
func equation(reactants, products []Stoich, name func(int) string) string {
	var b strings.Builder
	writeSide := func(side []Stoich) {
		for n, s := range side {
			if n > 0 {
				b.WriteString(" + ")
			}
			if s.Coeff != 1 {
				fmt.Fprintf(&b, "%g ", s.Coeff)
			}
			b.WriteString(name(s.Species))
		}
	}
	writeSide(reactants)
	b.WriteString(" => ")
	writeSide(products)
	return b.String()
}

func pow(x, p float64) float64 {
	if p == 1 {
		return x
	}
	if p == 2 {
		return x * x
	}
	return math.Pow(x, p)
}
