package main

import (
	"github.com/LostSunset/cantera/kinetics"
	"github.com/LostSunset/cantera/network"
	"github.com/LostSunset/cantera/reactor"
	"github.com/LostSunset/cantera/thermo"
)

const oneAtm = 101325.0

// demoSpecies is a four-species hydrogen/air system with constant heat
// capacities. Enthalpies in J/kmol, heat capacities in J/kmol/K.
func demoSpecies() []thermo.Species {
	return []thermo.Species{
		{Name: "H2", MolecularWeight: 2.016, Cp: 28.8e3, Hf298: 0},
		{Name: "O2", MolecularWeight: 31.998, Cp: 29.4e3, Hf298: 0},
		{Name: "H2O", MolecularWeight: 18.015, Cp: 33.6e3, Hf298: -241.8e6},
		{Name: "N2", MolecularWeight: 28.014, Cp: 29.1e3, Hf298: 0},
	}
}

// demoGas creates a fresh hydrogen/air phase at the given temperature
// and one atmosphere, premixed lean.
func demoGas(name string, temp float64) (*thermo.IdealGasPhase, error) {
	gas := thermo.NewIdealGasPhase(name, demoSpecies())
	y := []float64{0.03, 0.23, 0.0, 0.74}

	// Density from the ideal gas law at 1 atm.
	if err := gas.SetState(temp, 1.0, y); err != nil {
		return nil, err
	}
	rho := oneAtm * gas.MeanMolecularWeight() / (thermo.GasConstant * temp)
	if err := gas.SetState(temp, rho, y); err != nil {
		return nil, err
	}
	return gas, nil
}

// demoMechanism is a single global reaction H2 + 1/2 O2 -> H2O with a
// stiff Arrhenius rate, enough to exercise the integrator without a
// full elementary mechanism.
func demoMechanism(gas *thermo.IdealGasPhase) *kinetics.BulkKinetics {
	h2 := gas.SpeciesIndex("H2")
	o2 := gas.SpeciesIndex("O2")
	h2o := gas.SpeciesIndex("H2O")
	return kinetics.NewBulkKinetics(gas, []kinetics.Reaction{
		{
			Reactants: []kinetics.Stoich{{Species: h2, Coeff: 1}, {Species: o2, Coeff: 0.5}},
			Products:  []kinetics.Stoich{{Species: h2o, Coeff: 1}},
			Rate:      kinetics.Arrhenius{A: 4.0e8, B: 0, Ea: 1.2e8},
		},
	})
}

// demoNetwork builds the demo system: a cold premixed feed reservoir, a
// hot well-stirred reactor, and an exhaust reservoir, connected by a
// mass flow controller and a valve.
func demoNetwork(mdot float64) (*network.ReactorNet, *reactor.Reactor, error) {
	feedGas, err := demoGas("feed", 300.0)
	if err != nil {
		return nil, nil, err
	}
	burnGas, err := demoGas("contents", 1100.0)
	if err != nil {
		return nil, nil, err
	}
	exhaustGas, err := demoGas("exhaust", 300.0)
	if err != nil {
		return nil, nil, err
	}

	feed := reactor.NewReservoir(feedGas, "feed")
	exhaust := reactor.NewReservoir(exhaustGas, "exhaust")

	burner := reactor.NewReactor(burnGas, demoMechanism(burnGas), "burner")
	burner.SetVolume(1.0e-3)

	inlet := reactor.NewMassFlowController(feed, burner, "inlet")
	inlet.SetMassFlowRate(mdot)

	outlet := reactor.NewValve(burner, exhaust, "outlet")
	outlet.SetValveCoeff(mdot / 1000.0)

	net, err := network.NewReactorNet(burner)
	if err != nil {
		return nil, nil, err
	}
	return net, burner, nil
}
