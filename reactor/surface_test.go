package reactor

import (
	"errors"
	"math"
	"testing"

	"github.com/LostSunset/cantera/kinetics"
	"github.com/LostSunset/cantera/thermo"
)

// adsorptionSurface builds a 2 m^2 surface carrying A + S(s) -> AS(s)
// at a temperature-independent unit rate constant.
func adsorptionSurface(gas *thermo.IdealGasPhase) *ReactorSurface {
	surf := thermo.NewSurfPhase("platinum", 1.0e-8, []thermo.SurfSpecies{
		{Name: "S(s)", Size: 1},
		{Name: "AS(s)", Size: 1},
	})
	surf.SetCoveragesNoNorm([]float64{1, 0})
	aIdx := surf.NSpecies() + gas.SpeciesIndex("A")
	kin := kinetics.NewInterfaceKinetics(surf, gas, []kinetics.SurfReaction{
		{
			Reactants: []kinetics.Stoich{{Species: aIdx, Coeff: 1}, {Species: 0, Coeff: 1}},
			Products:  []kinetics.Stoich{{Species: 1, Coeff: 1}},
			Rate:      kinetics.Arrhenius{A: 1.0},
		},
	})
	s := NewReactorSurface(kin, "cat")
	s.SetArea(2.0)
	return s
}

func TestSurfaceStateLayout(t *testing.T) {
	gas := testGas()
	if err := gas.SetState(500, 1.2, []float64{0.5, 0.5}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	r := NewReactor(gas, nil, "cstr")
	r.SetVolume(1.0)
	s := adsorptionSurface(gas)
	if err := r.AddSurface(s); err != nil {
		t.Fatalf("AddSurface failed: %v", err)
	}
	if err := r.Initialize(0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if r.NEq() != 7 {
		t.Fatalf("Expected 7 equations with 2 coverages, got %d", r.NEq())
	}
	y := make([]float64, r.NEq())
	if err := r.GetState(y); err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if y[5] != 1.0 || y[6] != 0.0 {
		t.Errorf("Expected initial coverages [1 0], got %v", y[5:])
	}

	if got := r.ComponentIndex("AS(s)"); got != 6 {
		t.Errorf("Expected AS(s) at component 6, got %d", got)
	}
	name, err := r.ComponentName(5)
	if err != nil || name != "S(s)" {
		t.Errorf("Expected component 5 named S(s), got %q, %v", name, err)
	}

	// Trial coverages scatter back into the surface phase.
	y[5], y[6] = 0.75, 0.25
	if err := r.UpdateState(y); err != nil {
		t.Fatalf("UpdateState failed: %v", err)
	}
	theta := make([]float64, 2)
	s.GetCoverages(theta)
	if theta[0] != 0.75 || theta[1] != 0.25 {
		t.Errorf("Expected coverages [0.75 0.25], got %v", theta)
	}
}

func TestSurfaceEval(t *testing.T) {
	gas := testGas()
	if err := gas.SetState(500, 1.2, []float64{0.5, 0.5}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	r := NewReactor(gas, nil, "cstr")
	r.SetVolume(1.0)
	r.SetEnergy(false)
	s := adsorptionSurface(gas)
	if err := r.AddSurface(s); err != nil {
		t.Fatalf("AddSurface failed: %v", err)
	}
	if err := r.Initialize(0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	lhs := make([]float64, r.NEq())
	rhs := make([]float64, r.NEq())
	for i := range lhs {
		lhs[i] = 1
	}
	if err := r.Eval(0, lhs, rhs); err != nil {
		t.Fatalf("Eval failed: %v", err)
	}

	// Adsorption rate per area: [A] * siteConc(S) with unit rate
	// constant; [A] = rho Y_A / W = 0.06, siteConc = 1e-8.
	rate := 0.06 * 1.0e-8

	// Coverage rates in 1/s, governed by the site sum rule.
	if math.Abs(rhs[6]-rate/1.0e-8) > 1e-12 {
		t.Errorf("Expected adsorbate coverage rate %g, got %g", rate/1.0e-8, rhs[6])
	}
	if math.Abs(rhs[5]+rhs[6]) > 1e-15 {
		t.Errorf("Expected coverage rates to sum to zero, got %g", rhs[5]+rhs[6])
	}

	// Gas loses A through the 2 m^2 of surface.
	mdotSurf := -rate * 2.0 * 10.0
	if math.Abs(rhs[0]-mdotSurf) > 1e-12*math.Abs(mdotSurf) {
		t.Errorf("Expected mass rate %g, got %g", mdotSurf, rhs[0])
	}
	wantA := -rate*2.0*10.0 - 0.5*mdotSurf
	if math.Abs(rhs[3]-wantA) > 1e-12*math.Abs(wantA) {
		t.Errorf("Expected Y_A rate %g, got %g", wantA, rhs[3])
	}
	// B is only diluted by the shrinking gas mass.
	wantB := -0.5 * mdotSurf
	if math.Abs(rhs[4]-wantB) > 1e-12*math.Abs(wantB) {
		t.Errorf("Expected Y_B rate %g, got %g", wantB, rhs[4])
	}
}

func TestSurfaceSensitivity(t *testing.T) {
	gas := testGas()
	if err := gas.SetState(500, 1.2, []float64{0.5, 0.5}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	r := NewReactor(gas, nil, "cstr")
	s := adsorptionSurface(gas)
	if err := r.AddSurface(s); err != nil {
		t.Fatalf("AddSurface failed: %v", err)
	}

	if err := s.AddSensitivityReaction(0); !errors.Is(err, ErrNotInNetwork) {
		t.Fatalf("Expected ErrNotInNetwork before wiring, got %v", err)
	}

	net := &fakeNetwork{}
	r.SetNetwork(net)
	if err := s.AddSensitivityReaction(0); err != nil {
		t.Fatalf("AddSensitivityReaction failed: %v", err)
	}
	if err := s.AddSensitivityReaction(4); !errors.Is(err, ErrSensitivityRange) {
		t.Errorf("Expected ErrSensitivityRange, got %v", err)
	}
	if r.NSensParams() != 1 {
		t.Fatalf("Expected the surface parameter counted by the reactor, got %d", r.NSensParams())
	}

	r.ApplySensitivity([]float64{2.0})
	if got := s.Kinetics().Multiplier(0); got != 2.0 {
		t.Errorf("Expected multiplier 2 while applied, got %g", got)
	}
	r.ResetSensitivity([]float64{2.0})
	if got := s.Kinetics().Multiplier(0); got != 1.0 {
		t.Errorf("Expected multiplier restored to 1, got %g", got)
	}
}

func TestSteadyConstraintsRejectSurfaces(t *testing.T) {
	gas := testGas()
	if err := gas.SetState(500, 1.2, []float64{0.5, 0.5}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	r := NewReactor(gas, nil, "cstr")
	if err := r.AddSurface(adsorptionSurface(gas)); err != nil {
		t.Fatalf("AddSurface failed: %v", err)
	}
	if _, err := r.SteadyConstraints(); !errors.Is(err, ErrSteadySurfaces) {
		t.Errorf("Expected ErrSteadySurfaces, got %v", err)
	}
}
