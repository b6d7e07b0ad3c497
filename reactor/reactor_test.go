package reactor

import (
	"errors"
	"math"
	"testing"

	"github.com/LostSunset/cantera/kinetics"
	"github.com/LostSunset/cantera/thermo"
)

func testGas() *thermo.IdealGasPhase {
	return thermo.NewIdealGasPhase("gas", []thermo.Species{
		{Name: "A", MolecularWeight: 10.0, Cp: 30000.0, Hf298: 0},
		{Name: "B", MolecularWeight: 10.0, Cp: 30000.0, Hf298: -1.0e7},
	})
}

// A -> B preserves mass exactly since both species share one weight.
func testMechanism(gas *thermo.IdealGasPhase) *kinetics.BulkKinetics {
	return kinetics.NewBulkKinetics(gas, []kinetics.Reaction{
		{
			Reactants: []kinetics.Stoich{{Species: 0, Coeff: 1}},
			Products:  []kinetics.Stoich{{Species: 1, Coeff: 1}},
			Rate:      kinetics.Arrhenius{A: 1.0},
		},
	})
}

type fakeNetwork struct {
	time   float64
	params []string
}

func (f *fakeNetwork) SimTime() float64 { return f.time }
func (f *fakeNetwork) Rtol() float64    { return 1e-9 }
func (f *fakeNetwork) Atol() float64    { return 1e-15 }
func (f *fakeNetwork) RegisterSensitivityParameter(name string, value, scale float64) (int, error) {
	f.params = append(f.params, name)
	return len(f.params) - 1, nil
}
func (f *fakeNetwork) SetNeedsReinit() {}

func TestReactorStateLayout(t *testing.T) {
	gas := testGas()
	if err := gas.SetState(500, 1.2, []float64{0.6, 0.4}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	r := NewReactor(gas, nil, "r")
	r.SetVolume(2.0)
	if err := r.Initialize(0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if r.NEq() != 5 {
		t.Fatalf("Expected 5 equations, got %d", r.NEq())
	}

	y := make([]float64, r.NEq())
	if err := r.GetState(y); err != nil {
		t.Fatalf("GetState failed: %v", err)
	}

	if math.Abs(y[0]-2.4) > 1e-12 {
		t.Errorf("Expected mass 2.4, got %f", y[0])
	}
	if y[1] != 2.0 {
		t.Errorf("Expected volume 2, got %f", y[1])
	}
	wantU := gas.IntEnergyMass() * 2.4
	if math.Abs(y[2]-wantU) > 1e-6*math.Abs(wantU) {
		t.Errorf("Expected energy %f, got %f", wantU, y[2])
	}
	if y[3] != 0.6 || y[4] != 0.4 {
		t.Errorf("Expected mass fractions [0.6 0.4], got %v", y[3:])
	}
}

func TestStateRoundTrip(t *testing.T) {
	gas := testGas()
	if err := gas.SetState(600, 0.9, []float64{0.3, 0.7}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	r := NewReactor(gas, nil, "r")
	if err := r.Initialize(0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	y1 := make([]float64, r.NEq())
	if err := r.GetState(y1); err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if err := r.UpdateState(y1); err != nil {
		t.Fatalf("UpdateState failed: %v", err)
	}
	y2 := make([]float64, r.NEq())
	if err := r.GetState(y2); err != nil {
		t.Fatalf("GetState failed: %v", err)
	}

	for i := range y1 {
		tol := 1e-6 * math.Max(math.Abs(y1[i]), 1)
		if math.Abs(y1[i]-y2[i]) > tol {
			t.Errorf("Component %d drifted in round trip: %g vs %g", i, y1[i], y2[i])
		}
	}
	if math.Abs(r.Temperature()-600) > 600*1e-6 {
		t.Errorf("Temperature drifted: %f", r.Temperature())
	}
}

func TestEvalIsolatedQuiescent(t *testing.T) {
	gas := testGas()
	if err := gas.SetState(500, 1.0, []float64{0.5, 0.5}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	r := NewReactor(gas, nil, "r")
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

	for i, v := range rhs {
		if v != 0 {
			t.Errorf("Expected zero rate for isolated reactor, rhs[%d]=%g", i, v)
		}
	}
	// Species equations carry the mass on the left-hand side.
	for k := 0; k < 2; k++ {
		if lhs[3+k] != r.Mass() {
			t.Errorf("Expected lhs[%d]=%g (mass), got %g", 3+k, r.Mass(), lhs[3+k])
		}
	}
}

func TestEvalChemistrySource(t *testing.T) {
	gas := testGas()
	if err := gas.SetState(500, 1.0, []float64{0.8, 0.2}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	r := NewReactor(gas, testMechanism(gas), "r")
	r.SetVolume(3.0)
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

	// Mass action A -> B: rate = [A] = rho*yA/mwA, production in kg/s
	// per unit mass fraction is wdot*vol*mw.
	rate := 1.0 * 0.8 / 10.0
	want := rate * 3.0 * 10.0
	if math.Abs(rhs[3]+want) > 1e-12*want {
		t.Errorf("Expected rhs[A]=%g, got %g", -want, rhs[3])
	}
	if math.Abs(rhs[4]-want) > 1e-12*want {
		t.Errorf("Expected rhs[B]=%g, got %g", want, rhs[4])
	}
	// Equal molecular weights: total mass production must cancel.
	if math.Abs(rhs[3]+rhs[4]) > 1e-12 {
		t.Errorf("Species sources do not conserve mass: %g", rhs[3]+rhs[4])
	}
	if rhs[0] != 0 {
		t.Errorf("Expected no net mass change, rhs[0]=%g", rhs[0])
	}
}

func TestInletOutletMassBalance(t *testing.T) {
	feedGas := testGas()
	if err := feedGas.SetState(300, 1.0, []float64{1, 0}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	exhaustGas := testGas()
	burnGas := testGas()
	if err := burnGas.SetState(500, 1.0, []float64{0.5, 0.5}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}

	feed := NewReservoir(feedGas, "feed")
	exhaust := NewReservoir(exhaustGas, "exhaust")
	r := NewReactor(burnGas, nil, "r")

	in := NewMassFlowController(feed, r, "in")
	in.SetMassFlowRate(0.25)
	out := NewMassFlowController(r, exhaust, "out")
	out.SetMassFlowRate(0.25)

	if r.NInlets() != 1 || r.NOutlets() != 1 {
		t.Fatalf("Expected 1 inlet and 1 outlet, got %d/%d", r.NInlets(), r.NOutlets())
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

	// Equal in and out flows: total mass is stationary.
	if math.Abs(rhs[0]) > 1e-15 {
		t.Errorf("Expected zero net mass flow, got %g", rhs[0])
	}
	// Species A flows in at mdot (pure A feed) and dilutes at mdot*yA.
	wantA := 0.25*1.0 - 0.25*0.5
	if math.Abs(rhs[3]-wantA) > 1e-12 {
		t.Errorf("Expected rhs[A]=%g, got %g", wantA, rhs[3])
	}
	// Species B only dilutes.
	wantB := 0.0 - 0.25*0.5
	if math.Abs(rhs[4]-wantB) > 1e-12 {
		t.Errorf("Expected rhs[B]=%g, got %g", wantB, rhs[4])
	}
}

func TestComponentNames(t *testing.T) {
	gas := testGas()
	r := NewReactor(gas, nil, "r")
	if err := r.Initialize(0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	for name, want := range map[string]int{
		"mass": 0, "volume": 1, "int_energy": 2, "A": 3, "B": 4,
	} {
		if got := r.ComponentIndex(name); got != want {
			t.Errorf("ComponentIndex(%q)=%d, want %d", name, got, want)
		}
	}
	if got := r.ComponentIndex("missing"); got != -1 {
		t.Errorf("Expected -1 for unknown component, got %d", got)
	}

	for k := 0; k < r.NEq(); k++ {
		name, err := r.ComponentName(k)
		if err != nil {
			t.Fatalf("ComponentName(%d) failed: %v", k, err)
		}
		if r.ComponentIndex(name) != k {
			t.Errorf("Name/index mismatch for %q at %d", name, k)
		}
	}
	if _, err := r.ComponentName(99); !errors.Is(err, ErrComponentBounds) {
		t.Errorf("Expected ErrComponentBounds, got %v", err)
	}
}

func TestBounds(t *testing.T) {
	gas := testGas()
	r := NewReactor(gas, nil, "r")
	if err := r.Initialize(0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if up, _ := r.UpperBound(3); up != 1.0 {
		t.Errorf("Expected species upper bound 1, got %g", up)
	}
	if up, _ := r.UpperBound(0); up != BigNumber {
		t.Errorf("Expected unbounded mass, got %g", up)
	}
	if lo, _ := r.LowerBound(1); lo != 0 {
		t.Errorf("Expected volume lower bound 0, got %g", lo)
	}
	if lo, _ := r.LowerBound(2); lo != -BigNumber {
		t.Errorf("Expected unbounded energy below, got %g", lo)
	}
	if lo, _ := r.LowerBound(4); lo != -Tiny {
		t.Errorf("Expected species lower bound -Tiny, got %g", lo)
	}
	if _, err := r.UpperBound(99); !errors.Is(err, ErrComponentBounds) {
		t.Errorf("Expected ErrComponentBounds, got %v", err)
	}
}

func TestResetBadValues(t *testing.T) {
	gas := testGas()
	r := NewReactor(gas, nil, "r")
	if err := r.Initialize(0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	y := []float64{1.0, 1.0, -5.0, -1e-12, 0.5}
	r.ResetBadValues(y)
	if y[3] != 0 {
		t.Errorf("Expected negative mass fraction clipped, got %g", y[3])
	}
	if y[4] != 0.5 {
		t.Errorf("Positive mass fraction should be untouched, got %g", y[4])
	}
	if y[2] != -5.0 {
		t.Errorf("Energy must not be clipped, got %g", y[2])
	}
}

func TestAdvanceLimits(t *testing.T) {
	gas := testGas()
	r := NewReactor(gas, nil, "r")
	if err := r.Initialize(0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if r.HasAdvanceLimits() {
		t.Fatal("No limits expected at construction")
	}
	if err := r.SetAdvanceLimit("A", 0.1); err != nil {
		t.Fatalf("SetAdvanceLimit failed: %v", err)
	}
	if !r.HasAdvanceLimits() {
		t.Fatal("Expected limits after SetAdvanceLimit")
	}

	limits := make([]float64, r.NEq())
	if !r.GetAdvanceLimits(limits) {
		t.Fatal("GetAdvanceLimits should report true")
	}
	if limits[3] != 0.1 {
		t.Errorf("Expected limit 0.1 on A, got %g", limits[3])
	}
	if limits[0] != -1 {
		t.Errorf("Expected unbounded mass, got %g", limits[0])
	}

	// Removing the only positive limit drops the vector entirely.
	if err := r.SetAdvanceLimit("A", -1); err != nil {
		t.Fatalf("SetAdvanceLimit failed: %v", err)
	}
	if r.HasAdvanceLimits() {
		t.Error("Expected limits to be cleared")
	}

	if err := r.SetAdvanceLimit("missing", 1); !errors.Is(err, ErrNoComponent) {
		t.Errorf("Expected ErrNoComponent, got %v", err)
	}
}

func TestTemperatureRecovery(t *testing.T) {
	gas := testGas()
	if err := gas.SetState(500, 1.0, []float64{0.5, 0.5}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	r := NewReactor(gas, nil, "r")
	if err := r.Initialize(0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	y := make([]float64, r.NEq())
	if err := r.GetState(y); err != nil {
		t.Fatalf("GetState failed: %v", err)
	}

	// Target energy for 700 K at the same density.
	if err := gas.SetStateTD(700, 1.0); err != nil {
		t.Fatalf("SetStateTD failed: %v", err)
	}
	y[2] = gas.IntEnergyMass() * y[0]
	if err := gas.SetStateTD(500, 1.0); err != nil {
		t.Fatalf("SetStateTD failed: %v", err)
	}

	if err := r.UpdateState(y); err != nil {
		t.Fatalf("UpdateState failed: %v", err)
	}
	if math.Abs(r.Temperature()-700) > 700*1e-6 {
		t.Errorf("Expected recovered temperature 700 K, got %f", r.Temperature())
	}
}

func TestTemperatureRecoveryFailure(t *testing.T) {
	gas := testGas()
	if err := gas.SetState(500, 1.0, []float64{0.5, 0.5}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	r := NewReactor(gas, nil, "r")
	if err := r.Initialize(0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	y := make([]float64, r.NEq())
	if err := r.GetState(y); err != nil {
		t.Fatalf("GetState failed: %v", err)
	}

	// Energy far above anything reachable inside the temperature range.
	if err := gas.SetStateTD(gas.MaxTemp(), 1.0); err != nil {
		t.Fatalf("SetStateTD failed: %v", err)
	}
	y[2] = (gas.IntEnergyMass() + 1e9) * y[0]
	if err := gas.SetStateTD(500, 1.0); err != nil {
		t.Fatalf("SetStateTD failed: %v", err)
	}

	err := r.UpdateState(y)
	if !errors.Is(err, ErrTemperatureRecovery) {
		t.Fatalf("Expected ErrTemperatureRecovery, got %v", err)
	}
	// The phase temperature is restored to the last good value.
	if math.Abs(gas.Temperature()-500) > 1e-9 {
		t.Errorf("Expected phase restored to 500 K, got %f", gas.Temperature())
	}
}

func TestSensitivityApplyReset(t *testing.T) {
	gas := testGas()
	if err := gas.SetState(500, 1.0, []float64{0.5, 0.5}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	kin := testMechanism(gas)
	r := NewReactor(gas, kin, "r")
	net := &fakeNetwork{}
	r.SetNetwork(net)
	if err := r.Initialize(0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if err := r.AddSensitivityReaction(0); err != nil {
		t.Fatalf("AddSensitivityReaction failed: %v", err)
	}
	if err := r.AddSensitivitySpeciesEnthalpy(1); err != nil {
		t.Fatalf("AddSensitivitySpeciesEnthalpy failed: %v", err)
	}
	if r.NSensParams() != 2 {
		t.Fatalf("Expected 2 sensitivity parameters, got %d", r.NSensParams())
	}

	params := []float64{2.0, 5.0e6}
	r.ApplySensitivity(params)
	if kin.Multiplier(0) != 2.0 {
		t.Errorf("Expected perturbed multiplier 2, got %f", kin.Multiplier(0))
	}
	if gas.Hf298(1) != -1.0e7+5.0e6 {
		t.Errorf("Expected perturbed enthalpy, got %g", gas.Hf298(1))
	}

	r.ResetSensitivity(params)
	if kin.Multiplier(0) != 1.0 {
		t.Errorf("Expected restored multiplier 1, got %f", kin.Multiplier(0))
	}
	if gas.Hf298(1) != -1.0e7 {
		t.Errorf("Expected restored enthalpy -1e7, got %g", gas.Hf298(1))
	}

	if err := r.AddSensitivityReaction(7); !errors.Is(err, ErrSensitivityRange) {
		t.Errorf("Expected ErrSensitivityRange, got %v", err)
	}

	orphan := NewReactor(gas, kin, "orphan")
	if err := orphan.AddSensitivityReaction(0); !errors.Is(err, ErrNotInNetwork) {
		t.Errorf("Expected ErrNotInNetwork, got %v", err)
	}
}

func TestSteadyConstraints(t *testing.T) {
	gas := testGas()
	r := NewReactor(gas, nil, "r")
	if err := r.Initialize(0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	alg, err := r.SteadyConstraints()
	if err != nil {
		t.Fatalf("SteadyConstraints failed: %v", err)
	}
	if len(alg) != 1 || alg[0] != 1 {
		t.Errorf("Expected volume pinned, got %v", alg)
	}

	r.SetEnergy(false)
	if _, err := r.SteadyConstraints(); !errors.Is(err, ErrSteadyEnergy) {
		t.Errorf("Expected ErrSteadyEnergy, got %v", err)
	}
}

func TestEnergyDisabledIsothermal(t *testing.T) {
	gas := testGas()
	if err := gas.SetState(500, 1.0, []float64{0.5, 0.5}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	r := NewReactor(gas, nil, "r")
	r.SetEnergy(false)
	if err := r.Initialize(0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	y := make([]float64, r.NEq())
	if err := r.GetState(y); err != nil {
		t.Fatalf("GetState failed: %v", err)
	}

	// A wildly wrong energy entry is ignored with the equation off.
	y[2] = 1e20
	if err := r.UpdateState(y); err != nil {
		t.Fatalf("UpdateState failed: %v", err)
	}
	if math.Abs(r.Temperature()-500) > 1e-9 {
		t.Errorf("Temperature must stay at 500 K with energy off, got %f", r.Temperature())
	}

	lhs := make([]float64, r.NEq())
	rhs := make([]float64, r.NEq())
	for i := range lhs {
		lhs[i] = 1
	}
	if err := r.Eval(0, lhs, rhs); err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if rhs[2] != 0 {
		t.Errorf("Expected frozen energy equation, rhs[2]=%g", rhs[2])
	}
}
