package sensitivity

import (
	"math"
	"testing"

	"github.com/LostSunset/cantera/kinetics"
	"github.com/LostSunset/cantera/network"
	"github.com/LostSunset/cantera/reactor"
	"github.com/LostSunset/cantera/thermo"
)

// decayScenario builds an isolated constant-volume reactor holding
// A -> B at unit rate, plus an optional reverse step B -> A with
// prefactor k2. Both species share one weight and heat capacity, so
// Y_A(t) = Y_A0 exp(-m t) when only the forward step is active with
// multiplier m.
func decayScenario(k2 float64) Scenario {
	return func(multipliers map[int]float64) (*network.ReactorNet, error) {
		gas := thermo.NewIdealGasPhase("gas", []thermo.Species{
			{Name: "A", MolecularWeight: 10.0, Cp: 30000.0, Hf298: 0},
			{Name: "B", MolecularWeight: 10.0, Cp: 30000.0, Hf298: 0},
		})
		if err := gas.SetState(500, 1.2, []float64{0.6, 0.4}); err != nil {
			return nil, err
		}
		reactions := []kinetics.Reaction{
			{
				Reactants: []kinetics.Stoich{{Species: 0, Coeff: 1}},
				Products:  []kinetics.Stoich{{Species: 1, Coeff: 1}},
				Rate:      kinetics.Arrhenius{A: 1.0},
			},
		}
		if k2 > 0 {
			reactions = append(reactions, kinetics.Reaction{
				Reactants: []kinetics.Stoich{{Species: 1, Coeff: 1}},
				Products:  []kinetics.Stoich{{Species: 0, Coeff: 1}},
				Rate:      kinetics.Arrhenius{A: k2},
			})
		}
		kin := kinetics.NewBulkKinetics(gas, reactions)
		for rxn, m := range multipliers {
			if err := kin.SetMultiplier(rxn, m); err != nil {
				return nil, err
			}
		}
		r := reactor.NewReactor(gas, kin, "batch")
		r.SetVolume(1.0)
		return network.NewReactorNet(r)
	}
}

func TestComponentScorer(t *testing.T) {
	net, err := decayScenario(0)(nil)
	if err != nil {
		t.Fatalf("Scenario failed: %v", err)
	}
	if err := net.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	score := ComponentScorer("A", 0)(net)
	if math.Abs(score-0.6) > 1e-12 {
		t.Errorf("Expected initial Y_A 0.6, got %f", score)
	}
	if !math.IsNaN(ComponentScorer("nope", 0)(net)) {
		t.Error("Expected NaN for an unknown component")
	}

	diff := DiffScorer("B", "A", 0)(net)
	if math.Abs(diff-(-0.2)) > 1e-12 {
		t.Errorf("Expected Y_B - Y_A = -0.2, got %f", diff)
	}
}

func TestKnockoutImpact(t *testing.T) {
	a := NewAnalyzer(decayScenario(0), 1, ComponentScorer("A", 0)).WithEndTime(1.0)
	result, err := a.AnalyzeReactions()
	if err != nil {
		t.Fatalf("AnalyzeReactions failed: %v", err)
	}

	wantBase := 0.6 * math.Exp(-1.0)
	if math.Abs(result.Baseline-wantBase) > 1e-5 {
		t.Errorf("Expected baseline %f, got %f", wantBase, result.Baseline)
	}
	// With the only reaction disabled nothing is consumed.
	if math.Abs(result.Scores[0]-0.6) > 1e-6 {
		t.Errorf("Expected knockout score 0.6, got %f", result.Scores[0])
	}
	wantImpact := 0.6 - wantBase
	if math.Abs(result.Impact[0]-wantImpact) > 1e-5 {
		t.Errorf("Expected impact %f, got %f", wantImpact, result.Impact[0])
	}
	if len(result.Ranking) != 1 || result.Ranking[0].Reaction != 0 {
		t.Errorf("Expected a single ranked reaction, got %v", result.Ranking)
	}
}

func TestKnockoutRanking(t *testing.T) {
	// The reverse step is nearly inert, so disabling the forward step
	// must dominate the ranking.
	a := NewAnalyzer(decayScenario(0.01), 2, ComponentScorer("A", 0)).WithEndTime(1.0)
	result, err := a.AnalyzeReactions()
	if err != nil {
		t.Fatalf("AnalyzeReactions failed: %v", err)
	}
	if len(result.Ranking) != 2 {
		t.Fatalf("Expected 2 ranked reactions, got %d", len(result.Ranking))
	}
	if result.Ranking[0].Reaction != 0 {
		t.Errorf("Expected the forward step to rank first, got %v", result.Ranking)
	}
	if result.Impact[0] <= 0 {
		t.Errorf("Expected disabling consumption to raise Y_A, impact %f", result.Impact[0])
	}
	if result.Impact[1] >= 0 {
		t.Errorf("Expected disabling reformation to lower Y_A, impact %f", result.Impact[1])
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	scorer := ComponentScorer("A", 0)
	seq, err := NewAnalyzer(decayScenario(0.01), 2, scorer).AnalyzeReactions()
	if err != nil {
		t.Fatalf("AnalyzeReactions failed: %v", err)
	}
	par, err := NewAnalyzer(decayScenario(0.01), 2, scorer).AnalyzeReactionsParallel()
	if err != nil {
		t.Fatalf("AnalyzeReactionsParallel failed: %v", err)
	}
	if math.Abs(seq.Baseline-par.Baseline) > 1e-12 {
		t.Errorf("Baselines differ: %g vs %g", seq.Baseline, par.Baseline)
	}
	for rxn, s := range seq.Scores {
		if math.Abs(s-par.Scores[rxn]) > 1e-12 {
			t.Errorf("Scores differ for reaction %d: %g vs %g", rxn, s, par.Scores[rxn])
		}
	}
}

func TestSweepMultiplier(t *testing.T) {
	a := NewAnalyzer(decayScenario(0), 1, ComponentScorer("A", 0)).WithEndTime(1.0)
	result, err := a.SweepMultiplier(0, []float64{0, 0.5, 1, 2})
	if err != nil {
		t.Fatalf("SweepMultiplier failed: %v", err)
	}

	for i, m := range result.Values {
		want := 0.6 * math.Exp(-m)
		if math.Abs(result.Scores[i]-want) > 1e-5 {
			t.Errorf("Expected score %f at multiplier %g, got %f", want, m, result.Scores[i])
		}
	}
	if result.Best.Value != 0 {
		t.Errorf("Expected best multiplier 0, got %g", result.Best.Value)
	}
	if result.Worst.Value != 2 {
		t.Errorf("Expected worst multiplier 2, got %g", result.Worst.Value)
	}
}

func TestSweepMultiplierRange(t *testing.T) {
	a := NewAnalyzer(decayScenario(0), 1, ComponentScorer("A", 0)).WithEndTime(1.0)
	result, err := a.SweepMultiplierRange(0, 0, 2, 5)
	if err != nil {
		t.Fatalf("SweepMultiplierRange failed: %v", err)
	}
	want := []float64{0, 0.5, 1, 1.5, 2}
	if len(result.Values) != len(want) {
		t.Fatalf("Expected %d values, got %d", len(want), len(result.Values))
	}
	for i, v := range result.Values {
		if math.Abs(v-want[i]) > 1e-12 {
			t.Errorf("Expected value %g at %d, got %g", want[i], i, v)
		}
	}
}

func TestGradient(t *testing.T) {
	a := NewAnalyzer(decayScenario(0), 1, ComponentScorer("A", 0)).WithEndTime(1.0)
	g, err := a.Gradient(0, 0.01)
	if err != nil {
		t.Fatalf("Gradient failed: %v", err)
	}
	// d/dm of 0.6 exp(-m) at m=1.
	want := -0.6 * math.Exp(-1.0)
	if math.Abs(g-want) > 1e-4 {
		t.Errorf("Expected gradient %f, got %f", want, g)
	}

	all, err := a.AllGradients(0.01)
	if err != nil {
		t.Fatalf("AllGradients failed: %v", err)
	}
	if math.Abs(all[0]-g) > 1e-12 {
		t.Errorf("Expected matching gradient, got %g and %g", all[0], g)
	}
}

func TestAllGradientsParallel(t *testing.T) {
	a := NewAnalyzer(decayScenario(0.01), 2, ComponentScorer("A", 0)).WithEndTime(0.5)
	seq, err := a.AllGradients(0.01)
	if err != nil {
		t.Fatalf("AllGradients failed: %v", err)
	}
	par, err := a.AllGradientsParallel(0.01)
	if err != nil {
		t.Fatalf("AllGradientsParallel failed: %v", err)
	}
	for rxn, g := range seq {
		if math.Abs(g-par[rxn]) > 1e-12 {
			t.Errorf("Gradients differ for reaction %d: %g vs %g", rxn, g, par[rxn])
		}
	}
}
