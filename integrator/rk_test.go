package integrator

import (
	"errors"
	"math"
	"testing"
)

// decayProblem is y' = -lambda*y with optional rate parameters: when a
// parameter vector is present the rate is lambda*p[0].
type decayProblem struct {
	lambda float64
	y0     float64
	np     int
	p      []float64
}

func (d *decayProblem) NEq() int { return 1 }
func (d *decayProblem) GetState(y []float64) error {
	y[0] = d.y0
	return nil
}
func (d *decayProblem) Eval(t float64, y, ydot, p []float64) error {
	rate := d.lambda
	if p != nil {
		rate *= p[0]
	}
	ydot[0] = -rate * y[0]
	return nil
}
func (d *decayProblem) NParams() int { return d.np }
func (d *decayProblem) Params(p []float64) {
	copy(p, d.p)
}

// oscillator is y'' = -y written as a first-order pair.
type oscillator struct{}

func (o *oscillator) NEq() int { return 2 }
func (o *oscillator) GetState(y []float64) error {
	y[0] = 1
	y[1] = 0
	return nil
}
func (o *oscillator) Eval(t float64, y, ydot, p []float64) error {
	ydot[0] = y[1]
	ydot[1] = -y[0]
	return nil
}
func (o *oscillator) NParams() int       { return 0 }
func (o *oscillator) Params(p []float64) {}

func TestRKExponentialDecay(t *testing.T) {
	prob := &decayProblem{lambda: 2.0, y0: 1.0}
	integ := NewRK(Tsit5(), DefaultOptions())
	if err := integ.Initialize(0, prob); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := integ.Integrate(1.0); err != nil {
		t.Fatalf("Integrate failed: %v", err)
	}

	want := math.Exp(-2.0)
	got := integ.Solution()[0]
	if math.Abs(got-want) > 1e-7 {
		t.Errorf("Expected %g, got %g (error %g)", want, got, got-want)
	}
	if integ.Time() != 1.0 {
		t.Errorf("Expected final time 1, got %g", integ.Time())
	}
	if integ.Stats().Steps == 0 {
		t.Error("No steps recorded")
	}
}

func TestRKOscillatorEnergy(t *testing.T) {
	integ := NewRK(Tsit5(), DefaultOptions())
	if err := integ.Initialize(0, &oscillator{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := integ.Integrate(2 * math.Pi); err != nil {
		t.Fatalf("Integrate failed: %v", err)
	}

	y := integ.Solution()
	if math.Abs(y[0]-1) > 1e-6 || math.Abs(y[1]) > 1e-6 {
		t.Errorf("Expected return to (1,0) after one period, got (%g,%g)", y[0], y[1])
	}
}

func TestRKTableaus(t *testing.T) {
	for _, tab := range []*Tableau{Tsit5(), RK45(), BS32()} {
		prob := &decayProblem{lambda: 1.0, y0: 1.0}
		integ := NewRK(tab, DefaultOptions())
		if err := integ.Initialize(0, prob); err != nil {
			t.Fatalf("%s: Initialize failed: %v", tab.Name, err)
		}
		if err := integ.Integrate(1.0); err != nil {
			t.Fatalf("%s: Integrate failed: %v", tab.Name, err)
		}
		want := math.Exp(-1.0)
		if got := integ.Solution()[0]; math.Abs(got-want) > 1e-6 {
			t.Errorf("%s: expected %g, got %g", tab.Name, want, got)
		}

		// Row sums of A must match the nodes C for a consistent method.
		for i := 1; i < len(tab.C); i++ {
			sum := 0.0
			for _, a := range tab.A[i] {
				sum += a
			}
			if math.Abs(sum-tab.C[i]) > 1e-12 {
				t.Errorf("%s: row %d sums to %g, want %g", tab.Name, i, sum, tab.C[i])
			}
		}
		// The weights must sum to one.
		sum := 0.0
		for _, b := range tab.B {
			sum += b
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("%s: weights sum to %g", tab.Name, sum)
		}
	}
}

func TestRKStepAdvances(t *testing.T) {
	prob := &decayProblem{lambda: 1.0, y0: 1.0}
	integ := NewRK(Tsit5(), DefaultOptions())
	if err := integ.Initialize(0, prob); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	t1, err := integ.Step()
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if t1 <= 0 {
		t.Errorf("Expected positive time after one step, got %g", t1)
	}
	if integ.LastOrder() < 1 {
		t.Errorf("Expected derivative history after a step, order %d", integ.LastOrder())
	}

	t2, err := integ.Step()
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if t2 <= t1 {
		t.Errorf("Time did not advance: %g -> %g", t1, t2)
	}
	if integ.LastOrder() < 2 {
		t.Errorf("Expected second-order history after two steps, order %d", integ.LastOrder())
	}

	// First derivative matches the right-hand side at the current state.
	d := make([]float64, 1)
	if err := integ.Derivative(d, 1); err != nil {
		t.Fatalf("Derivative failed: %v", err)
	}
	want := -integ.Solution()[0]
	if math.Abs(d[0]-want) > 1e-9 {
		t.Errorf("Expected derivative %g, got %g", want, d[0])
	}

	if err := integ.Derivative(d, 3); !errors.Is(err, ErrBadOrder) {
		t.Errorf("Expected ErrBadOrder for order 3, got %v", err)
	}
}

func TestRKBackwardRejected(t *testing.T) {
	prob := &decayProblem{lambda: 1.0, y0: 1.0}
	integ := NewRK(Tsit5(), DefaultOptions())
	if err := integ.Initialize(1.0, prob); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := integ.Integrate(0.5); !errors.Is(err, ErrBackward) {
		t.Errorf("Expected ErrBackward, got %v", err)
	}
}

func TestRKNotInitialized(t *testing.T) {
	integ := NewRK(nil, nil)
	if err := integ.Integrate(1.0); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
}

func TestRKSensitivities(t *testing.T) {
	// y' = -lambda*p*y; at p=1, d y(T) / d p = -lambda*T*exp(-lambda*T).
	prob := &decayProblem{lambda: 1.0, y0: 1.0, np: 1, p: []float64{1.0}}
	integ := NewRK(Tsit5(), DefaultOptions())
	if err := integ.Initialize(0, prob); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if integ.NSensParams() != 1 {
		t.Fatalf("Expected 1 sensitivity parameter, got %d", integ.NSensParams())
	}
	if err := integ.Integrate(1.0); err != nil {
		t.Fatalf("Integrate failed: %v", err)
	}

	want := -math.Exp(-1.0)
	got := integ.SensitivityCoeff(0, 0)
	if math.Abs(got-want) > 1e-3 {
		t.Errorf("Expected sensitivity %g, got %g", want, got)
	}
}
