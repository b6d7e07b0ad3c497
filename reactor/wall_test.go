package reactor

import (
	"math"
	"testing"
)

func TestWallExpansionRate(t *testing.T) {
	hi := testReservoir(t, "hi", 300, 2.0, []float64{1, 0})
	lo := testReservoir(t, "lo", 300, 1.0, []float64{1, 0})

	w := NewWall(hi, lo, "wall")
	w.SetArea(0.5)
	w.SetExpansionRateCoeff(1e-4)

	want := 1e-4 * 0.5 * (hi.Pressure() - lo.Pressure())
	if got := w.ExpansionRate(); math.Abs(got-want) > 1e-12*want {
		t.Errorf("Expected expansion rate %g, got %g", want, got)
	}

	// A prescribed velocity adds on top of the pressure term.
	w.SetVelocity(func(tm float64) float64 { return 2.0 * tm })
	w.SetSimTime(3.0)
	want += 2.0 * 3.0 * 0.5
	if got := w.ExpansionRate(); math.Abs(got-want) > 1e-12*want {
		t.Errorf("Expected expansion rate %g with velocity, got %g", want, got)
	}
}

func TestWallHeatRate(t *testing.T) {
	hot := testReservoir(t, "hot", 400, 1.0, []float64{1, 0})
	cold := testReservoir(t, "cold", 300, 1.0, []float64{1, 0})

	w := NewWall(hot, cold, "wall")
	w.SetArea(2.0)
	w.SetHeatTransferCoeff(10.0)

	want := 10.0 * 2.0 * (400.0 - 300.0)
	if got := w.HeatRate(); math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected heat rate %g, got %g", want, got)
	}

	w.SetEmissivity(0.8)
	want += 0.8 * StefanBoltz * 2.0 * (math.Pow(400, 4) - math.Pow(300, 4))
	if got := w.HeatRate(); math.Abs(got-want) > 1e-9*want {
		t.Errorf("Expected heat rate %g with radiation, got %g", want, got)
	}

	w.SetHeatFlux(func(tm float64) float64 { return 100.0 })
	want += 100.0 * 2.0
	if got := w.HeatRate(); math.Abs(got-want) > 1e-9*want {
		t.Errorf("Expected heat rate %g with flux, got %g", want, got)
	}
}

func TestWallSignConvention(t *testing.T) {
	gas := testGas()
	if err := gas.SetState(500, 1.0, []float64{1, 0}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	r := NewReactor(gas, nil, "r")
	env := testReservoir(t, "env", 300, 1.0, []float64{1, 0})

	// The reactor is on the left; a prescribed velocity grows its volume
	// and conductive heat flows out toward the cooler environment.
	w := NewWall(r, env, "wall")
	w.SetVelocity(func(tm float64) float64 { return 0.01 })
	w.SetHeatTransferCoeff(5.0)

	if r.NWalls() != 1 {
		t.Fatalf("Expected 1 wall on the reactor, got %d", r.NWalls())
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

	// dV/dt is the wall expansion rate.
	if math.Abs(rhs[1]-0.01) > 1e-12 {
		t.Errorf("Expected dV/dt=0.01, got %g", rhs[1])
	}
	// dU/dt = -P*Vdot - Qout.
	qout := 5.0 * (500.0 - 300.0)
	want := -r.Pressure()*0.01 - qout
	if math.Abs(rhs[2]-want) > 1e-9*math.Abs(want) {
		t.Errorf("Expected dU/dt=%g, got %g", want, rhs[2])
	}
}
