// Package integrator provides time integrators for the reactor network
// simulator: embedded Runge-Kutta pairs with adaptive step control for
// non-stiff systems, a BDF method with a Newton corrector for stiff
// systems, and a backward-Euler DAE integrator for flow reactors.
package integrator

import "errors"

var (
	ErrNotInitialized = errors.New("integrator: not initialized")
	ErrMaxSteps       = errors.New("integrator: maximum step count exceeded")
	ErrStepTooSmall   = errors.New("integrator: step size underflow")
	ErrNewtonFailed   = errors.New("integrator: Newton iteration did not converge")
	ErrBackward       = errors.New("integrator: target lies before the current time")
	ErrBadOrder       = errors.New("integrator: derivative order not available")
)

// Problem is an ODE system ydot = f(t, y; p). Implementations must
// tolerate repeated evaluation at the same time with different trial
// states; the parameter vector p carries sensitivity parameters and may
// be nil when none are registered.
type Problem interface {
	NEq() int

	// GetState fills y with the initial state.
	GetState(y []float64) error

	// Eval computes ydot at (t, y) with parameter values p.
	Eval(t float64, y, ydot, p []float64) error

	// NParams returns the number of sensitivity parameters; Params
	// fills p with their baseline values.
	NParams() int
	Params(p []float64)
}

// DAEProblem is an implicit system residual(t, y, ydot; p) = 0 with a
// constraint vector marking components as differential (1) or
// algebraic (0).
type DAEProblem interface {
	NEq() int
	GetState(y []float64) error
	EvalDAE(t float64, y, ydot, residual, p []float64) error
	GetConstraints(c []float64)
}

// Integrator advances a Problem in its independent variable. Initialize
// binds the problem and resets all history; Reinitialize re-reads the
// initial state after a structural change without resetting tolerances.
type Integrator interface {
	Initialize(t0 float64, prob Problem) error
	Reinitialize(t0 float64, prob Problem) error

	// Integrate advances the solution to exactly t.
	Integrate(t float64) error

	// Step takes a single internal step and returns the new time.
	Step() (float64, error)

	Time() float64
	Solution() []float64

	// LastOrder is the highest derivative order available from the
	// step history for solution extrapolation.
	LastOrder() int

	// Derivative fills d with the order-th time derivative of the
	// solution estimated from the step history.
	Derivative(d []float64, order int) error

	SetTolerances(rtol, atol float64)
	SetMaxStepSize(h float64)
	SetMaxSteps(n int)

	Stats() Stats
}

// SensitivityIntegrator is implemented by integrators that carry forward
// sensitivities of the solution with respect to the problem parameters.
type SensitivityIntegrator interface {
	Integrator

	// SensitivityCoeff returns ds y[k]/dp[p] at the current time.
	SensitivityCoeff(k, p int) float64
}

// Stats counts the work done since Initialize.
type Stats struct {
	Steps        int
	FuncEvals    int
	JacEvals     int
	ErrTestFails int
	LastStep     float64
}

// Options configures step control.
type Options struct {
	Dt       float64 // initial step
	Dtmin    float64 // smallest step before giving up
	Dtmax    float64 // largest step (0 = unlimited)
	Rtol     float64
	Atol     float64
	MaxSteps int
}

// DefaultOptions returns step control suitable for most reactor
// networks.
func DefaultOptions() *Options {
	return &Options{
		Dt:       1e-8,
		Dtmin:    1e-16,
		Dtmax:    0,
		Rtol:     1e-9,
		Atol:     1e-15,
		MaxSteps: 500000,
	}
}

// LooseOptions trades accuracy for speed; useful for scanning studies
// where many networks are integrated.
func LooseOptions() *Options {
	return &Options{
		Dt:       1e-6,
		Dtmin:    1e-14,
		Dtmax:    0,
		Rtol:     1e-6,
		Atol:     1e-12,
		MaxSteps: 100000,
	}
}

// StiffOptions returns step control for the BDF integrator on stiff
// chemistry.
func StiffOptions() *Options {
	return &Options{
		Dt:       1e-10,
		Dtmin:    1e-18,
		Dtmax:    0,
		Rtol:     1e-9,
		Atol:     1e-15,
		MaxSteps: 2000000,
	}
}
