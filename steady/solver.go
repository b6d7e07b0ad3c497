// Package steady finds steady states of reactor networks directly,
// without integrating to large times. It runs a damped Newton iteration
// on the network residual and falls back to pseudo-transient
// continuation when the Newton iteration stalls.
package steady

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/LostSunset/cantera/network"
)

var (
	ErrNoConverge = errors.New("steady: solver did not converge")
	ErrSingular   = errors.New("steady: Jacobian is singular")
)

const (
	jacRelPerturb = 1e-5
	jacAbsPerturb = 1e-11
	// jacThreshold drops residual differences smaller than this from
	// the Jacobian, keeping its sparsity pattern stable between
	// evaluations.
	jacThreshold = 0.0
	maxJacAge    = 20

	dampMin    = 1e-7
	newtonIter = 50
)

// Options configures the outer steady/transient loop.
type Options struct {
	InitialTimeStep  float64
	MinTimeStep      float64
	MaxTimeStep      float64
	TimeStepsPerCall int
	MaxTimeStepCount int
}

func DefaultOptions() *Options {
	return &Options{
		InitialTimeStep:  1e-5,
		MinTimeStep:      1e-14,
		MaxTimeStep:      1e2,
		TimeStepsPerCall: 10,
		MaxTimeStepCount: 500,
	}
}

// Solver wraps a reactor network as a steady-state problem. Components
// named by the reactors' steady constraints (volumes) are algebraic:
// they are pinned to their initial values rather than driven to zero
// residual.
type Solver struct {
	net  *network.ReactorNet
	size int
	opts Options

	x         []float64
	x0        []float64
	algebraic []int
	mask      []float64 // 1 for differential components, 0 for pinned ones

	rdt float64

	jac    *mat.Dense
	lu     *mat.LU
	jacAge int
	jacRdt float64

	work1, work2 []float64

	log zerolog.Logger

	// Counters mirroring the Jacobian lifecycle.
	JacEvals  int
	NewtonIts int
	TimeSteps int
}

// New creates a steady solver over an initialized network. Every
// reactor must support steady solution; the per-reactor constraint
// lists are translated into global pinned components.
func New(net *network.ReactorNet, opts *Options) (*Solver, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if net.NEq() == 0 {
		if err := net.Initialize(); err != nil {
			return nil, err
		}
	}
	s := &Solver{
		net:  net,
		size: net.NEq(),
		opts: *opts,
		log:  zerolog.Nop(),
	}
	s.x = make([]float64, s.size)
	s.x0 = make([]float64, s.size)
	if err := net.GetState(s.x); err != nil {
		return nil, err
	}
	copy(s.x0, s.x)

	s.mask = make([]float64, s.size)
	for i := range s.mask {
		s.mask[i] = 1
	}
	for i := 0; i < net.NReactors(); i++ {
		cons, err := net.Reactor(i).SteadyConstraints()
		if err != nil {
			return nil, err
		}
		off := net.GlobalStartIndex(i)
		for _, c := range cons {
			s.algebraic = append(s.algebraic, off+c)
			s.mask[off+c] = 0
		}
	}
	s.work1 = make([]float64, s.size)
	s.work2 = make([]float64, s.size)
	return s, nil
}

func (s *Solver) SetLogger(log zerolog.Logger) { s.log = log }

// Size returns the number of solution components.
func (s *Solver) Size() int { return s.size }

// State copies the current solution estimate into y.
func (s *Solver) State(y []float64) { copy(y, s.x) }

// TransientMask reports which components participate in pseudo-transient
// damping (1) versus being pinned (0).
func (s *Solver) TransientMask() []float64 { return s.mask }

// Eval computes the steady residual at x: the network right-hand side
// with a pseudo-transient penalty -(x-x0)*rdt, and pinning residuals
// x[n]-x0[n] for the algebraic components. rdt < 0 selects the solver's
// current value.
func (s *Solver) Eval(x, r []float64, rdt float64) error {
	if rdt < 0 {
		rdt = s.rdt
	}
	if err := s.net.Eval(0, x, r, nil); err != nil {
		return err
	}
	for i := 0; i < s.size; i++ {
		r[i] -= (x[i] - s.x0[i]) * rdt
	}
	for _, nn := range s.algebraic {
		r[nn] = x[nn] - s.x0[nn]
	}
	return nil
}

// EvalJacobian builds the finite-difference Jacobian of the steady
// residual at x, keeping only entries above the threshold plus the
// diagonal, and factorizes it. Perturbations preserve the sign of the
// component.
func (s *Solver) EvalJacobian(x []float64) error {
	s.JacEvals++
	if s.jac == nil {
		s.jac = mat.NewDense(s.size, s.size, nil)
	}
	s.jac.Zero()

	if err := s.Eval(x, s.work1, 0); err != nil {
		return err
	}
	for j := 0; j < s.size; j++ {
		xsave := x[j]
		dx := math.Abs(xsave)*jacRelPerturb + jacAbsPerturb
		if xsave < 0 {
			dx = -dx
		}
		x[j] = xsave + dx
		rdx := 1.0 / (x[j] - xsave)

		if err := s.Eval(x, s.work2, 0); err != nil {
			x[j] = xsave
			return err
		}
		for i := 0; i < s.size; i++ {
			delta := s.work2[i] - s.work1[i]
			if math.Abs(delta) > jacThreshold || i == j {
				s.jac.Set(i, j, delta*rdx)
			}
		}
		x[j] = xsave
	}
	s.jacAge = 0
	s.jacRdt = 0
	return s.factorize(s.rdt)
}

// factorize refactors the iteration matrix J - rdt*diag(mask) for the
// current pseudo-transient rate without rebuilding the Jacobian.
func (s *Solver) factorize(rdt float64) error {
	m := mat.NewDense(s.size, s.size, nil)
	m.Copy(s.jac)
	for i := 0; i < s.size; i++ {
		if s.mask[i] != 0 {
			m.Set(i, i, m.At(i, i)-rdt)
		}
	}
	s.lu = &mat.LU{}
	s.lu.Factorize(m)
	s.jacRdt = rdt
	return nil
}

// WeightedNorm is the tolerance-scaled RMS norm used for convergence
// and damping decisions.
func (s *Solver) WeightedNorm(step, x []float64) float64 {
	sum := 0.0
	for i := 0; i < s.size; i++ {
		ewt := s.net.Rtol()*math.Abs(x[i]) + s.net.Atol()
		f := step[i] / ewt
		sum += f * f
	}
	return math.Sqrt(sum / float64(s.size))
}

// newtonStep solves J*dx = r for the undamped Newton step -dx.
func (s *Solver) newtonStep(r []float64) ([]float64, error) {
	b := mat.NewVecDense(s.size, append([]float64(nil), r...))
	var v mat.VecDense
	if err := s.lu.SolveVecTo(&v, false, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return v.RawVector().Data, nil
}

// boundedDamping returns the largest damping factor that keeps every
// component of x+lambda*dx within its bounds.
func (s *Solver) boundedDamping(x, dx []float64) float64 {
	lambda := 1.0
	for i := 0; i < s.size; i++ {
		if dx[i] == 0 {
			continue
		}
		hi, err := s.net.UpperBound(i)
		if err != nil {
			continue
		}
		lo, _ := s.net.LowerBound(i)
		xn := x[i] + dx[i]
		if xn > hi {
			lambda = math.Min(lambda, (hi-x[i])/dx[i])
		} else if xn < lo {
			lambda = math.Min(lambda, (lo-x[i])/dx[i])
		}
	}
	return math.Max(lambda, 0)
}

// dampedNewton runs the Newton iteration at the current rdt, damping
// each step until the residual norm decreases. The Jacobian ages one
// count per iteration and is rebuilt when stale.
func (s *Solver) dampedNewton(x []float64) error {
	r := make([]float64, s.size)
	for iter := 0; iter < newtonIter; iter++ {
		s.NewtonIts++
		if s.lu == nil || s.jacAge >= maxJacAge {
			if err := s.EvalJacobian(x); err != nil {
				return err
			}
		} else if s.jacRdt != s.rdt {
			if err := s.factorize(s.rdt); err != nil {
				return err
			}
		}
		if err := s.Eval(x, r, -1); err != nil {
			return err
		}
		norm0 := s.WeightedNorm(r, x)
		if norm0 < 1 {
			return nil
		}
		dx, err := s.newtonStep(r)
		if err != nil {
			// A fresh Jacobian may repair the factorization.
			if s.jacAge > 0 {
				s.jacAge = maxJacAge
				continue
			}
			return err
		}
		for i := range dx {
			dx[i] = -dx[i]
		}
		s.jacAge++

		lambda := s.boundedDamping(x, dx)
		if lambda <= 0 {
			return fmt.Errorf("%w: step blocked by solution bounds", ErrNoConverge)
		}
		accepted := false
		xTrial := make([]float64, s.size)
		for ; lambda > dampMin; lambda *= 0.5 {
			for i := 0; i < s.size; i++ {
				xTrial[i] = x[i] + lambda*dx[i]
			}
			s.net.ResetBadValues(xTrial)
			if err := s.Eval(xTrial, r, -1); err != nil {
				continue // damped trial may leave the valid region
			}
			if s.WeightedNorm(r, xTrial) < norm0 {
				copy(x, xTrial)
				accepted = true
				break
			}
		}
		if !accepted {
			if s.jacAge > 0 {
				s.jacAge = maxJacAge
				continue
			}
			return fmt.Errorf("%w: damping underflow", ErrNoConverge)
		}
	}
	// Final residual check after the iteration budget.
	if err := s.Eval(x, r, -1); err != nil {
		return err
	}
	if s.WeightedNorm(r, x) < 1 {
		return nil
	}
	return fmt.Errorf("%w after %d Newton iterations", ErrNoConverge, newtonIter)
}

// timeIntegrate takes pseudo-transient steps at 1/dt, re-anchoring the
// penalty state before each step.
func (s *Solver) timeIntegrate(x []float64, dt float64, steps int) (float64, error) {
	for i := 0; i < steps; i++ {
		if s.TimeSteps >= s.opts.MaxTimeStepCount {
			return dt, fmt.Errorf("%w: time step count exceeded", ErrNoConverge)
		}
		s.TimeSteps++
		copy(s.x0, x)
		s.rdt = 1.0 / dt
		s.jacAge = maxJacAge // rdt changed; force refactorization path
		err := s.dampedNewton(x)
		if err != nil {
			dt *= 0.25
			if dt < s.opts.MinTimeStep {
				return dt, fmt.Errorf("%w: time step underflow", ErrNoConverge)
			}
			continue
		}
		dt = math.Min(dt*1.5, s.opts.MaxTimeStep)
	}
	return dt, nil
}

// Solve drives the network to steady state and scatters the solution
// back into the reactors. The algebraic components (volumes) keep their
// initial values.
func (s *Solver) Solve() error {
	dt := s.opts.InitialTimeStep
	anchor := append([]float64(nil), s.x0...)

	for attempt := 0; ; attempt++ {
		// Try the direct steady solve.
		s.rdt = 0
		copy(s.x0, anchor)
		trial := append([]float64(nil), s.x...)
		err := s.dampedNewton(trial)
		if err == nil {
			copy(s.x, trial)
			s.log.Debug().Int("attempts", attempt+1).
				Int("jacobians", s.JacEvals).
				Int("time_steps", s.TimeSteps).
				Msg("steady state reached")
			return s.net.UpdateState(s.x)
		}
		s.log.Debug().Err(err).Float64("dt", dt).
			Msg("steady Newton failed; taking pseudo-transient steps")

		// Relax the state by time stepping, then retry.
		var terr error
		dt, terr = s.timeIntegrate(s.x, dt, s.opts.TimeStepsPerCall)
		if terr != nil {
			return terr
		}
		copy(anchor, s.x0)
	}
}
