package integrator

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var ErrNotDAEProblem = errors.New("integrator: problem does not provide a DAE residual")

// DAE is a first-order backward-Euler integrator for implicit systems
// residual(t, y, ydot) = 0. Each step solves for y at the new time with
// a modified Newton iteration; the derivative of differential components
// is the backward difference across the step and algebraic components
// carry zero derivative.
type DAE struct {
	opts Options

	prob DAEProblem
	n    int

	t     float64
	y     []float64
	yPrev []float64
	hPrev float64

	dt          float64
	constraints []float64

	lu     *mat.LU
	jac    *mat.Dense
	jacAge int

	stats Stats
	ready bool
}

// NewDAE creates a backward-Euler DAE integrator; nil selects
// StiffOptions.
func NewDAE(opts *Options) *DAE {
	if opts == nil {
		opts = StiffOptions()
	}
	return &DAE{opts: *opts}
}

func (s *DAE) Initialize(t0 float64, prob Problem) error {
	dp, ok := prob.(DAEProblem)
	if !ok {
		return ErrNotDAEProblem
	}
	return s.InitializeDAE(t0, dp)
}

func (s *DAE) InitializeDAE(t0 float64, prob DAEProblem) error {
	s.prob = prob
	s.n = prob.NEq()
	s.y = make([]float64, s.n)
	if err := prob.GetState(s.y); err != nil {
		return err
	}
	s.t = t0
	s.dt = s.opts.Dt
	s.yPrev = append([]float64(nil), s.y...)
	s.hPrev = 0
	s.constraints = make([]float64, s.n)
	prob.GetConstraints(s.constraints)
	s.lu = nil
	s.jacAge = maxJacAge
	s.stats = Stats{}
	s.ready = true
	return nil
}

func (s *DAE) Reinitialize(t0 float64, prob Problem) error {
	rtol, atol := s.opts.Rtol, s.opts.Atol
	maxSteps := s.opts.MaxSteps
	if err := s.Initialize(t0, prob); err != nil {
		return err
	}
	s.opts.Rtol, s.opts.Atol = rtol, atol
	s.opts.MaxSteps = maxSteps
	return nil
}

func (s *DAE) Time() float64       { return s.t }
func (s *DAE) Solution() []float64 { return s.y }
func (s *DAE) Stats() Stats        { return s.stats }

func (s *DAE) SetTolerances(rtol, atol float64) {
	s.opts.Rtol, s.opts.Atol = rtol, atol
}
func (s *DAE) SetMaxStepSize(h float64) { s.opts.Dtmax = h }
func (s *DAE) SetMaxSteps(n int)        { s.opts.MaxSteps = n }

func (s *DAE) LastOrder() int {
	if s.hPrev > 0 {
		return 1
	}
	return 0
}

// Derivative reports the backward difference across the last accepted
// step; only the first derivative is available.
func (s *DAE) Derivative(d []float64, order int) error {
	if !s.ready {
		return ErrNotInitialized
	}
	if order != 1 || s.hPrev == 0 {
		return fmt.Errorf("%w: %d", ErrBadOrder, order)
	}
	for i := 0; i < s.n; i++ {
		d[i] = (s.y[i] - s.yPrev[i]) / s.hPrev
	}
	return nil
}

func (s *DAE) residual(t float64, y, ydot, res []float64) error {
	s.stats.FuncEvals++
	return s.prob.EvalDAE(t, y, ydot, res, nil)
}

func (s *DAE) Integrate(t float64) error {
	if !s.ready {
		return ErrNotInitialized
	}
	if t < s.t {
		return fmt.Errorf("%w: t=%g, current=%g", ErrBackward, t, s.t)
	}
	steps := 0
	for s.t < t {
		if steps >= s.opts.MaxSteps {
			return fmt.Errorf("%w (%d) advancing to t=%g", ErrMaxSteps, s.opts.MaxSteps, t)
		}
		clip := false
		if s.t+s.dt > t {
			s.dt = t - s.t
			clip = true
		}
		if err := s.step(); err != nil {
			return err
		}
		if clip {
			s.dt = math.Max(s.dt, s.stats.LastStep)
		}
		steps++
	}
	return nil
}

func (s *DAE) Step() (float64, error) {
	if !s.ready {
		return 0, ErrNotInitialized
	}
	if err := s.step(); err != nil {
		return 0, err
	}
	return s.t, nil
}

func (s *DAE) step() error {
	for {
		u, errNorm, err := s.trial()
		if err != nil {
			if s.dt <= s.opts.Dtmin {
				return err
			}
			s.dt = math.Max(s.opts.Dtmin, 0.25*s.dt)
			s.jacAge = maxJacAge
			continue
		}
		if errNorm <= 1.0 || s.dt <= s.opts.Dtmin {
			s.accept(u)
			return nil
		}
		s.stats.ErrTestFails++
		factor := 0.9 / errNorm
		s.dt = math.Max(s.opts.Dtmin, s.dt*math.Max(factor, 0.1))
	}
}

func (s *DAE) trial() ([]float64, float64, error) {
	h := s.dt
	tNew := s.t + h

	// Predictor: extrapolate differential components, hold algebraic
	// ones at their current values.
	pred := append([]float64(nil), s.y...)
	if s.hPrev > 0 {
		r := h / s.hPrev
		for i := 0; i < s.n; i++ {
			if s.constraints[i] != 0 {
				pred[i] = s.y[i] + r*(s.y[i]-s.yPrev[i])
			}
		}
	}

	u, err := s.newton(tNew, h, pred)
	if err != nil {
		return nil, 0, err
	}

	errNorm := 0.0
	for i := 0; i < s.n; i++ {
		if s.constraints[i] == 0 {
			continue
		}
		sc := s.opts.Atol + s.opts.Rtol*math.Max(math.Abs(s.y[i]), math.Abs(u[i]))
		if sc == 0 {
			sc = s.opts.Atol
		}
		if v := math.Abs(u[i]-pred[i]) / sc; v > errNorm {
			errNorm = v
		}
	}
	return u, errNorm / 2.0, nil
}

// ydotFor fills ydot for trial state u: backward difference for
// differential components, zero for algebraic ones.
func (s *DAE) ydotFor(u, ydot []float64, h float64) {
	for i := 0; i < s.n; i++ {
		if s.constraints[i] != 0 {
			ydot[i] = (u[i] - s.y[i]) / h
		} else {
			ydot[i] = 0
		}
	}
}

func (s *DAE) newton(tNew, h float64, guess []float64) ([]float64, error) {
	u := append([]float64(nil), guess...)
	ydot := make([]float64, s.n)
	res := make([]float64, s.n)

	refreshed := false
	for {
		if s.lu == nil || s.jacAge >= maxJacAge {
			if err := s.buildMatrix(tNew, h, u); err != nil {
				return nil, err
			}
		}
		converged := true
		for iter := 0; iter < newtonMaxIter; iter++ {
			s.ydotFor(u, ydot, h)
			if err := s.residual(tNew, u, ydot, res); err != nil {
				return nil, err
			}
			du, err := s.solve(res)
			if err != nil {
				return nil, err
			}
			norm := 0.0
			for i := 0; i < s.n; i++ {
				u[i] -= du[i]
				sc := s.opts.Atol + s.opts.Rtol*math.Abs(u[i])
				if v := math.Abs(du[i]) / sc; v > norm {
					norm = v
				}
			}
			if norm < 0.1 {
				s.jacAge++
				return u, nil
			}
			converged = false
		}
		if !converged && !refreshed {
			refreshed = true
			s.jacAge = maxJacAge
			copy(u, guess)
			continue
		}
		return nil, fmt.Errorf("%w at t=%g", ErrNewtonFailed, tNew)
	}
}

// buildMatrix forms d residual / d u by one-sided differences, where a
// perturbation of a differential component also perturbs its backward
// difference derivative by du/h.
func (s *DAE) buildMatrix(tNew, h float64, u []float64) error {
	s.stats.JacEvals++
	if s.jac == nil {
		s.jac = mat.NewDense(s.n, s.n, nil)
	}

	ydot := make([]float64, s.n)
	res0 := make([]float64, s.n)
	resp := make([]float64, s.n)
	s.ydotFor(u, ydot, h)
	if err := s.residual(tNew, u, ydot, res0); err != nil {
		return err
	}

	up := append([]float64(nil), u...)
	rel := math.Sqrt(machEps)
	for j := 0; j < s.n; j++ {
		dy := math.Max(math.Abs(u[j]), 1000*s.opts.Atol) * rel
		up[j] = u[j] + dy
		s.ydotFor(up, ydot, h)
		if err := s.residual(tNew, up, ydot, resp); err != nil {
			return err
		}
		up[j] = u[j]
		for i := 0; i < s.n; i++ {
			s.jac.Set(i, j, (resp[i]-res0[i])/dy)
		}
	}

	s.lu = &mat.LU{}
	s.lu.Factorize(s.jac)
	s.jacAge = 0
	return nil
}

func (s *DAE) solve(res []float64) ([]float64, error) {
	b := mat.NewVecDense(s.n, append([]float64(nil), res...))
	var x mat.VecDense
	if err := s.lu.SolveVecTo(&x, false, b); err != nil {
		return nil, fmt.Errorf("integrator: iteration matrix is singular: %w", err)
	}
	return x.RawVector().Data, nil
}

func (s *DAE) accept(u []float64) {
	copy(s.yPrev, s.y)
	s.hPrev = s.dt
	s.t += s.dt
	copy(s.y, u)

	s.stats.Steps++
	s.stats.LastStep = s.dt

	s.dt *= 1.5
	if s.opts.Dtmax > 0 {
		s.dt = math.Min(s.dt, s.opts.Dtmax)
	}
	s.dt = math.Max(s.dt, s.opts.Dtmin)
}
