package integrator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	newtonMaxIter = 8
	maxJacAge     = 50
	machEps       = 2.220446049250313e-16
)

// BDF is an implicit backward-differentiation integrator of orders one
// and two with a modified-Newton corrector. The iteration matrix is
// built from a dense finite-difference Jacobian and reused across steps
// until it goes stale or the corrector stops converging.
type BDF struct {
	opts Options

	prob Problem
	n    int

	t     float64
	y     []float64
	yPrev []float64
	hPrev float64
	nhist int

	dt     float64
	params []float64

	f0     []float64
	f0ok   bool
	dPrev  []float64
	dPrevH float64
	order  int

	lu     *mat.LU
	jac    *mat.Dense
	jacAge int

	stats Stats
	ready bool
}

// NewBDF creates a BDF integrator; nil selects StiffOptions.
func NewBDF(opts *Options) *BDF {
	if opts == nil {
		opts = StiffOptions()
	}
	return &BDF{opts: *opts}
}

func (s *BDF) Initialize(t0 float64, prob Problem) error {
	s.prob = prob
	s.n = prob.NEq()
	s.y = make([]float64, s.n)
	if err := prob.GetState(s.y); err != nil {
		return err
	}
	s.t = t0
	s.dt = s.opts.Dt
	s.yPrev = make([]float64, s.n)
	s.nhist = 0
	s.f0 = make([]float64, s.n)
	s.f0ok = false
	s.dPrev = nil
	s.order = 0
	s.lu = nil
	s.jacAge = maxJacAge // force a Jacobian on the first step

	if np := prob.NParams(); np > 0 {
		s.params = make([]float64, np)
		prob.Params(s.params)
	} else {
		s.params = nil
	}

	s.stats = Stats{}
	s.ready = true
	return nil
}

func (s *BDF) Reinitialize(t0 float64, prob Problem) error {
	rtol, atol := s.opts.Rtol, s.opts.Atol
	maxSteps := s.opts.MaxSteps
	if err := s.Initialize(t0, prob); err != nil {
		return err
	}
	s.opts.Rtol, s.opts.Atol = rtol, atol
	s.opts.MaxSteps = maxSteps
	return nil
}

func (s *BDF) Time() float64       { return s.t }
func (s *BDF) Solution() []float64 { return s.y }
func (s *BDF) Stats() Stats        { return s.stats }

func (s *BDF) SetTolerances(rtol, atol float64) {
	s.opts.Rtol, s.opts.Atol = rtol, atol
}
func (s *BDF) SetMaxStepSize(h float64) { s.opts.Dtmax = h }
func (s *BDF) SetMaxSteps(n int)        { s.opts.MaxSteps = n }

func (s *BDF) LastOrder() int { return s.order }

func (s *BDF) Derivative(d []float64, order int) error {
	if !s.ready {
		return ErrNotInitialized
	}
	switch order {
	case 1:
		if err := s.rhs(s.t, s.y, s.f0); err != nil {
			return err
		}
		s.f0ok = true
		copy(d, s.f0)
		return nil
	case 2:
		if s.order < 2 || s.dPrev == nil || s.dPrevH == 0 {
			return fmt.Errorf("%w: %d", ErrBadOrder, order)
		}
		if !s.f0ok {
			if err := s.rhs(s.t, s.y, s.f0); err != nil {
				return err
			}
			s.f0ok = true
		}
		for i := 0; i < s.n; i++ {
			d[i] = (s.f0[i] - s.dPrev[i]) / s.dPrevH
		}
		return nil
	}
	return fmt.Errorf("%w: %d", ErrBadOrder, order)
}

func (s *BDF) rhs(t float64, y, ydot []float64) error {
	s.stats.FuncEvals++
	return s.prob.Eval(t, y, ydot, s.params)
}

func (s *BDF) Integrate(t float64) error {
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

func (s *BDF) Step() (float64, error) {
	if !s.ready {
		return 0, ErrNotInitialized
	}
	if err := s.step(); err != nil {
		return 0, err
	}
	return s.t, nil
}

func (s *BDF) step() error {
	for {
		u, errNorm, err := s.trial()
		if err != nil {
			if s.dt <= s.opts.Dtmin {
				return err
			}
			// Shrinking the step shrinks the corrector's distance to
			// the solution; also force a fresh iteration matrix.
			s.dt = math.Max(s.opts.Dtmin, 0.25*s.dt)
			s.jacAge = maxJacAge
			continue
		}
		if errNorm <= 1.0 || s.dt <= s.opts.Dtmin {
			s.accept(u, errNorm)
			return nil
		}
		s.stats.ErrTestFails++
		ord := s.bdfOrder()
		factor := 0.9 * math.Pow(1.0/errNorm, 1.0/float64(ord+1))
		s.dt = math.Max(s.opts.Dtmin, s.dt*math.Max(factor, 0.1))
	}
}

// bdfOrder is the order of the formula the next step will use.
func (s *BDF) bdfOrder() int {
	if s.nhist >= 1 {
		return 2
	}
	return 1
}

// trial takes one implicit step of size s.dt, returning the corrected
// state and the scaled difference between predictor and corrector.
func (s *BDF) trial() ([]float64, float64, error) {
	h := s.dt
	tNew := s.t + h

	// BDF coefficients: u = rhsConst + gamma*h*f(tNew, u).
	rhsConst := make([]float64, s.n)
	var gamma float64
	if s.bdfOrder() == 2 {
		a := h / s.hPrev
		den := 1 + 2*a
		c1 := (1 + a) * (1 + a) / den
		c2 := -a * a / den
		gamma = (1 + a) / den
		for i := 0; i < s.n; i++ {
			rhsConst[i] = c1*s.y[i] + c2*s.yPrev[i]
		}
	} else {
		gamma = 1
		copy(rhsConst, s.y)
	}

	// Predictor by extrapolation of the history.
	pred := make([]float64, s.n)
	if s.nhist >= 1 {
		r := h / s.hPrev
		for i := 0; i < s.n; i++ {
			pred[i] = s.y[i] + r*(s.y[i]-s.yPrev[i])
		}
	} else {
		copy(pred, s.y)
	}

	u, err := s.newton(tNew, gamma*h, rhsConst, pred)
	if err != nil {
		return nil, 0, err
	}

	errNorm := 0.0
	for i := 0; i < s.n; i++ {
		sc := s.opts.Atol + s.opts.Rtol*math.Max(math.Abs(s.y[i]), math.Abs(u[i]))
		if sc == 0 {
			sc = s.opts.Atol
		}
		if v := math.Abs(u[i]-pred[i]) / sc; v > errNorm {
			errNorm = v
		}
	}
	// The predictor-corrector gap overestimates the local error; the
	// usual BDF safety constant brings it onto the tolerance scale.
	return u, errNorm / 6.0, nil
}

// newton solves u = rhsConst + gh*f(tNew, u) by modified Newton,
// refreshing the iteration matrix once on failure before giving up.
func (s *BDF) newton(tNew, gh float64, rhsConst, guess []float64) ([]float64, error) {
	u := append([]float64(nil), guess...)
	f := make([]float64, s.n)
	res := make([]float64, s.n)

	refreshed := false
	for {
		if s.lu == nil || s.jacAge >= maxJacAge {
			if err := s.buildMatrix(tNew, gh, u); err != nil {
				return nil, err
			}
		}
		converged := true
		for iter := 0; iter < newtonMaxIter; iter++ {
			if err := s.rhs(tNew, u, f); err != nil {
				return nil, err
			}
			for i := 0; i < s.n; i++ {
				res[i] = u[i] - rhsConst[i] - gh*f[i]
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
			// Retry once with a current Jacobian before failing.
			refreshed = true
			s.jacAge = maxJacAge
			copy(u, guess)
			continue
		}
		return nil, fmt.Errorf("%w at t=%g", ErrNewtonFailed, tNew)
	}
}

// buildMatrix forms and factorizes M = I - gh*J with J a one-sided
// finite-difference Jacobian at (tNew, u).
func (s *BDF) buildMatrix(tNew, gh float64, u []float64) error {
	s.stats.JacEvals++
	if s.jac == nil {
		s.jac = mat.NewDense(s.n, s.n, nil)
	}

	f0 := make([]float64, s.n)
	if err := s.rhs(tNew, u, f0); err != nil {
		return err
	}
	up := append([]float64(nil), u...)
	fp := make([]float64, s.n)
	rel := math.Sqrt(machEps)
	for j := 0; j < s.n; j++ {
		dy := math.Max(math.Abs(u[j]), 1000*s.opts.Atol) * rel
		up[j] = u[j] + dy
		if err := s.rhs(tNew, up, fp); err != nil {
			return err
		}
		up[j] = u[j]
		for i := 0; i < s.n; i++ {
			v := -gh * (fp[i] - f0[i]) / dy
			if i == j {
				v += 1
			}
			s.jac.Set(i, j, v)
		}
	}

	s.lu = &mat.LU{}
	s.lu.Factorize(s.jac)
	s.jacAge = 0
	return nil
}

func (s *BDF) solve(res []float64) ([]float64, error) {
	b := mat.NewVecDense(s.n, append([]float64(nil), res...))
	var x mat.VecDense
	if err := s.lu.SolveVecTo(&x, false, b); err != nil {
		return nil, fmt.Errorf("integrator: iteration matrix is singular: %w", err)
	}
	return x.RawVector().Data, nil
}

func (s *BDF) accept(u []float64, errNorm float64) {
	if s.dPrev == nil {
		s.dPrev = make([]float64, s.n)
	}
	// First derivative at the step start, for history estimates.
	if s.f0ok {
		copy(s.dPrev, s.f0)
	} else if err := s.rhs(s.t, s.y, s.dPrev); err != nil {
		// History is advisory; leave the previous derivative in place.
		s.stats.FuncEvals--
	}
	s.dPrevH = s.dt
	if s.order < 2 {
		s.order++
	}

	copy(s.yPrev, s.y)
	s.hPrev = s.dt
	if s.nhist < 2 {
		s.nhist++
	}

	s.t += s.dt
	copy(s.y, u)
	s.f0ok = false

	s.stats.Steps++
	s.stats.LastStep = s.dt

	if errNorm > 0 {
		ord := s.bdfOrder()
		factor := 0.9 * math.Pow(1.0/errNorm, 1.0/float64(ord+1))
		s.dt *= math.Min(factor, 2.0)
	} else {
		s.dt *= 2.0
	}
	if s.opts.Dtmax > 0 {
		s.dt = math.Min(s.dt, s.opts.Dtmax)
	}
	s.dt = math.Max(s.dt, s.opts.Dtmin)
}
