package integrator

import (
	"fmt"
	"math"
)

// sensPerturb is the relative parameter perturbation used for the
// finite-difference forward sensitivities. It is chosen well above the
// integration tolerance so the trajectory difference dominates the
// integration error.
const sensPerturb = 1e-4

// RK is an explicit embedded Runge-Kutta integrator with adaptive step
// control. When the problem carries sensitivity parameters the
// integrator advances one perturbed trajectory per parameter in
// lockstep with the base trajectory and reports finite-difference
// sensitivities.
type RK struct {
	tab  *Tableau
	opts Options

	prob Problem
	n    int

	t  float64
	y  []float64
	dt float64

	k      [][]float64
	ytmp   []float64
	ynext  []float64
	f0     []float64
	f0ok   bool
	dPrev  []float64
	dPrevH float64
	order  int

	np     int
	params []float64
	dp     []float64
	ysens  [][]float64
	ksens  [][][]float64
	sensTr [][]float64

	stats Stats
	ready bool
}

// NewRK creates an integrator for the given tableau; nil selects Tsit5
// and default options.
func NewRK(tab *Tableau, opts *Options) *RK {
	if tab == nil {
		tab = Tsit5()
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	return &RK{tab: tab, opts: *opts}
}

func (s *RK) Initialize(t0 float64, prob Problem) error {
	s.prob = prob
	s.n = prob.NEq()
	s.y = make([]float64, s.n)
	if err := prob.GetState(s.y); err != nil {
		return err
	}
	s.t = t0
	s.dt = s.opts.Dt

	stages := len(s.tab.C)
	s.k = make([][]float64, stages)
	for i := range s.k {
		s.k[i] = make([]float64, s.n)
	}
	s.ytmp = make([]float64, s.n)
	s.ynext = make([]float64, s.n)
	s.f0 = make([]float64, s.n)
	s.f0ok = false
	s.dPrev = nil
	s.order = 0

	s.np = prob.NParams()
	if s.np > 0 {
		s.params = make([]float64, s.np)
		prob.Params(s.params)
		s.dp = make([]float64, s.np)
		s.ysens = make([][]float64, s.np)
		s.ksens = make([][][]float64, s.np)
		s.sensTr = make([][]float64, s.np)
		for i := 0; i < s.np; i++ {
			s.dp[i] = sensPerturb * math.Max(math.Abs(s.params[i]), 1)
			s.ysens[i] = append([]float64(nil), s.y...)
			s.sensTr[i] = make([]float64, s.n)
			s.ksens[i] = make([][]float64, stages)
			for j := range s.ksens[i] {
				s.ksens[i][j] = make([]float64, s.n)
			}
		}
	} else {
		s.params = nil
		s.ysens = nil
	}

	s.stats = Stats{}
	s.ready = true
	return nil
}

func (s *RK) Reinitialize(t0 float64, prob Problem) error {
	rtol, atol := s.opts.Rtol, s.opts.Atol
	maxSteps := s.opts.MaxSteps
	if err := s.Initialize(t0, prob); err != nil {
		return err
	}
	s.opts.Rtol, s.opts.Atol = rtol, atol
	s.opts.MaxSteps = maxSteps
	return nil
}

func (s *RK) Time() float64       { return s.t }
func (s *RK) Solution() []float64 { return s.y }
func (s *RK) Stats() Stats        { return s.stats }

func (s *RK) SetTolerances(rtol, atol float64) {
	s.opts.Rtol, s.opts.Atol = rtol, atol
}
func (s *RK) SetMaxStepSize(h float64) { s.opts.Dtmax = h }
func (s *RK) SetMaxSteps(n int)        { s.opts.MaxSteps = n }

// LastOrder reports how many solution derivatives the step history can
// support: one after the first accepted step, two from then on.
func (s *RK) LastOrder() int { return s.order }

// Derivative estimates the order-th time derivative at the current
// state: the first is a fresh right-hand side, the second a backward
// difference of the last two.
func (s *RK) Derivative(d []float64, order int) error {
	if !s.ready {
		return ErrNotInitialized
	}
	switch order {
	case 1:
		if err := s.rhs(s.t, s.y, s.f0, s.params); err != nil {
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
			if err := s.rhs(s.t, s.y, s.f0, s.params); err != nil {
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

func (s *RK) rhs(t float64, y, ydot, p []float64) error {
	s.stats.FuncEvals++
	return s.prob.Eval(t, y, ydot, p)
}

// Integrate advances to exactly t, stepping adaptively and clipping the
// final step so the endpoint is hit without interpolation.
func (s *RK) Integrate(t float64) error {
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
			// The clipped step shrank dt artificially; let the
			// controller rebuild it from the last accepted step.
			s.dt = math.Max(s.dt, s.stats.LastStep)
		}
		steps++
	}
	return nil
}

// Step takes a single adaptive step and returns the new time.
func (s *RK) Step() (float64, error) {
	if !s.ready {
		return 0, ErrNotInitialized
	}
	if err := s.step(); err != nil {
		return 0, err
	}
	return s.t, nil
}

// step attempts trial steps at decreasing dt until the error test
// passes, then commits the solution and the sensitivity trajectories.
func (s *RK) step() error {
	for {
		err, evalErr := s.trial()
		if evalErr != nil {
			// A failed residual (non-finite value, temperature
			// recovery) often just means the trial step was too
			// large; retry smaller until the floor.
			if s.dt <= s.opts.Dtmin {
				return evalErr
			}
			s.dt = math.Max(s.opts.Dtmin, 0.25*s.dt)
			continue
		}
		if err <= 1.0 || s.dt <= s.opts.Dtmin {
			s.accept(err)
			return nil
		}
		s.stats.ErrTestFails++
		factor := 0.9 * math.Pow(1.0/err, 1.0/float64(s.tab.Order+1))
		s.dt = math.Max(s.opts.Dtmin, s.dt*math.Max(factor, 0.1))
	}
}

// trial computes one candidate step of size s.dt into s.ynext and the
// sensitivity buffers, returning the scaled error norm.
func (s *RK) trial() (float64, error) {
	stages := len(s.tab.C)

	if s.f0ok {
		copy(s.k[0], s.f0)
	} else {
		if err := s.rhs(s.t, s.y, s.k[0], s.params); err != nil {
			return 0, err
		}
	}
	for st := 1; st < stages; st++ {
		s.stage(s.y, s.k, st)
		if err := s.rhs(s.t+s.tab.C[st]*s.dt, s.ytmp, s.k[st], s.params); err != nil {
			return 0, err
		}
	}

	copy(s.ynext, s.y)
	for j := 0; j < len(s.tab.B); j++ {
		if b := s.tab.B[j]; b != 0 {
			scale := s.dt * b
			for i := 0; i < s.n; i++ {
				s.ynext[i] += scale * s.k[j][i]
			}
		}
	}

	errNorm := 0.0
	for i := 0; i < s.n; i++ {
		est := 0.0
		for j := 0; j < len(s.tab.Bhat); j++ {
			est += s.dt * s.tab.Bhat[j] * s.k[j][i]
		}
		sc := s.opts.Atol + s.opts.Rtol*math.Max(math.Abs(s.y[i]), math.Abs(s.ynext[i]))
		if sc == 0 {
			sc = s.opts.Atol
		}
		if v := math.Abs(est) / sc; v > errNorm {
			errNorm = v
		}
	}

	// Advance each perturbed trajectory with the same stages; their
	// error does not feed the controller.
	for ip := 0; ip < s.np; ip++ {
		pp := append([]float64(nil), s.params...)
		pp[ip] += s.dp[ip]
		kp := s.ksens[ip]
		yp := s.ysens[ip]
		if err := s.rhs(s.t, yp, kp[0], pp); err != nil {
			return 0, err
		}
		for st := 1; st < stages; st++ {
			s.stage(yp, kp, st)
			if err := s.rhs(s.t+s.tab.C[st]*s.dt, s.ytmp, kp[st], pp); err != nil {
				return 0, err
			}
		}
		copy(s.sensTr[ip], yp)
		for j := 0; j < len(s.tab.B); j++ {
			if b := s.tab.B[j]; b != 0 {
				scale := s.dt * b
				for i := 0; i < s.n; i++ {
					s.sensTr[ip][i] += scale * kp[j][i]
				}
			}
		}
	}
	return errNorm, nil
}

// stage assembles the intermediate state for stage st into s.ytmp.
func (s *RK) stage(y []float64, k [][]float64, st int) {
	copy(s.ytmp, y)
	row := s.tab.A[st]
	for j := 0; j < st && j < len(row); j++ {
		if a := row[j]; a != 0 {
			scale := s.dt * a
			for i := 0; i < s.n; i++ {
				s.ytmp[i] += scale * k[j][i]
			}
		}
	}
}

func (s *RK) accept(errNorm float64) {
	if s.dPrev == nil {
		s.dPrev = make([]float64, s.n)
	}
	copy(s.dPrev, s.k[0])
	s.dPrevH = s.dt
	if s.order < 2 {
		s.order++
	}

	s.t += s.dt
	copy(s.y, s.ynext)
	for ip := 0; ip < s.np; ip++ {
		copy(s.ysens[ip], s.sensTr[ip])
	}
	s.f0ok = false

	s.stats.Steps++
	s.stats.LastStep = s.dt

	if errNorm > 0 {
		factor := 0.9 * math.Pow(1.0/errNorm, 1.0/float64(s.tab.Order+1))
		s.dt *= math.Min(factor, 5.0)
	} else {
		s.dt *= 5.0
	}
	if s.opts.Dtmax > 0 {
		s.dt = math.Min(s.dt, s.opts.Dtmax)
	}
	s.dt = math.Max(s.dt, s.opts.Dtmin)
}

// SensitivityCoeff returns d y[k] / d p[ip] by finite differences of the
// base and perturbed trajectories.
func (s *RK) SensitivityCoeff(k, ip int) float64 {
	if ip < 0 || ip >= s.np || k < 0 || k >= s.n {
		return 0
	}
	return (s.ysens[ip][k] - s.y[k]) / s.dp[ip]
}

// NSensParams returns the number of carried sensitivity parameters.
func (s *RK) NSensParams() int { return s.np }
