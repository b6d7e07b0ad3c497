// Package network assembles reactors into one global ODE or DAE system
// and drives an integrator over it. Each reactor owns a contiguous slice
// of the global state vector; an offset table maps between the two
// views.
package network

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/LostSunset/cantera/integrator"
	"github.com/LostSunset/cantera/reactor"
)

// Reactor is what the network requires of its members. All reactor
// variants in the reactor package satisfy it.
type Reactor interface {
	Name() string
	NEq() int
	Initialize(t0 float64) error
	GetState(y []float64) error
	UpdateState(y []float64) error
	Eval(t float64, lhs, rhs []float64) error
	EvalDAE(t float64, y, ydot, residual []float64) error
	GetConstraints(c []float64)

	IsODE() bool
	TimeIsIndependent() bool
	PreconditionerSupported() bool

	ComponentName(k int) (string, error)
	ComponentIndex(name string) int
	UpperBound(k int) (float64, error)
	LowerBound(k int) (float64, error)
	ResetBadValues(y []float64)

	SetNetwork(net reactor.Network)
	ApplySensitivity(p []float64)
	ResetSensitivity(p []float64)
	NSensParams() int

	HasAdvanceLimits() bool
	GetAdvanceLimits(limits []float64) bool
	SetAdvanceLimits(limits []float64) error

	SteadyConstraints() ([]int, error)
}

// jacobianProvider is satisfied by reactors that can produce a sparse
// Jacobian of their own state block, used for preconditioner assembly.
type jacobianProvider interface {
	FiniteDifferenceJacobian() (*reactor.SparseJacobian, error)
}

// sensParam is one registered sensitivity parameter.
type sensParam struct {
	name  string
	value float64
	scale float64
}

// ReactorNet couples reactors into a single system sharing one
// independent variable. Structural changes (adding connectors, syncing
// states) mark the integrator stale; the next advance reinitializes it
// transparently.
type ReactorNet struct {
	reactors []Reactor
	start    []int
	nv       int

	time     float64
	initTime float64
	timeIsIndep bool

	rtol, atol float64
	maxStep    float64
	maxSteps   int

	integ     integrator.Integrator
	newInteg  func() integrator.Integrator
	init      bool
	integInit bool

	sensParams []sensParam

	lhs, rhs []float64
	ydotWork []float64
	yest     []float64
	deriv    []float64
	limits   []float64

	log zerolog.Logger
}

// NewReactorNet creates a network over the given reactors. They must all
// be governed by the same system type (ODE or DAE) and share the same
// independent variable.
func NewReactorNet(reactors ...Reactor) (*ReactorNet, error) {
	n := &ReactorNet{
		rtol:        1e-9,
		atol:        1e-15,
		maxSteps:    500000,
		timeIsIndep: true,
		log:         zerolog.Nop(),
	}
	for _, r := range reactors {
		if err := n.AddReactor(r); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// SetLogger installs a structured logger; the default discards
// everything.
func (n *ReactorNet) SetLogger(log zerolog.Logger) { n.log = log }

// AddReactor adds a reactor, checking that its system type and
// independent variable match the reactors already present.
func (n *ReactorNet) AddReactor(r Reactor) error {
	for _, cur := range n.reactors {
		if cur.IsODE() != r.IsODE() {
			return fmt.Errorf("%w: %q and %q", ErrMixedSystems, cur.Name(), r.Name())
		}
		if cur.TimeIsIndependent() != r.TimeIsIndependent() {
			return fmt.Errorf("%w: %q and %q", ErrMixedVariables, cur.Name(), r.Name())
		}
	}
	n.timeIsIndep = r.TimeIsIndependent()
	r.SetNetwork(n)
	n.reactors = append(n.reactors, r)
	n.init = false
	return nil
}

func (n *ReactorNet) NReactors() int      { return len(n.reactors) }
func (n *ReactorNet) Reactor(i int) Reactor { return n.reactors[i] }

// Time returns the current time for time-domain networks.
func (n *ReactorNet) Time() (float64, error) {
	if !n.timeIsIndep {
		return 0, ErrNotTime
	}
	return n.time, nil
}

// Distance returns the current axial position for flow-reactor networks.
func (n *ReactorNet) Distance() (float64, error) {
	if n.timeIsIndep {
		return 0, ErrNotDistance
	}
	return n.time, nil
}

// SimTime returns the current independent variable regardless of kind.
func (n *ReactorNet) SimTime() float64 { return n.time }

func (n *ReactorNet) Rtol() float64 { return n.rtol }
func (n *ReactorNet) Atol() float64 { return n.atol }

// SetInitialTime moves the start of integration; the integrator is
// rebuilt on the next advance.
func (n *ReactorNet) SetInitialTime(t float64) {
	n.time = t
	n.initTime = t
	n.integInit = false
}

// SetTolerances sets the relative and absolute integration tolerances;
// negative values leave the current setting unchanged.
func (n *ReactorNet) SetTolerances(rtol, atol float64) {
	if rtol >= 0 {
		n.rtol = rtol
	}
	if atol >= 0 {
		n.atol = atol
	}
	n.init = false
}

// SetMaxTimeStep caps the internal step size.
func (n *ReactorNet) SetMaxTimeStep(h float64) {
	n.maxStep = h
	if n.integ != nil {
		n.integ.SetMaxStepSize(h)
	}
}

// SetMaxSteps caps the number of internal steps per advance call.
func (n *ReactorNet) SetMaxSteps(nmax int) {
	n.maxSteps = nmax
	if n.integ != nil {
		n.integ.SetMaxSteps(nmax)
	}
}

func (n *ReactorNet) MaxSteps() int { return n.maxSteps }

// SetIntegrator overrides the integrator constructor. Call before the
// first advance.
func (n *ReactorNet) SetIntegrator(f func() integrator.Integrator) {
	n.newInteg = f
	n.integInit = false
}

// SetNeedsReinit marks the integrator stale after a structural or state
// change.
func (n *ReactorNet) SetNeedsReinit() { n.integInit = false }

// NEq returns the total number of state variables.
func (n *ReactorNet) NEq() int { return n.nv }

// GlobalStartIndex returns the offset of reactor i's block in the global
// state vector.
func (n *ReactorNet) GlobalStartIndex(i int) int { return n.start[i] }

// IsODE reports whether the assembled system is a plain ODE.
func (n *ReactorNet) IsODE() bool {
	return len(n.reactors) == 0 || n.reactors[0].IsODE()
}

// Initialize sizes the offset table and work arrays, initializes every
// reactor and builds the integrator.
func (n *ReactorNet) Initialize() error {
	if len(n.reactors) == 0 {
		return ErrNoReactors
	}
	n.nv = 0
	n.start = n.start[:0]
	n.start = append(n.start, 0)
	for i, r := range n.reactors {
		if err := r.Initialize(n.time); err != nil {
			return err
		}
		nv := r.NEq()
		n.nv += nv
		n.start = append(n.start, n.nv)
		n.log.Debug().Int("reactor", i).Str("name", r.Name()).
			Int("variables", nv).Int("sens_params", r.NSensParams()).
			Msg("initializing reactor")
		if !r.IsODE() && len(n.reactors) > 1 {
			return ErrFlowAlone
		}
	}

	n.lhs = make([]float64, n.nv)
	n.rhs = make([]float64, n.nv)
	n.ydotWork = make([]float64, n.nv)
	n.yest = make([]float64, n.nv)
	n.deriv = make([]float64, n.nv)
	n.limits = make([]float64, n.nv)

	if n.integ == nil {
		n.integ = n.buildIntegrator()
	}
	n.integ.SetTolerances(n.rtol, n.atol)
	if n.maxStep > 0 {
		n.integ.SetMaxStepSize(n.maxStep)
	}
	n.integ.SetMaxSteps(n.maxSteps)
	if err := n.integ.Initialize(n.time, n); err != nil {
		return err
	}
	n.log.Debug().Int("equations", n.nv).Float64("max_step", n.maxStep).
		Msg("reactor network initialized")
	n.init = true
	n.integInit = true
	return nil
}

// buildIntegrator picks the default method: BDF for stiff chemistry
// networks, the explicit pair when finite-difference sensitivities are
// requested, and backward Euler for DAE systems.
func (n *ReactorNet) buildIntegrator() integrator.Integrator {
	if n.newInteg != nil {
		return n.newInteg()
	}
	if !n.IsODE() {
		return integrator.NewDAE(nil)
	}
	if len(n.sensParams) > 0 {
		return integrator.NewRK(nil, nil)
	}
	return integrator.NewBDF(nil)
}

// Reinitialize re-reads the reactor states into the existing integrator.
func (n *ReactorNet) Reinitialize() error {
	if !n.init {
		return n.Initialize()
	}
	if err := n.integ.Reinitialize(n.time, n); err != nil {
		return err
	}
	n.integInit = true
	return nil
}

func (n *ReactorNet) ensureReady() error {
	if !n.init {
		return n.Initialize()
	}
	if !n.integInit {
		return n.Reinitialize()
	}
	return nil
}

// Advance integrates the network to exactly t and scatters the solution
// back into the reactors.
func (n *ReactorNet) Advance(t float64) error {
	if err := n.ensureReady(); err != nil {
		return err
	}
	if err := n.integ.Integrate(t); err != nil {
		return err
	}
	n.time = t
	return n.UpdateState(n.integ.Solution())
}

// AdvanceLimited advances toward t while honoring per-component advance
// limits: the target is halved toward the current time until the
// Taylor-series estimate of the state change respects every limit. It
// returns the time actually reached.
func (n *ReactorNet) AdvanceLimited(t float64) (float64, error) {
	if err := n.ensureReady(); err != nil {
		return 0, err
	}
	if !n.HasAdvanceLimits() {
		return t, n.Advance(t)
	}
	if !n.IsODE() {
		return 0, ErrDAELimits
	}
	n.GetAdvanceLimits(n.limits)

	// The estimate needs at least one derivative of history.
	for n.integ.LastOrder() < 1 {
		if _, err := n.Step(); err != nil {
			return 0, err
		}
		if n.time >= t {
			return n.time, nil
		}
	}

	k := n.integ.LastOrder()
	target := t
	y := n.integ.Solution()
	for {
		if err := n.getEstimate(target, k, n.yest); err != nil {
			return 0, err
		}
		exceeded := false
		for j := 0; j < n.nv; j++ {
			delta := math.Abs(n.yest[j] - y[j])
			if n.limits[j] > 0 && delta > n.limits[j] {
				exceeded = true
				n.log.Debug().Int("component", j).
					Float64("dt", target-n.time).
					Float64("delta", delta).
					Float64("limit", n.limits[j]).
					Msg("limiting advance")
			}
		}
		if !exceeded {
			break
		}
		target = 0.5 * (n.time + target)
	}
	if err := n.Advance(target); err != nil {
		return 0, err
	}
	return target, nil
}

// Step takes a single internal integrator step and returns the new value
// of the independent variable.
func (n *ReactorNet) Step() (float64, error) {
	if err := n.ensureReady(); err != nil {
		return 0, err
	}
	t, err := n.integ.Step()
	if err != nil {
		return 0, err
	}
	n.time = t
	return t, n.UpdateState(n.integ.Solution())
}

// getEstimate extrapolates the current solution to time using a Taylor
// expansion over the integrator's derivative history up to order k.
func (n *ReactorNet) getEstimate(time float64, k int, yest []float64) error {
	copy(yest, n.integ.Solution())
	factor := 1.0
	deltat := time - n.time
	for ord := 1; ord <= k; ord++ {
		factor *= deltat / float64(ord)
		if err := n.integ.Derivative(n.deriv, ord); err != nil {
			return err
		}
		for j := 0; j < n.nv; j++ {
			yest[j] += factor * n.deriv[j]
		}
	}
	return nil
}

// LastOrder reports the derivative history order of the integrator.
func (n *ReactorNet) LastOrder() int {
	if n.integ == nil {
		return 0
	}
	return n.integ.LastOrder()
}

// GetState gathers the reactor states into the global vector.
func (n *ReactorNet) GetState(y []float64) error {
	for i, r := range n.reactors {
		if err := r.GetState(y[n.start[i]:n.start[i+1]]); err != nil {
			return err
		}
	}
	return nil
}

// UpdateState scatters a global state vector into the reactors.
func (n *ReactorNet) UpdateState(y []float64) error {
	if err := n.checkFinite("y", y); err != nil {
		return err
	}
	for i, r := range n.reactors {
		if err := r.UpdateState(y[n.start[i]:n.start[i+1]]); err != nil {
			return err
		}
	}
	return nil
}

// Eval computes the global ydot at (t, y). Sensitivity perturbations are
// applied symmetrically around each reactor's residual so every call
// sees the same baseline kinetics.
func (n *ReactorNet) Eval(t float64, y, ydot, p []float64) error {
	n.time = t
	if err := n.UpdateState(y); err != nil {
		return err
	}
	for i := range n.lhs {
		n.lhs[i] = 1
		n.rhs[i] = 0
	}
	for i, r := range n.reactors {
		lo, hi := n.start[i], n.start[i+1]
		r.ApplySensitivity(p)
		err := r.Eval(t, n.lhs[lo:hi], n.rhs[lo:hi])
		if err == nil {
			for j := lo; j < hi; j++ {
				ydot[j] = n.rhs[j] / n.lhs[j]
			}
		}
		r.ResetSensitivity(p)
		if err != nil {
			return err
		}
	}
	return n.checkFinite("ydot", ydot)
}

// EvalDAE computes the global DAE residual at (t, y, ydot).
func (n *ReactorNet) EvalDAE(t float64, y, ydot, residual, p []float64) error {
	n.time = t
	if err := n.UpdateState(y); err != nil {
		return err
	}
	for i, r := range n.reactors {
		lo, hi := n.start[i], n.start[i+1]
		r.ApplySensitivity(p)
		err := r.EvalDAE(t, y[lo:hi], ydot[lo:hi], residual[lo:hi])
		r.ResetSensitivity(p)
		if err != nil {
			return err
		}
	}
	return n.checkFinite("residual", residual)
}

// GetConstraints gathers the differential/algebraic markers.
func (n *ReactorNet) GetConstraints(c []float64) {
	for i, r := range n.reactors {
		r.GetConstraints(c[n.start[i]:n.start[i+1]])
	}
}

func (n *ReactorNet) checkFinite(name string, v []float64) error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			comp, err := n.ComponentName(i)
			if err != nil {
				comp = fmt.Sprintf("component %d", i)
			}
			return fmt.Errorf("%w: %s[%d] (%s) = %g at t=%g",
				ErrNotFinite, name, i, comp, x, n.time)
		}
	}
	return nil
}

// GetDerivative fills dky with the k-th derivative of the solution.
func (n *ReactorNet) GetDerivative(k int, dky []float64) error {
	if err := n.ensureReady(); err != nil {
		return err
	}
	return n.integ.Derivative(dky, k)
}

// SetAdvanceLimits distributes a global limit vector over the reactors.
func (n *ReactorNet) SetAdvanceLimits(limits []float64) error {
	if err := n.ensureReady(); err != nil {
		return err
	}
	for i, r := range n.reactors {
		if err := r.SetAdvanceLimits(limits[n.start[i]:n.start[i+1]]); err != nil {
			return err
		}
	}
	return nil
}

// HasAdvanceLimits reports whether any reactor carries a limit.
func (n *ReactorNet) HasAdvanceLimits() bool {
	for _, r := range n.reactors {
		if r.HasAdvanceLimits() {
			return true
		}
	}
	return false
}

// GetAdvanceLimits gathers the per-component limits (-1 where unset).
func (n *ReactorNet) GetAdvanceLimits(limits []float64) bool {
	has := false
	for i, r := range n.reactors {
		has = r.GetAdvanceLimits(limits[n.start[i]:n.start[i+1]]) || has
	}
	return has
}

// GlobalComponentIndex maps a component of reactor i into the global
// state vector.
func (n *ReactorNet) GlobalComponentIndex(component string, i int) (int, error) {
	if err := n.ensureReady(); err != nil {
		return 0, err
	}
	if i < 0 || i >= len(n.reactors) {
		return 0, fmt.Errorf("%w: reactor %d", ErrIndexBounds, i)
	}
	k := n.reactors[i].ComponentIndex(component)
	if k < 0 {
		return 0, fmt.Errorf("%w: %q in reactor %q", ErrIndexBounds,
			component, n.reactors[i].Name())
	}
	return n.start[i] + k, nil
}

// ComponentName names global component i as "reactor: component".
func (n *ReactorNet) ComponentName(i int) (string, error) {
	for _, r := range n.reactors {
		if i < r.NEq() {
			c, err := r.ComponentName(i)
			if err != nil {
				return "", err
			}
			return r.Name() + ": " + c, nil
		}
		i -= r.NEq()
	}
	return "", fmt.Errorf("%w: %d", ErrIndexBounds, i)
}

func (n *ReactorNet) UpperBound(i int) (float64, error) {
	for _, r := range n.reactors {
		if i < r.NEq() {
			return r.UpperBound(i)
		}
		i -= r.NEq()
	}
	return 0, fmt.Errorf("%w: %d", ErrIndexBounds, i)
}

func (n *ReactorNet) LowerBound(i int) (float64, error) {
	for _, r := range n.reactors {
		if i < r.NEq() {
			return r.LowerBound(i)
		}
		i -= r.NEq()
	}
	return 0, fmt.Errorf("%w: %d", ErrIndexBounds, i)
}

// ResetBadValues lets each reactor clip its block after an accepted
// step.
func (n *ReactorNet) ResetBadValues(y []float64) {
	for i, r := range n.reactors {
		r.ResetBadValues(y[n.start[i]:n.start[i+1]])
	}
}

// RegisterSensitivityParameter adds a named parameter with its baseline
// value and scale, returning its global index. The registry freezes once
// the integrator is live.
func (n *ReactorNet) RegisterSensitivityParameter(name string, value, scale float64) (int, error) {
	if n.integInit {
		return 0, ErrSensFrozen
	}
	n.sensParams = append(n.sensParams, sensParam{name: name, value: value, scale: scale})
	return len(n.sensParams) - 1, nil
}

// NParams returns the number of registered sensitivity parameters.
func (n *ReactorNet) NParams() int { return len(n.sensParams) }

// Params fills p with the baseline parameter values.
func (n *ReactorNet) Params(p []float64) {
	for i := range n.sensParams {
		p[i] = n.sensParams[i].value
	}
}

// SensitivityParamName returns the registered name of parameter p.
func (n *ReactorNet) SensitivityParamName(p int) (string, error) {
	if p < 0 || p >= len(n.sensParams) {
		return "", fmt.Errorf("%w: %d", ErrSensIndex, p)
	}
	return n.sensParams[p].name, nil
}

// Sensitivity returns the sensitivity of solution component k to
// parameter p, normalized by the current value of the component.
func (n *ReactorNet) Sensitivity(k, p int) (float64, error) {
	if err := n.ensureReady(); err != nil {
		return 0, err
	}
	if p < 0 || p >= len(n.sensParams) {
		return 0, fmt.Errorf("%w: %d", ErrSensIndex, p)
	}
	si, ok := n.integ.(integrator.SensitivityIntegrator)
	if !ok {
		return 0, ErrNoSensitivities
	}
	denom := n.integ.Solution()[k]
	if denom == 0 {
		denom = SmallNumber
	}
	return si.SensitivityCoeff(k, p) / denom, nil
}

// Stats reports the integrator work counters.
func (n *ReactorNet) Stats() integrator.Stats {
	if n.integ == nil {
		return integrator.Stats{}
	}
	return n.integ.Stats()
}
