// Package sensitivity provides brute-force sensitivity tooling over
// whole reactor simulations: reaction knockouts, multiplier sweeps and
// gradient estimates of a scalar score. It complements the forward
// sensitivities carried by the integrator, which resolve a single
// trajectory; this package answers "which reactions matter" questions
// across many runs.
package sensitivity

import (
	"math"
	"sort"
	"sync"

	"github.com/LostSunset/cantera/network"
)

// Scenario builds a fresh, fully connected reactor network with the
// given reaction-rate multipliers applied (keyed by reaction index).
// Every evaluation runs in its own network so runs never share mutable
// phase state.
type Scenario func(multipliers map[int]float64) (*network.ReactorNet, error)

// Scorer evaluates a finished simulation and returns a score.
type Scorer func(net *network.ReactorNet) float64

// ComponentScorer creates a Scorer returning the final value of the
// named component of reactor i, or NaN if the component is unknown.
func ComponentScorer(component string, i int) Scorer {
	return func(net *network.ReactorNet) float64 {
		k, err := net.GlobalComponentIndex(component, i)
		if err != nil {
			return math.NaN()
		}
		y := make([]float64, net.NEq())
		if err := net.GetState(y); err != nil {
			return math.NaN()
		}
		return y[k]
	}
}

// DiffScorer creates a Scorer returning the difference of two
// components of reactor i.
func DiffScorer(componentA, componentB string, i int) Scorer {
	a := ComponentScorer(componentA, i)
	b := ComponentScorer(componentB, i)
	return func(net *network.ReactorNet) float64 {
		return a(net) - b(net)
	}
}

// Result holds the outcome of a knockout analysis.
type Result struct {
	Baseline float64         // score with all multipliers at one
	Scores   map[int]float64 // score with each reaction disabled
	Impact   map[int]float64 // change from baseline
	Ranking  []RankedParam   // reactions sorted by absolute impact
}

// RankedParam is one reaction and its impact on the score.
type RankedParam struct {
	Reaction int
	Impact   float64
}

// Analyzer runs repeated simulations of one scenario under perturbed
// kinetics.
type Analyzer struct {
	build      Scenario
	nReactions int
	endTime    float64
	scorer     Scorer
}

// NewAnalyzer creates an analyzer over a scenario with the given number
// of candidate reactions.
func NewAnalyzer(build Scenario, nReactions int, scorer Scorer) *Analyzer {
	return &Analyzer{
		build:      build,
		nReactions: nReactions,
		endTime:    1.0,
		scorer:     scorer,
	}
}

// WithEndTime sets the simulated end time of each run.
func (a *Analyzer) WithEndTime(t float64) *Analyzer {
	a.endTime = t
	return a
}

// simulate builds a network with the multipliers applied, advances it to
// the end time and scores it.
func (a *Analyzer) simulate(multipliers map[int]float64) (float64, error) {
	net, err := a.build(multipliers)
	if err != nil {
		return 0, err
	}
	if err := net.Advance(a.endTime); err != nil {
		return 0, err
	}
	return a.scorer(net), nil
}

// AnalyzeReactions measures the impact of disabling each reaction in
// turn.
func (a *Analyzer) AnalyzeReactions() (*Result, error) {
	result := &Result{
		Scores: make(map[int]float64),
		Impact: make(map[int]float64),
	}
	baseline, err := a.simulate(nil)
	if err != nil {
		return nil, err
	}
	result.Baseline = baseline

	for rxn := 0; rxn < a.nReactions; rxn++ {
		score, err := a.simulate(map[int]float64{rxn: 0})
		if err != nil {
			return nil, err
		}
		result.Scores[rxn] = score
		result.Impact[rxn] = score - baseline
	}
	result.Ranking = rankByImpact(result.Impact)
	return result, nil
}

// AnalyzeReactionsParallel is AnalyzeReactions with one goroutine per
// reaction; scenarios must therefore not share mutable state.
func (a *Analyzer) AnalyzeReactionsParallel() (*Result, error) {
	result := &Result{
		Scores: make(map[int]float64),
		Impact: make(map[int]float64),
	}
	baseline, err := a.simulate(nil)
	if err != nil {
		return nil, err
	}
	result.Baseline = baseline

	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error

	for rxn := 0; rxn < a.nReactions; rxn++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			score, err := a.simulate(map[int]float64{r: 0})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			result.Scores[r] = score
			result.Impact[r] = score - baseline
		}(rxn)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	result.Ranking = rankByImpact(result.Impact)
	return result, nil
}

func rankByImpact(impact map[int]float64) []RankedParam {
	ranking := make([]RankedParam, 0, len(impact))
	for rxn, imp := range impact {
		ranking = append(ranking, RankedParam{Reaction: rxn, Impact: imp})
	}
	sort.Slice(ranking, func(i, j int) bool {
		return math.Abs(ranking[i].Impact) > math.Abs(ranking[j].Impact)
	})
	return ranking
}

// SweepResult holds the scores over a multiplier sweep of one reaction.
type SweepResult struct {
	Reaction int
	Values   []float64
	Scores   []float64
	Best     struct {
		Value float64
		Score float64
	}
	Worst struct {
		Value float64
		Score float64
	}
}

// SweepMultiplier scores the scenario at each multiplier value for one
// reaction.
func (a *Analyzer) SweepMultiplier(rxn int, values []float64) (*SweepResult, error) {
	result := &SweepResult{
		Reaction: rxn,
		Values:   values,
		Scores:   make([]float64, len(values)),
	}
	bestScore := math.Inf(-1)
	worstScore := math.Inf(1)
	for i, val := range values {
		score, err := a.simulate(map[int]float64{rxn: val})
		if err != nil {
			return nil, err
		}
		result.Scores[i] = score
		if score > bestScore {
			bestScore = score
			result.Best.Value = val
			result.Best.Score = score
		}
		if score < worstScore {
			worstScore = score
			result.Worst.Value = val
			result.Worst.Score = score
		}
	}
	return result, nil
}

// SweepMultiplierRange sweeps evenly spaced multipliers in [min, max].
func (a *Analyzer) SweepMultiplierRange(rxn int, min, max float64, steps int) (*SweepResult, error) {
	values := make([]float64, steps)
	for i := 0; i < steps; i++ {
		values[i] = min + (max-min)*float64(i)/float64(steps-1)
	}
	return a.SweepMultiplier(rxn, values)
}

// Gradient estimates d(score)/d(multiplier) for one reaction around the
// unperturbed value by central differences.
func (a *Analyzer) Gradient(rxn int, h float64) (float64, error) {
	if h == 0 {
		h = 0.01
	}
	plus, err := a.simulate(map[int]float64{rxn: 1 + h})
	if err != nil {
		return 0, err
	}
	lo := 1 - h
	if lo < 0 {
		lo = 0
	}
	minus, err := a.simulate(map[int]float64{rxn: lo})
	if err != nil {
		return 0, err
	}
	return (plus - minus) / (2 * h), nil
}

// AllGradients computes the multiplier gradient of every reaction.
func (a *Analyzer) AllGradients(h float64) (map[int]float64, error) {
	gradients := make(map[int]float64, a.nReactions)
	for rxn := 0; rxn < a.nReactions; rxn++ {
		g, err := a.Gradient(rxn, h)
		if err != nil {
			return nil, err
		}
		gradients[rxn] = g
	}
	return gradients, nil
}

// AllGradientsParallel computes every gradient concurrently.
func (a *Analyzer) AllGradientsParallel(h float64) (map[int]float64, error) {
	gradients := make(map[int]float64, a.nReactions)
	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error

	for rxn := 0; rxn < a.nReactions; rxn++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			g, err := a.Gradient(r, h)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			gradients[r] = g
		}(rxn)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return gradients, nil
}
