package reactor

import "math"

// JacEntry is one nonzero of a sparse Jacobian.
type JacEntry struct {
	Row, Col int
	Value    float64
}

// SparseJacobian is a triplet-form sparse matrix produced by the
// finite-difference Jacobian routines.
type SparseJacobian struct {
	N       int
	Entries []JacEntry
}

// stateEvaluator is the slice of the reactor contract needed to build a
// finite-difference Jacobian.
type stateEvaluator interface {
	NEq() int
	GetState(y []float64) error
	UpdateState(y []float64) error
	Eval(time float64, lhs, rhs []float64) error
}

// finiteDifferenceJacobian perturbs one state component at a time by
// max(|y_j|, 1000*atol)*sqrt(eps) and records entries whose ydot changed,
// plus the diagonal. The reactor is left at its pre-call state.
func finiteDifferenceJacobian(r stateEvaluator, time, atol float64) (*SparseJacobian, error) {
	n := r.NEq()
	y := make([]float64, n)
	if err := r.GetState(y); err != nil {
		return nil, err
	}

	yp := make([]float64, n)
	lhsCur := make([]float64, n)
	rhsCur := make([]float64, n)
	lhsPert := make([]float64, n)
	rhsPert := make([]float64, n)

	fill(lhsCur, 1)
	fill(rhsCur, 0)
	if err := r.UpdateState(y); err != nil {
		return nil, err
	}
	if err := r.Eval(time, lhsCur, rhsCur); err != nil {
		return nil, err
	}

	relPerturb := math.Sqrt(machEps)
	jac := &SparseJacobian{N: n}

	for j := 0; j < n; j++ {
		copy(yp, y)
		dy := math.Max(math.Abs(y[j]), 1000*atol) * relPerturb
		yp[j] += dy

		if err := r.UpdateState(yp); err != nil {
			return nil, err
		}
		fill(lhsPert, 1)
		fill(rhsPert, 0)
		if err := r.Eval(time, lhsPert, rhsPert); err != nil {
			return nil, err
		}

		for i := 0; i < n; i++ {
			ydotPert := rhsPert[i] / lhsPert[i]
			ydotCur := rhsCur[i] / lhsCur[i]
			if ydotPert != ydotCur || i == j {
				jac.Entries = append(jac.Entries, JacEntry{
					Row: i, Col: j, Value: (ydotPert - ydotCur) / dy,
				})
			}
		}
	}
	if err := r.UpdateState(y); err != nil {
		return nil, err
	}
	return jac, nil
}

const machEps = 2.220446049250313e-16

func fill(v []float64, x float64) {
	for i := range v {
		v[i] = x
	}
}
