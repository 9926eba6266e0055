package acoustic

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"
	"gonum.org/v1/gonum/mat"
)

// minOccupancy is the posterior mass below which a state is treated as unseen.
const minOccupancy = 1e-300

// maxJitterSteps bounds how many times identity jitter is grown while
// repairing a covariance.
const maxJitterSteps = 12

// UpdateTransitions re-estimates the emitting rows of the transition matrix
// from accumulated xi counts: A[i][j] = Xi[i][j] / sum_j' Xi[i][j']. Entry and
// exit rows are reset to their structural values. A state without transition
// mass keeps its previous row and is reported as a *StateError.
func UpdateTransitions(m *Model, s *Stats) (*mat.Dense, error) {
	topo := m.topo
	a := topo.Transitions(0)
	var errs *multierror.Error

	for i := 1; i <= topo.NumStates; i++ {
		denom := 0.0
		for j := 0; j < topo.Total(); j++ {
			if topo.Allowed(i, j) {
				denom += s.Transitions[i][j]
			}
		}
		if !(denom > minOccupancy) {
			errs = multierror.Append(errs, &StateError{State: i, Err: ErrZeroOccupancy})
			a.Set(i, i, m.trans.At(i, i))
			a.Set(i, i+1, m.trans.At(i, i+1))
			continue
		}
		self := s.Transitions[i][i] / denom
		a.Set(i, i, self)
		a.Set(i, i+1, 1-self)
	}
	if err := topo.CheckTransitions(a, RowSumTolerance); err != nil {
		return nil, fmt.Errorf("transition update: %w", err)
	}
	return a, errs.ErrorOrNil()
}

// UpdateEmissions re-estimates the Gaussian of every emitting state:
//
//	mean = sum_t gamma[t][i] x_t / W_i
//	cov  = sum_t gamma[t][i] (x_t - mean)(x_t - mean)^T / W_i
//
// The covariance is symmetrised, its diagonal raised to the model's variance
// floor, and identity jitter added if it is still not positive definite.
// States that cannot be re-estimated keep their previous parameters and are
// reported as *StateError values. Entry and exit stay zero.
func UpdateEmissions(m *Model, s *Stats) ([]*mat.VecDense, []*mat.SymDense, error) {
	n := m.topo.Total()
	dim := m.dim
	means := make([]*mat.VecDense, n)
	covs := make([]*mat.SymDense, n)
	var errs *multierror.Error

	for i := 1; i <= m.topo.NumStates; i++ {
		w := s.Weight[i]
		if !(w > minOccupancy) {
			errs = multierror.Append(errs, &StateError{State: i, Err: ErrZeroOccupancy})
			means[i], covs[i] = m.means[i], m.covs[i]
			continue
		}

		// Shifted moments: d = E[x - shift], cov = E[(x-shift)(x-shift)^T] - d d^T.
		d := mat.NewVecDense(dim, nil)
		d.ScaleVec(1/w, s.Sum[i])
		raw := mat.NewDense(dim, dim, nil)
		raw.Scale(1/w, s.Scatter[i])
		raw.RankOne(raw, -1, d, d)

		mean := mat.NewVecDense(dim, nil)
		mean.AddVec(s.shift[i], d)
		if !finite(mean.RawVector().Data) {
			errs = multierror.Append(errs, &StateError{State: i, Err: fmt.Errorf("%w: non-finite mean", ErrInvalidModel)})
			means[i], covs[i] = m.means[i], m.covs[i]
			continue
		}

		cov, err := conditionCovariance(symmetrize(raw), m.varFloor)
		if err != nil {
			errs = multierror.Append(errs, &StateError{State: i, Err: err})
			means[i], covs[i] = m.means[i], m.covs[i]
			continue
		}
		means[i], covs[i] = mean, cov
	}
	return means, covs, errs.ErrorOrNil()
}

// Reestimate runs the M-step and returns the next parameter snapshot. A
// non-nil model is always usable; the accompanying error, if any, lists the
// states that kept their previous parameters. A nil model means the update
// itself failed.
func Reestimate(m *Model, s *Stats) (*Model, error) {
	if s.src != m {
		return nil, fmt.Errorf("%w: statistics do not belong to this model snapshot", ErrDimensionMismatch)
	}
	var errs *multierror.Error

	trans, err := UpdateTransitions(m, s)
	if trans == nil {
		return nil, err
	}
	errs = multierror.Append(errs, err)

	means, covs, err := UpdateEmissions(m, s)
	errs = multierror.Append(errs, err)

	next, err := NewModel(m.topo, trans, means, covs, m.varFloor)
	if err != nil {
		return nil, fmt.Errorf("m-step: %w", err)
	}
	return next.withVersion(m.version + 1), errs.ErrorOrNil()
}

// symmetrize returns (C + C^T) / 2.
func symmetrize(c *mat.Dense) *mat.SymDense {
	n, _ := c.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(c.At(i, j)+c.At(j, i)))
		}
	}
	return sym
}

// conditionCovariance raises every diagonal entry below floor to floor and,
// if the result is still not positive definite, adds a growing multiple of
// the identity until a Cholesky factorisation succeeds.
func conditionCovariance(c *mat.SymDense, floor float64) (*mat.SymDense, error) {
	n := c.SymmetricDim()
	for d := 0; d < n; d++ {
		if v := c.At(d, d); !(v >= floor) {
			c.SetSym(d, d, floor)
		}
	}
	var chol mat.Cholesky
	if chol.Factorize(c) {
		return c, nil
	}

	jitter := floor * 1e-6
	if jitter <= 0 {
		jitter = 1e-10
	}
	for step := 0; step < maxJitterSteps; step++ {
		for d := 0; d < n; d++ {
			c.SetSym(d, d, c.At(d, d)+jitter)
		}
		if chol.Factorize(c) {
			return c, nil
		}
		jitter *= 10
	}
	return nil, ErrNotPositiveDefinite
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
