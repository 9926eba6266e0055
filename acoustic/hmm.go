package acoustic

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ieee0824/wordhmm/internal/mathutil"
)

// DefaultSelfLoop is the initial self-transition probability of emitting states.
const DefaultSelfLoop = 0.5

// Tolerances used when checking parameter validity.
const (
	RowSumTolerance = 1e-10
	EigenTolerance  = 1e-10
)

// Model is an immutable snapshot of the parameters of a left-to-right word HMM
// with full-covariance Gaussian emissions. Training never mutates a Model; each
// M-step produces a new snapshot with an incremented Version, so concurrent
// readers of one iteration always see a consistent parameter set.
type Model struct {
	topo     Topology
	dim      int
	varFloor float64
	version  int

	trans    *mat.Dense      // [Total][Total] linear transition probabilities
	logTrans mathutil.Mat    // log of trans, LogZero where trans is 0
	means    []*mat.VecDense // [Total], zero for entry/exit
	covs     []*mat.SymDense // [Total], zero for entry/exit
	states   []*Gaussian     // [Total], nil for entry/exit
}

// NewModel validates and copies the given parameters into a new snapshot.
// means and covs are indexed by state (length topo.Total()); the entry and
// exit entries may be nil and are stored as zeros.
func NewModel(topo Topology, trans mat.Matrix, means []*mat.VecDense, covs []*mat.SymDense, varFloor float64) (*Model, error) {
	n := topo.Total()
	if len(means) != n || len(covs) != n {
		return nil, fmt.Errorf("%w: got %d means and %d covariances for %d states", ErrDimensionMismatch, len(means), len(covs), n)
	}
	if means[1] == nil {
		return nil, fmt.Errorf("%w: state 1 has no mean", ErrInvalidModel)
	}
	dim := means[1].Len()
	if dim < 1 {
		return nil, fmt.Errorf("%w: feature dimension must be positive", ErrInvalidModel)
	}
	if varFloor < 0 || math.IsNaN(varFloor) {
		return nil, fmt.Errorf("%w: variance floor %g", ErrInvalidModel, varFloor)
	}
	if err := topo.CheckTransitions(trans, RowSumTolerance); err != nil {
		return nil, err
	}

	m := &Model{
		topo:     topo,
		dim:      dim,
		varFloor: varFloor,
		trans:    mat.DenseCopyOf(trans),
		logTrans: mathutil.NewMat(n, n),
		means:    make([]*mat.VecDense, n),
		covs:     make([]*mat.SymDense, n),
		states:   make([]*Gaussian, n),
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m.logTrans[i][j] = mathutil.SafeLog(m.trans.At(i, j))
		}
	}

	for s := 0; s < n; s++ {
		if !topo.IsEmitting(s) {
			if err := checkZero(means[s], covs[s]); err != nil {
				return nil, &StateError{State: s, Err: err}
			}
			m.means[s] = mat.NewVecDense(dim, nil)
			m.covs[s] = mat.NewSymDense(dim, nil)
			continue
		}
		if means[s] == nil || covs[s] == nil {
			return nil, &StateError{State: s, Err: fmt.Errorf("%w: missing parameters", ErrInvalidModel)}
		}
		if means[s].Len() != dim || covs[s].SymmetricDim() != dim {
			return nil, &StateError{State: s, Err: fmt.Errorf("%w: want dimension %d", ErrDimensionMismatch, dim)}
		}
		mean := mat.VecDenseCopyOf(means[s])
		cov := mat.NewSymDense(dim, nil)
		cov.CopySym(covs[s])
		if err := checkEmission(mean, cov, varFloor); err != nil {
			return nil, &StateError{State: s, Err: err}
		}
		g, err := NewGaussian(mean, cov)
		if err != nil {
			return nil, &StateError{State: s, Err: err}
		}
		m.means[s], m.covs[s], m.states[s] = mean, cov, g
	}
	return m, nil
}

// Seed initialises every emitting state with the same global mean and
// covariance, the usual flat start for a left-to-right model. The variance
// floor is varFloorFactor times the mean of the global covariance diagonal.
func Seed(topo Topology, mean []float64, cov mat.Symmetric, varFloorFactor float64) (*Model, error) {
	dim := len(mean)
	if cov.SymmetricDim() != dim {
		return nil, fmt.Errorf("%w: mean has %d dims, covariance %d", ErrDimensionMismatch, dim, cov.SymmetricDim())
	}
	floor := VarianceFloor(cov, varFloorFactor)
	c := mat.NewSymDense(dim, nil)
	c.CopySym(cov)
	c, err := conditionCovariance(c, floor)
	if err != nil {
		return nil, err
	}

	n := topo.Total()
	means := make([]*mat.VecDense, n)
	covs := make([]*mat.SymDense, n)
	for s := 1; s <= topo.NumStates; s++ {
		means[s] = mat.NewVecDense(dim, append([]float64(nil), mean...))
		covs[s] = c
	}
	return NewModel(topo, topo.Transitions(DefaultSelfLoop), means, covs, floor)
}

// VarianceFloor returns factor * mean(diag(cov)).
func VarianceFloor(cov mat.Symmetric, factor float64) float64 {
	dim := cov.SymmetricDim()
	if dim == 0 {
		return 0
	}
	sum := 0.0
	for d := 0; d < dim; d++ {
		sum += cov.At(d, d)
	}
	return factor * sum / float64(dim)
}

// Topology returns the state graph.
func (m *Model) Topology() Topology { return m.topo }

// Dim returns the feature dimension.
func (m *Model) Dim() int { return m.dim }

// NumStates returns the number of emitting states.
func (m *Model) NumStates() int { return m.topo.NumStates }

// VarFloor returns the variance floor applied to covariance diagonals.
func (m *Model) VarFloor() float64 { return m.varFloor }

// Version counts the M-steps that produced this snapshot from its seed.
func (m *Model) Version() int { return m.version }

// Trans returns P(j | i).
func (m *Model) Trans(i, j int) float64 { return m.trans.At(i, j) }

// LogTrans returns log P(j | i), LogZero for structurally impossible moves.
func (m *Model) LogTrans(i, j int) float64 { return m.logTrans[i][j] }

// Transitions returns a copy of the transition matrix.
func (m *Model) Transitions() *mat.Dense { return mat.DenseCopyOf(m.trans) }

// Mean returns a copy of the mean of state s.
func (m *Model) Mean(s int) *mat.VecDense { return mat.VecDenseCopyOf(m.means[s]) }

// Cov returns a copy of the covariance of state s.
func (m *Model) Cov(s int) *mat.SymDense {
	c := mat.NewSymDense(m.dim, nil)
	c.CopySym(m.covs[s])
	return c
}

// State returns the emission density of state s, nil for entry and exit.
func (m *Model) State(s int) *Gaussian { return m.states[s] }

// LogLikelihood computes log P(obs | state) for an emitting state. Entry,
// exit and frames of the wrong dimension score LogZero.
func (m *Model) LogLikelihood(s int, obs []float64) float64 {
	if !m.topo.IsEmitting(s) || len(obs) != m.dim {
		return mathutil.LogZero
	}
	return m.states[s].LogProb(obs)
}

// Validate re-checks every structural and statistical constraint.
func (m *Model) Validate() error {
	if err := m.topo.CheckTransitions(m.trans, RowSumTolerance); err != nil {
		return err
	}
	for s := 0; s < m.topo.Total(); s++ {
		var err error
		if m.topo.IsEmitting(s) {
			err = checkEmission(m.means[s], m.covs[s], m.varFloor)
		} else {
			err = checkZero(m.means[s], m.covs[s])
		}
		if err != nil {
			return &StateError{State: s, Err: err}
		}
	}
	return nil
}

func (m *Model) withVersion(v int) *Model {
	m.version = v
	return m
}

func checkZero(mean *mat.VecDense, cov *mat.SymDense) error {
	if mean != nil {
		for d := 0; d < mean.Len(); d++ {
			if mean.AtVec(d) != 0 {
				return fmt.Errorf("%w: non-emitting state has non-zero mean", ErrInvalidModel)
			}
		}
	}
	if cov != nil {
		n := cov.SymmetricDim()
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				if cov.At(i, j) != 0 {
					return fmt.Errorf("%w: non-emitting state has non-zero covariance", ErrInvalidModel)
				}
			}
		}
	}
	return nil
}

func checkEmission(mean *mat.VecDense, cov *mat.SymDense, floor float64) error {
	for d := 0; d < mean.Len(); d++ {
		if v := mean.AtVec(d); math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: mean[%d] = %g", ErrInvalidModel, d, v)
		}
	}
	dim := cov.SymmetricDim()
	for d := 0; d < dim; d++ {
		if v := cov.At(d, d); !(v >= floor) {
			return fmt.Errorf("%w: variance[%d] = %g below floor %g", ErrInvalidModel, d, v, floor)
		}
	}
	var es mat.EigenSym
	if !es.Factorize(cov, false) {
		return fmt.Errorf("%w: eigen decomposition failed", ErrNotPositiveDefinite)
	}
	for _, ev := range es.Values(nil) {
		if ev < -EigenTolerance {
			return fmt.Errorf("%w: eigenvalue %g", ErrNotPositiveDefinite, ev)
		}
	}
	return nil
}
