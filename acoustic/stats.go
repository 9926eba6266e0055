package acoustic

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ieee0824/wordhmm/internal/mathutil"
)

// Stats accumulates the sufficient statistics of one Baum-Welch iteration
// over any number of sequences scored against the same model snapshot.
// A fresh Stats from NewStats is the identity of Combine, so per-sequence
// results can be reduced in any grouping.
type Stats struct {
	src  *Model
	topo Topology
	dim  int

	// Occupancy[i] = sum over sequences of sum_{t<T-1} gamma[t][i].
	Occupancy []float64
	// Transitions[i][j] = sum over sequences of sum_t xi[t][i][j], plus the
	// final move into the exit state, gamma[T-1][i] * [i may exit].
	Transitions mathutil.Mat
	// Weight[i] = sum over sequences of sum_t gamma[t][i] over all frames.
	Weight []float64
	// Sum[i] = sum gamma[t][i] * (x_t - shift_i).
	Sum []*mat.VecDense
	// Scatter[i] = sum gamma[t][i] * (x_t - shift_i)(x_t - shift_i)^T.
	Scatter []*mat.Dense

	// LogLikelihood is the total log-likelihood of the accumulated sequences.
	LogLikelihood float64
	// Sequences counts accumulated sequences.
	Sequences int
	// Skipped holds batch indices of sequences with zero likelihood.
	Skipped []int

	// shift[i] is the model mean of state i; accumulating around it keeps the
	// covariance update free of large-mean cancellation.
	shift []*mat.VecDense
	diff  *mat.VecDense
}

// NewStats returns empty statistics for sequences scored against m.
func NewStats(m *Model) *Stats {
	n := m.topo.Total()
	s := &Stats{
		src:         m,
		topo:        m.topo,
		dim:         m.dim,
		Occupancy:   make([]float64, n),
		Transitions: mathutil.NewMat(n, n),
		Weight:      make([]float64, n),
		Sum:         make([]*mat.VecDense, n),
		Scatter:     make([]*mat.Dense, n),
		shift:       m.means,
		diff:        mat.NewVecDense(m.dim, nil),
	}
	for i := 1; i <= m.topo.NumStates; i++ {
		s.Sum[i] = mat.NewVecDense(m.dim, nil)
		s.Scatter[i] = mat.NewDense(m.dim, m.dim, nil)
	}
	return s
}

// Add accumulates one sequence and its posteriors.
func (s *Stats) Add(obs [][]float64, post *Posteriors) error {
	T := len(obs)
	n := s.topo.Total()
	if T == 0 {
		return ErrEmptySequence
	}
	if len(post.Gamma) != T || len(post.Xi) != T-1 {
		return fmt.Errorf("%w: %d frames with gamma %d and xi %d", ErrDimensionMismatch, T, len(post.Gamma), len(post.Xi))
	}
	last := s.topo.NumStates

	for t := 0; t < T; t++ {
		if len(obs[t]) != s.dim {
			return fmt.Errorf("%w: frame %d has %d dims, want %d", ErrDimensionMismatch, t, len(obs[t]), s.dim)
		}
		if len(post.Gamma[t]) != n {
			return fmt.Errorf("%w: gamma row %d has %d states, want %d", ErrDimensionMismatch, t, len(post.Gamma[t]), n)
		}
		x := mat.NewVecDense(s.dim, obs[t])
		for i := 1; i <= last; i++ {
			g := post.Gamma[t][i]
			if g == 0 {
				continue
			}
			if t < T-1 {
				s.Occupancy[i] += g
			}
			s.Weight[i] += g
			s.diff.SubVec(x, s.shift[i])
			s.Sum[i].AddScaledVec(s.Sum[i], g, s.diff)
			s.Scatter[i].RankOne(s.Scatter[i], g, s.diff, s.diff)
		}
	}

	for t := 0; t < T-1; t++ {
		for i := 1; i <= last; i++ {
			row := s.Transitions[i]
			for j := 1; j <= last; j++ {
				row[j] += post.Xi[t][i][j]
			}
		}
	}
	// The path must leave through the exit state after the last frame, so
	// every state that can exit does so with its final occupancy.
	exit := s.topo.Exit()
	for i := 1; i <= last; i++ {
		if s.topo.Allowed(i, exit) {
			s.Transitions[i][exit] += post.Gamma[T-1][i]
		}
	}

	s.LogLikelihood += post.LogLikelihood
	s.Sequences++
	return nil
}

// Combine adds o into s. Both must come from the same model snapshot, since
// the moments are taken around that snapshot's means.
func (s *Stats) Combine(o *Stats) error {
	if s.src != o.src {
		return fmt.Errorf("%w: cannot combine statistics of different model snapshots", ErrDimensionMismatch)
	}
	n := s.topo.Total()
	for i := 0; i < n; i++ {
		s.Occupancy[i] += o.Occupancy[i]
		s.Weight[i] += o.Weight[i]
		for j := 0; j < n; j++ {
			s.Transitions[i][j] += o.Transitions[i][j]
		}
		if s.Sum[i] != nil {
			s.Sum[i].AddVec(s.Sum[i], o.Sum[i])
			s.Scatter[i].Add(s.Scatter[i], o.Scatter[i])
		}
	}
	s.LogLikelihood += o.LogLikelihood
	s.Sequences += o.Sequences
	s.Skipped = append(s.Skipped, o.Skipped...)
	return nil
}
