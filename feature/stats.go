package feature

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// GlobalStats pools every frame of seqs and returns the per-dimension mean
// and the full sample covariance. These seed a flat-start model and set its
// variance floor.
func GlobalStats(seqs []Sequence) ([]float64, *mat.SymDense, error) {
	n, dim := 0, 0
	for i, seq := range seqs {
		for t, frame := range seq {
			if dim == 0 {
				dim = len(frame)
			} else if len(frame) != dim {
				return nil, nil, fmt.Errorf("%w: sequence %d frame %d has %d dims, want %d", ErrRaggedFrame, i, t, len(frame), dim)
			}
			n++
		}
	}
	if n < 2 || dim == 0 {
		return nil, nil, fmt.Errorf("global statistics need at least 2 frames, got %d", n)
	}

	data := mat.NewDense(n, dim, nil)
	r := 0
	for _, seq := range seqs {
		for _, frame := range seq {
			data.SetRow(r, frame)
			r++
		}
	}

	mean := make([]float64, dim)
	col := make([]float64, n)
	for d := range mean {
		mean[d] = stat.Mean(mat.Col(col, d, data), nil)
	}
	cov := mat.NewSymDense(dim, nil)
	stat.CovarianceMatrix(cov, data, nil)
	return mean, cov, nil
}
