package acoustic

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Gaussian is a multivariate normal emission density with full covariance.
// The log-density is evaluated through a Cholesky factorisation, so neither
// the determinant nor the inverse of the covariance is formed explicitly.
type Gaussian struct {
	Mean *mat.VecDense
	Cov  *mat.SymDense

	dist *distmv.Normal
	low  mat.TriDense // lower Cholesky factor, used for sampling
}

// NewGaussian builds the density. The covariance must be positive definite.
func NewGaussian(mean *mat.VecDense, cov *mat.SymDense) (*Gaussian, error) {
	dim := mean.Len()
	if cov.SymmetricDim() != dim {
		return nil, fmt.Errorf("%w: mean has %d dims, covariance %d", ErrDimensionMismatch, dim, cov.SymmetricDim())
	}
	mu := make([]float64, dim)
	copy(mu, mean.RawVector().Data)
	dist, ok := distmv.NewNormal(mu, cov, nil)
	if !ok {
		return nil, ErrNotPositiveDefinite
	}
	g := &Gaussian{Mean: mean, Cov: cov, dist: dist}

	var chol mat.Cholesky
	if !chol.Factorize(cov) {
		return nil, ErrNotPositiveDefinite
	}
	chol.LTo(&g.low)
	return g, nil
}

// Dim returns the feature dimension.
func (g *Gaussian) Dim() int { return g.Mean.Len() }

// LogProb computes log N(x; mean, cov). len(x) must equal Dim.
func (g *Gaussian) LogProb(x []float64) float64 {
	return g.dist.LogProb(x)
}

// Sample draws one vector into dst using rng.
func (g *Gaussian) Sample(dst []float64, rng *rand.Rand) {
	dim := g.Dim()
	z := mat.NewVecDense(dim, nil)
	for d := 0; d < dim; d++ {
		z.SetVec(d, rng.NormFloat64())
	}
	x := mat.NewVecDense(dim, dst)
	x.MulVec(&g.low, z)
	x.AddVec(x, g.Mean)
}
