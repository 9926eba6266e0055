package acoustic

import (
	"math"

	"github.com/ieee0824/wordhmm/internal/mathutil"
)

// Posteriors computes gamma and xi from a scaled lattice. The scale factors
// cancel against P(O|λ), leaving
//
//	gamma[t][i]  = alpha[t][i] * beta[t][i]
//	xi[t][i][j]  = alpha[t][i] * a(i,j) * b'[t+1][j] * beta[t+1][j] / c[t+1]
func (scaledEngine) Posteriors(m *Model, _ *Emissions, lat *Lattice) *Posteriors {
	T := lat.Len()
	N := m.topo.Total()
	last := m.topo.NumStates
	post := &Posteriors{
		Gamma:         mathutil.NewMat(T, N),
		Xi:            mathutil.NewCube(max(T-1, 0), N, N),
		LogLikelihood: lat.LogLikelihood,
	}
	for t := 0; t < T; t++ {
		for i := 1; i <= last; i++ {
			post.Gamma[t][i] = lat.Alpha[t][i] * lat.Beta[t][i]
		}
	}
	normalizeGamma(post.Gamma)

	for t := 0; t < T-1; t++ {
		inv := 1 / lat.norm[t+1]
		for i := 1; i <= last; i++ {
			if lat.Alpha[t][i] == 0 {
				continue
			}
			for j := 1; j <= last; j++ {
				a := m.trans.At(i, j)
				if a == 0 {
					continue
				}
				post.Xi[t][i][j] = lat.Alpha[t][i] * a * lat.emit[t+1][j] * lat.Beta[t+1][j] * inv
			}
		}
	}
	return post
}

// Posteriors computes gamma and xi from a log-domain lattice: every term is
// assembled as a difference of log sums and exponentiated once.
func (logEngine) Posteriors(m *Model, em *Emissions, lat *Lattice) *Posteriors {
	T := lat.Len()
	N := m.topo.Total()
	last := m.topo.NumStates
	ll := lat.LogLikelihood
	post := &Posteriors{
		Gamma:         mathutil.NewMat(T, N),
		Xi:            mathutil.NewCube(max(T-1, 0), N, N),
		LogLikelihood: ll,
	}
	for t := 0; t < T; t++ {
		for i := 1; i <= last; i++ {
			a, b := lat.Alpha[t][i], lat.Beta[t][i]
			if mathutil.IsLogZero(a) || mathutil.IsLogZero(b) {
				continue
			}
			post.Gamma[t][i] = math.Exp(a + b - ll)
		}
	}
	normalizeGamma(post.Gamma)

	for t := 0; t < T-1; t++ {
		for i := 1; i <= last; i++ {
			a := lat.Alpha[t][i]
			if mathutil.IsLogZero(a) {
				continue
			}
			for j := 1; j <= last; j++ {
				lt := m.logTrans[i][j]
				b := lat.Beta[t+1][j]
				if mathutil.IsLogZero(lt) || mathutil.IsLogZero(b) {
					continue
				}
				post.Xi[t][i][j] = math.Exp(a + lt + em.LogProb[t+1][j] + b - ll)
			}
		}
	}
	return post
}
