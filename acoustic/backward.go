package acoustic

import "github.com/ieee0824/wordhmm/internal/mathutil"

// Backward computes normalised backward variables matching the forward
// scaling, so that alpha[t][i]*beta[t][i] is the state posterior directly.
//
//	beta[T-1][i] = a(i,exit) / cExit
//	beta[t][i]   = sum_j a(i,j) * b'[t+1][j] * beta[t+1][j] / c[t+1]
func (scaledEngine) Backward(m *Model, _ *Emissions, lat *Lattice) {
	T := lat.Len()
	last := m.topo.NumStates
	exit := m.topo.Exit()
	beta := lat.Beta

	for i := 1; i <= last; i++ {
		beta[T-1][i] = m.trans.At(i, exit) / lat.exitNorm
	}
	for t := T - 2; t >= 0; t-- {
		inv := 1 / lat.norm[t+1]
		for i := 1; i <= last; i++ {
			sum := 0.0
			for j := 1; j <= last; j++ {
				if a := m.trans.At(i, j); a != 0 {
					sum += a * lat.emit[t+1][j] * beta[t+1][j]
				}
			}
			beta[t][i] = sum * inv
		}
	}
}

// Backward computes the backward variable beta[t][j] in log domain.
// beta[t][j] = log P(o_{t+1}..o_T, exit | q_t=j, model)
// At T-1, beta includes the exit transition: beta[T-1][i] = a(i, exit).
func (logEngine) Backward(m *Model, em *Emissions, lat *Lattice) {
	T := lat.Len()
	last := m.topo.NumStates
	exit := m.topo.Exit()
	beta := lat.Beta

	for i := 1; i <= last; i++ {
		beta[T-1][i] = m.logTrans[i][exit]
	}
	for t := T - 2; t >= 0; t-- {
		for i := 1; i <= last; i++ {
			logSum := mathutil.LogZero
			for j := 1; j <= last; j++ {
				lt := m.logTrans[i][j]
				if mathutil.IsLogZero(lt) || mathutil.IsLogZero(beta[t+1][j]) {
					continue
				}
				logSum = mathutil.LogAdd(logSum, lt+em.LogProb[t+1][j]+beta[t+1][j])
			}
			beta[t][i] = logSum
		}
	}
}
