package acoustic

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ieee0824/wordhmm/internal/mathutil"
)

type scaledEngine struct{}

func (scaledEngine) Mode() Mode { return ScaledLinear }

type logEngine struct{}

func (logEngine) Mode() Mode { return LogDomain }

// Forward computes normalised forward variables.
//
//	pred[t][j]  = sum_i alpha[t-1][i] * a(i,j)        (a(entry,j) at t=0)
//	alpha[t][j] = pred[t][j] * exp(logb[t][j] - offset[t]) / c[t]
//
// offset[t] is the largest emission log-likelihood among states reachable at
// t, which keeps the exponentiated emissions in range; log c[t] + offset[t] is
// recorded in Scale[t].
func (scaledEngine) Forward(m *Model, em *Emissions) (*Lattice, error) {
	T := em.Len()
	N := m.topo.Total()
	last := m.topo.NumStates
	exit := m.topo.Exit()
	lat := &Lattice{
		Mode:  ScaledLinear,
		Alpha: mathutil.NewMat(T, N),
		Beta:  mathutil.NewMat(T, N),
		Scale: make([]float64, T),
		norm:  make([]float64, T),
		emit:  mathutil.NewMat(T, N),
	}
	pred := make([]float64, N)

	for t := 0; t < T; t++ {
		for j := 1; j <= last; j++ {
			if t == 0 {
				pred[j] = m.trans.At(m.topo.Entry(), j)
				continue
			}
			sum := 0.0
			for i := 1; i <= last; i++ {
				if a := m.trans.At(i, j); a != 0 {
					sum += lat.Alpha[t-1][i] * a
				}
			}
			pred[j] = sum
		}

		offset := mathutil.LogZero
		for j := 1; j <= last; j++ {
			if pred[j] > 0 && em.LogProb[t][j] > offset {
				offset = em.LogProb[t][j]
			}
		}
		if mathutil.IsLogZero(offset) {
			return nil, fmt.Errorf("frame %d: %w", t, ErrZeroLikelihood)
		}

		row := lat.Alpha[t]
		for j := 1; j <= last; j++ {
			if pred[j] == 0 {
				continue
			}
			b := math.Exp(em.LogProb[t][j] - offset)
			lat.emit[t][j] = b
			row[j] = pred[j] * b
		}
		c := floats.Sum(row)
		if c == 0 {
			return nil, fmt.Errorf("frame %d: %w", t, ErrZeroLikelihood)
		}
		floats.Scale(1/c, row)
		lat.norm[t] = c
		lat.Scale[t] = math.Log(c) + offset
	}

	exitMass := 0.0
	for i := 1; i <= last; i++ {
		exitMass += lat.Alpha[T-1][i] * m.trans.At(i, exit)
	}
	if exitMass == 0 {
		return nil, fmt.Errorf("%w: exit state unreachable after %d frames", ErrZeroLikelihood, T)
	}
	lat.exitNorm = exitMass
	lat.ExitScale = math.Log(exitMass)
	lat.LogLikelihood = floats.Sum(lat.Scale) + lat.ExitScale
	return lat, nil
}

// Forward computes the forward variable alpha[t][j] in log domain.
// alpha[t][j] = log P(o_1..o_t, q_t=j | model)
// Only emitting states (indices 1..NumStates) have valid values.
func (logEngine) Forward(m *Model, em *Emissions) (*Lattice, error) {
	T := em.Len()
	N := m.topo.Total()
	last := m.topo.NumStates
	exit := m.topo.Exit()
	lat := &Lattice{
		Mode:  LogDomain,
		Alpha: mathutil.NewMatFill(T, N, mathutil.LogZero),
		Beta:  mathutil.NewMatFill(T, N, mathutil.LogZero),
	}
	alpha := lat.Alpha

	// t=0: entry state (0) transitions to emitting states
	for j := 1; j <= last; j++ {
		if lt := m.logTrans[m.topo.Entry()][j]; !mathutil.IsLogZero(lt) {
			alpha[0][j] = lt + em.LogProb[0][j]
		}
	}

	for t := 1; t < T; t++ {
		for j := 1; j <= last; j++ {
			logSum := mathutil.LogZero
			for i := 1; i <= last; i++ {
				lt := m.logTrans[i][j]
				if mathutil.IsLogZero(lt) || mathutil.IsLogZero(alpha[t-1][i]) {
					continue
				}
				logSum = mathutil.LogAdd(logSum, alpha[t-1][i]+lt)
			}
			if !mathutil.IsLogZero(logSum) {
				alpha[t][j] = logSum + em.LogProb[t][j]
			}
		}
	}

	// P(O|λ) includes the move into the exit state after the last frame.
	ll := mathutil.LogZero
	for i := 1; i <= last; i++ {
		lt := m.logTrans[i][exit]
		if mathutil.IsLogZero(lt) || mathutil.IsLogZero(alpha[T-1][i]) {
			continue
		}
		ll = mathutil.LogAdd(ll, alpha[T-1][i]+lt)
	}
	if mathutil.IsLogZero(ll) {
		return nil, fmt.Errorf("%w: exit state unreachable after %d frames", ErrZeroLikelihood, T)
	}
	lat.LogLikelihood = ll
	return lat, nil
}
