package acoustic

import (
	"fmt"

	"github.com/ieee0824/wordhmm/internal/mathutil"
)

// Segment is a run of consecutive frames assigned to one emitting state.
type Segment struct {
	State      int
	StartFrame int // inclusive
	EndFrame   int // exclusive
}

// Viterbi finds the most likely emitting-state path for a sequence, entering
// through the entry state and leaving through the exit state after the last
// frame. It returns the path (one state per frame) and its log-probability.
func Viterbi(m *Model, em *Emissions) ([]int, float64, error) {
	T := em.Len()
	if T == 0 {
		return nil, mathutil.LogZero, ErrEmptySequence
	}
	N := m.topo.Total()
	last := m.topo.NumStates
	exit := m.topo.Exit()

	// Viterbi with double-buffered score vectors
	prev := mathutil.NewVecFill(N, mathutil.LogZero)
	curr := mathutil.NewVecFill(N, mathutil.LogZero)

	// Backpointer matrix: bp[t][j] = predecessor state
	bp := make([][]int32, T)
	for t := range bp {
		bp[t] = make([]int32, N)
	}

	for j := 1; j <= last; j++ {
		if lt := m.logTrans[m.topo.Entry()][j]; !mathutil.IsLogZero(lt) {
			prev[j] = lt + em.LogProb[0][j]
		}
	}

	for t := 1; t < T; t++ {
		mathutil.FillVec(curr, mathutil.LogZero)
		for j := 1; j <= last; j++ {
			bestScore := mathutil.LogZero
			bestPrev := int32(0)
			for i := 1; i <= last; i++ {
				lt := m.logTrans[i][j]
				if mathutil.IsLogZero(lt) || mathutil.IsLogZero(prev[i]) {
					continue
				}
				if score := prev[i] + lt; score > bestScore {
					bestScore = score
					bestPrev = int32(i)
				}
			}
			if !mathutil.IsLogZero(bestScore) {
				curr[j] = bestScore + em.LogProb[t][j]
			}
			bp[t][j] = bestPrev
		}
		prev, curr = curr, prev
	}

	// Termination: the path must be able to move into the exit state.
	bestJ := -1
	bestScore := mathutil.LogZero
	for i := 1; i <= last; i++ {
		lt := m.logTrans[i][exit]
		if mathutil.IsLogZero(lt) || mathutil.IsLogZero(prev[i]) {
			continue
		}
		if score := prev[i] + lt; score > bestScore {
			bestScore = score
			bestJ = i
		}
	}
	if bestJ < 0 {
		return nil, mathutil.LogZero, fmt.Errorf("viterbi: %w", ErrZeroLikelihood)
	}

	// Backtrace
	path := make([]int, T)
	path[T-1] = bestJ
	for t := T - 1; t > 0; t-- {
		path[t-1] = int(bp[t][path[t]])
	}
	return path, bestScore, nil
}

// Segments collapses a state path into per-state frame spans.
func Segments(path []int) []Segment {
	if len(path) == 0 {
		return nil
	}
	var out []Segment
	start := 0
	for t := 1; t <= len(path); t++ {
		if t == len(path) || path[t] != path[start] {
			out = append(out, Segment{State: path[start], StartFrame: start, EndFrame: t})
			start = t
		}
	}
	return out
}
