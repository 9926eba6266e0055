package acoustic

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Topology is the fixed left-to-right state graph of a word model.
// States: [0]=entry (non-emitting), [1..NumStates]=emitting, [NumStates+1]=exit (non-emitting).
// Emitting states may only loop on themselves or advance by one.
type Topology struct {
	NumStates int
}

// NewTopology returns a topology with numStates emitting states.
func NewTopology(numStates int) (Topology, error) {
	if numStates < 1 {
		return Topology{}, fmt.Errorf("%w: need at least one emitting state, got %d", ErrInvalidModel, numStates)
	}
	return Topology{NumStates: numStates}, nil
}

// Total returns the number of states including entry and exit.
func (t Topology) Total() int { return t.NumStates + 2 }

// Entry returns the index of the non-emitting entry state.
func (t Topology) Entry() int { return 0 }

// Exit returns the index of the non-emitting exit state.
func (t Topology) Exit() int { return t.NumStates + 1 }

// IsEmitting returns true if the state index corresponds to an emitting state.
func (t Topology) IsEmitting(s int) bool {
	return s >= 1 && s <= t.NumStates
}

// Allowed reports whether a transition from i to j may carry probability.
func (t Topology) Allowed(i, j int) bool {
	switch {
	case i == t.Entry():
		return j == 1
	case i == t.Exit():
		return j == i
	case t.IsEmitting(i):
		return j == i || j == i+1
	}
	return false
}

// Transitions builds the initial transition matrix. Every emitting state
// keeps selfLoop on itself and advances with 1-selfLoop.
func (t Topology) Transitions(selfLoop float64) *mat.Dense {
	n := t.Total()
	a := mat.NewDense(n, n, nil)
	a.Set(t.Entry(), 1, 1)
	a.Set(t.Exit(), t.Exit(), 1)
	for i := 1; i <= t.NumStates; i++ {
		a.Set(i, i, selfLoop)
		a.Set(i, i+1, 1-selfLoop)
	}
	return a
}

// CheckTransitions verifies the structural zero pattern and row-stochasticity
// of a. Entry and exit rows must match exactly; interior rows must sum to one
// within tol.
func (t Topology) CheckTransitions(a mat.Matrix, tol float64) error {
	n := t.Total()
	if r, c := a.Dims(); r != n || c != n {
		return fmt.Errorf("%w: transition matrix is %dx%d, want %dx%d", ErrDimensionMismatch, r, c, n, n)
	}
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < n; j++ {
			v := a.At(i, j)
			if math.IsNaN(v) || v < 0 || v > 1 {
				return fmt.Errorf("%w: A[%d,%d] = %g is not a probability", ErrInvalidModel, i, j, v)
			}
			if !t.Allowed(i, j) && v != 0 {
				return fmt.Errorf("%w: A[%d,%d] = %g violates left-to-right topology", ErrInvalidModel, i, j, v)
			}
			sum += v
		}
		switch i {
		case t.Entry():
			if a.At(i, 1) != 1 {
				return fmt.Errorf("%w: entry row must be A[0,1] = 1, got %g", ErrInvalidModel, a.At(i, 1))
			}
		case t.Exit():
			if a.At(i, i) != 1 {
				return fmt.Errorf("%w: exit row must be A[%d,%d] = 1, got %g", ErrInvalidModel, i, i, a.At(i, i))
			}
		default:
			if math.Abs(sum-1) > tol {
				return fmt.Errorf("%w: row %d sums to %.15g", ErrInvalidModel, i, sum)
			}
		}
	}
	return nil
}
