package acoustic

import (
	"fmt"

	"github.com/ieee0824/wordhmm/internal/mathutil"
)

// Emissions holds emission log-likelihoods for one observation sequence.
// LogProb[t][s] = log P(obs[t] | state s); entry and exit columns hold
// LogZero and are never read by the recursions.
type Emissions struct {
	LogProb mathutil.Mat
}

// Len returns the number of frames.
func (e *Emissions) Len() int { return len(e.LogProb) }

// Emissions evaluates every emitting state on every frame of obs.
// Iterates state-outer, frame-inner so each state's factorisation stays hot.
func (m *Model) Emissions(obs [][]float64) (*Emissions, error) {
	if err := m.checkObservations(obs); err != nil {
		return nil, err
	}
	em := &Emissions{LogProb: mathutil.NewMatFill(len(obs), m.topo.Total(), mathutil.LogZero)}
	for s := 1; s <= m.topo.NumStates; s++ {
		g := m.states[s]
		for t, o := range obs {
			em.LogProb[t][s] = g.LogProb(o)
		}
	}
	return em, nil
}

func (m *Model) checkObservations(obs [][]float64) error {
	if len(obs) == 0 {
		return ErrEmptySequence
	}
	for t, o := range obs {
		if len(o) != m.dim {
			return fmt.Errorf("%w: frame %d has %d dims, model has %d", ErrDimensionMismatch, t, len(o), m.dim)
		}
	}
	return nil
}
