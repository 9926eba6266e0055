package acoustic

import (
	"fmt"
	"strings"

	"github.com/ieee0824/wordhmm/internal/mathutil"
)

// Mode selects the arithmetic used by the forward-backward recursions.
type Mode int

const (
	// ScaledLinear keeps linear probabilities renormalised at every frame and
	// records the log scale factors.
	ScaledLinear Mode = iota
	// LogDomain keeps log probabilities combined with log-sum-exp.
	LogDomain
)

func (m Mode) String() string {
	switch m {
	case ScaledLinear:
		return "scaled"
	case LogDomain:
		return "log"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts "scaled" (or "linear") and "log".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scaled", "linear", "scaled-linear":
		return ScaledLinear, nil
	case "log", "log-domain":
		return LogDomain, nil
	}
	return 0, fmt.Errorf("unknown arithmetic mode %q", s)
}

// Lattice holds the forward and backward variables of one sequence, both
// [T][Total]. In ScaledLinear mode each alpha row sums to one and the true
// forward probability is alpha[t][j] * exp(sum(Scale[:t+1])); in LogDomain
// mode Alpha and Beta are plain log probabilities.
type Lattice struct {
	Mode  Mode
	Alpha mathutil.Mat
	Beta  mathutil.Mat

	// Scale[t] is the log normaliser of frame t, including the emission
	// offset subtracted before exponentiating (ScaledLinear only).
	Scale []float64
	// ExitScale is the log normaliser of the final move into the exit state
	// (ScaledLinear only).
	ExitScale float64

	// LogLikelihood is log P(obs | model), including the exit transition.
	LogLikelihood float64

	// scaled-mode working data
	norm     []float64    // linear per-frame normalisers
	exitNorm float64      // linear exit normaliser
	emit     mathutil.Mat // exp(LogProb[t][j] - offset[t])
}

// Len returns the number of frames.
func (l *Lattice) Len() int { return len(l.Alpha) }

// Posteriors holds the E-step result of one sequence.
type Posteriors struct {
	// Gamma[t][i] = P(q_t = i | obs); every row sums to one over the emitting
	// states, entry and exit columns are zero.
	Gamma mathutil.Mat
	// Xi[t][i][j] = P(q_t = i, q_t+1 = j | obs) for t in 0..T-2.
	Xi mathutil.Cube
	// LogLikelihood is log P(obs | model).
	LogLikelihood float64
}

// Engine runs the forward-backward recursions in one arithmetic mode.
// Both implementations satisfy the same contract and agree within
// floating-point tolerance.
type Engine interface {
	Mode() Mode
	// Forward computes the forward variables and the sequence likelihood.
	// It returns ErrZeroLikelihood when no path can produce obs.
	Forward(m *Model, em *Emissions) (*Lattice, error)
	// Backward fills lat.Beta from a lattice produced by Forward.
	Backward(m *Model, em *Emissions, lat *Lattice)
	// Posteriors derives gamma and xi from a complete lattice.
	Posteriors(m *Model, em *Emissions, lat *Lattice) *Posteriors
}

// NewEngine returns the engine for mode. Unknown modes fall back to LogDomain.
func NewEngine(mode Mode) Engine {
	if mode == ScaledLinear {
		return scaledEngine{}
	}
	return logEngine{}
}

// Expect runs the full E-step for one sequence: emissions, forward,
// backward and posteriors.
func Expect(eng Engine, m *Model, obs [][]float64) (*Posteriors, error) {
	em, err := m.Emissions(obs)
	if err != nil {
		return nil, err
	}
	lat, err := eng.Forward(m, em)
	if err != nil {
		return nil, err
	}
	eng.Backward(m, em, lat)
	return eng.Posteriors(m, em, lat), nil
}

// LogLikelihood returns log P(obs | m) using the forward pass only.
func LogLikelihood(eng Engine, m *Model, obs [][]float64) (float64, error) {
	em, err := m.Emissions(obs)
	if err != nil {
		return mathutil.LogZero, err
	}
	lat, err := eng.Forward(m, em)
	if err != nil {
		return mathutil.LogZero, err
	}
	return lat.LogLikelihood, nil
}

// normalizeGamma rescales every row of gamma to sum to one.
func normalizeGamma(gamma mathutil.Mat) {
	for _, row := range gamma {
		sum := 0.0
		for _, v := range row {
			sum += v
		}
		if sum <= 0 {
			continue
		}
		inv := 1 / sum
		for i := range row {
			row[i] *= inv
		}
	}
}
