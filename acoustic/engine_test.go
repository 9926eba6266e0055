package acoustic

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/ieee0824/wordhmm/internal/mathutil"
)

var modes = []Mode{ScaledLinear, LogDomain}

func TestParseMode(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Mode
	}{
		{"scaled", ScaledLinear},
		{"Linear", ScaledLinear},
		{"log", LogDomain},
		{" log-domain ", LogDomain},
	} {
		got, err := ParseMode(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseMode("cubic"); err == nil {
		t.Error("ParseMode(cubic) succeeded")
	}
}

func TestEmissions(t *testing.T) {
	m := separatedModel(t)
	obs := [][]float64{{0}, {3}, {6}}
	em, err := m.Emissions(obs)
	if err != nil {
		t.Fatal(err)
	}
	exit := m.Topology().Exit()
	for f := range obs {
		if !mathutil.IsLogZero(em.LogProb[f][0]) || !mathutil.IsLogZero(em.LogProb[f][exit]) {
			t.Errorf("frame %d: non-emitting states scored", f)
		}
		// Frame f sits on the mean of state f+1.
		for s := 1; s <= 3; s++ {
			if s != f+1 && em.LogProb[f][s] >= em.LogProb[f][f+1] {
				t.Errorf("frame %d: state %d scored %f >= own state %f", f, s, em.LogProb[f][s], em.LogProb[f][f+1])
			}
		}
	}
}

func TestEmissions_DimensionMismatch(t *testing.T) {
	m := separatedModel(t)
	if _, err := m.Emissions([][]float64{{0}, {1, 2}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("error = %v, want ErrDimensionMismatch", err)
	}
	if _, err := m.Emissions(nil); !errors.Is(err, ErrEmptySequence) {
		t.Errorf("error = %v, want ErrEmptySequence", err)
	}
	for _, mode := range modes {
		if _, err := Expect(NewEngine(mode), m, [][]float64{{0, 0}}); !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("%v: Expect error = %v, want ErrDimensionMismatch", mode, err)
		}
	}
}

func TestForward_TooShortSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	seqs := synthBatch(rng, 1, 6, 2, 20)
	m := seedModel(t, 6, seqs)
	short := seqs[0][:5] // 6 emitting states need at least 6 frames
	for _, mode := range modes {
		_, err := LogLikelihood(NewEngine(mode), m, short)
		if !errors.Is(err, ErrZeroLikelihood) {
			t.Errorf("%v: error = %v, want ErrZeroLikelihood", mode, err)
		}
	}
	for _, mode := range modes {
		if _, err := LogLikelihood(NewEngine(mode), m, seqs[0][:6]); err != nil {
			t.Errorf("%v: minimal-length sequence rejected: %v", mode, err)
		}
	}
}

func TestForwardBackward_AgreeAtEveryFrame(t *testing.T) {
	m := separatedModel(t)
	obs := [][]float64{{0.0}, {0.5}, {3.0}, {3.5}, {6.0}, {6.5}}

	em, _ := m.Emissions(obs)
	lat, err := logEngine{}.Forward(m, em)
	if err != nil {
		t.Fatal(err)
	}
	logEngine{}.Backward(m, em, lat)

	// Σ_j α(t,j)+β(t,j) in log space is P(O|λ) at every t.
	for f := range obs {
		terms := make([]float64, 0, m.NumStates())
		for j := 1; j <= m.NumStates(); j++ {
			terms = append(terms, lat.Alpha[f][j]+lat.Beta[f][j])
		}
		if ll := mathutil.LogSumExp(terms); math.Abs(ll-lat.LogLikelihood) > 1e-9 {
			t.Errorf("frame %d: LL = %f, want %f", f, ll, lat.LogLikelihood)
		}
	}
}

func TestScaledAndLogModesAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	seqs := synthBatch(rng, 3, 5, 3, 200)
	m := seedModel(t, 5, seqs)
	// Move away from the flat start so states differ.
	stats, err := Accumulate(context.Background(), NewEngine(LogDomain), m, seqs, 1)
	if err != nil {
		t.Fatal(err)
	}
	m, err = Reestimate(m, stats)
	if err != nil {
		t.Fatal(err)
	}

	for i, obs := range seqs {
		scaled, err := LogLikelihood(NewEngine(ScaledLinear), m, obs)
		if err != nil {
			t.Fatal(err)
		}
		logd, err := LogLikelihood(NewEngine(LogDomain), m, obs)
		if err != nil {
			t.Fatal(err)
		}
		if rel := math.Abs(scaled-logd) / math.Max(math.Abs(logd), 1); rel > 1e-6 {
			t.Errorf("seq %d: scaled LL %f, log LL %f (rel diff %g)", i, scaled, logd, rel)
		}

		ps, _ := Expect(NewEngine(ScaledLinear), m, obs)
		pl, _ := Expect(NewEngine(LogDomain), m, obs)
		for f := range ps.Gamma {
			for s := range ps.Gamma[f] {
				if d := math.Abs(ps.Gamma[f][s] - pl.Gamma[f][s]); d > 1e-6 {
					t.Fatalf("seq %d gamma[%d][%d]: scaled %g, log %g", i, f, s, ps.Gamma[f][s], pl.Gamma[f][s])
				}
			}
		}
	}
}

func TestPosteriors_Consistency(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	seqs := synthBatch(rng, 2, 4, 2, 40)
	m := seedModel(t, 4, seqs)
	n := m.Topology().Total()

	for _, mode := range modes {
		post, err := Expect(NewEngine(mode), m, seqs[0])
		if err != nil {
			t.Fatalf("%v: %v", mode, err)
		}
		for f, row := range post.Gamma {
			sum := 0.0
			for _, g := range row {
				sum += g
			}
			if math.Abs(sum-1) > 1e-6 {
				t.Errorf("%v: gamma row %d sums to %f", mode, f, sum)
			}
			if row[0] != 0 || row[n-1] != 0 {
				t.Errorf("%v: gamma row %d has entry/exit mass", mode, f)
			}
		}
		for f, xi := range post.Xi {
			for i := 0; i < n; i++ {
				sum := 0.0
				for j := 0; j < n; j++ {
					if xi[i][j] != 0 && !m.Topology().Allowed(i, j) {
						t.Errorf("%v: xi[%d][%d][%d] = %g on a forbidden transition", mode, f, i, j, xi[i][j])
					}
					sum += xi[i][j]
				}
				if math.Abs(sum-post.Gamma[f][i]) > 1e-6 {
					t.Errorf("%v: sum_j xi[%d][%d] = %f, gamma = %f", mode, f, i, sum, post.Gamma[f][i])
				}
			}
		}
		// The model must start in state 1 and finish in the last emitting state.
		if math.Abs(post.Gamma[0][1]-1) > 1e-9 {
			t.Errorf("%v: gamma[0][1] = %f, want 1", mode, post.Gamma[0][1])
		}
		if last := len(post.Gamma) - 1; math.Abs(post.Gamma[last][m.NumStates()]-1) > 1e-9 {
			t.Errorf("%v: final gamma = %f, want 1", mode, post.Gamma[last][m.NumStates()])
		}
	}
}

func TestScaledForward_LongSequenceNoUnderflow(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	seqs := synthBatch(rng, 1, 3, 13, 3000)
	m := seedModel(t, 3, seqs)
	ll, err := LogLikelihood(NewEngine(ScaledLinear), m, seqs[0])
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		t.Fatalf("LL = %f", ll)
	}
	post, err := Expect(NewEngine(ScaledLinear), m, seqs[0])
	if err != nil {
		t.Fatal(err)
	}
	for f, row := range post.Gamma {
		for _, g := range row {
			if math.IsNaN(g) {
				t.Fatalf("gamma row %d has NaN", f)
			}
		}
	}
}
