package acoustic

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func checkTransitionStructure(t *testing.T, m *Model) {
	t.Helper()
	topo := m.Topology()
	n := topo.Total()
	if m.Trans(0, 1) != 1.0 {
		t.Errorf("A[0,1] = %v, want exactly 1", m.Trans(0, 1))
	}
	if m.Trans(n-1, n-1) != 1.0 {
		t.Errorf("A[exit,exit] = %v, want exactly 1", m.Trans(n-1, n-1))
	}
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < n; j++ {
			v := m.Trans(i, j)
			if (v != 0) != topo.Allowed(i, j) {
				t.Errorf("A[%d,%d] = %v does not match the left-to-right pattern", i, j, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-10 {
			t.Errorf("row %d sums to %.15f", i, sum)
		}
	}
}

func checkEmissionConstraints(t *testing.T, m *Model) {
	t.Helper()
	n := m.Topology().Total()
	for _, s := range []int{0, n - 1} {
		if mat.Norm(m.Mean(s), 2) != 0 || mat.Norm(m.Cov(s), 1) != 0 {
			t.Errorf("non-emitting state %d has non-zero parameters", s)
		}
	}
	for s := 1; s <= m.NumStates(); s++ {
		mean, cov := m.Mean(s), m.Cov(s)
		for d := 0; d < m.Dim(); d++ {
			if v := mean.AtVec(d); math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("state %d mean[%d] = %v", s, d, v)
			}
			if cov.At(d, d) < m.VarFloor() {
				t.Errorf("state %d var[%d] = %g below floor %g", s, d, cov.At(d, d), m.VarFloor())
			}
		}
		var es mat.EigenSym
		if !es.Factorize(cov, false) {
			t.Fatalf("state %d: eigen decomposition failed", s)
		}
		for _, ev := range es.Values(nil) {
			if ev < -1e-10 {
				t.Errorf("state %d eigenvalue %g", s, ev)
			}
		}
	}
}

// One 20-frame 2-D sequence through 6 emitting states (8 total).
func TestSingleSequenceScenario(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	obs := synthSequence(rng, 6, 2, 20, 0.5)
	m := seedModel(t, 6, [][][]float64{obs})

	for _, mode := range modes {
		post, err := Expect(NewEngine(mode), m, obs)
		if err != nil {
			t.Fatalf("%v: %v", mode, err)
		}
		if len(post.Gamma) != 20 || len(post.Gamma[0]) != 8 {
			t.Errorf("%v: gamma shape (%d, %d), want (20, 8)", mode, len(post.Gamma), len(post.Gamma[0]))
		}
		if len(post.Xi) != 19 || len(post.Xi[0]) != 8 || len(post.Xi[0][0]) != 8 {
			t.Errorf("%v: xi shape (%d, %d, %d), want (19, 8, 8)", mode, len(post.Xi), len(post.Xi[0]), len(post.Xi[0][0]))
		}
		for f, row := range post.Gamma {
			sum := 0.0
			for _, g := range row {
				sum += g
			}
			if math.Abs(sum-1) > 1e-6 {
				t.Errorf("%v: gamma row %d sums to %f", mode, f, sum)
			}
		}

		stats := NewStats(m)
		if err := stats.Add(obs, post); err != nil {
			t.Fatal(err)
		}
		next, err := Reestimate(m, stats)
		if err != nil {
			t.Fatalf("%v: Reestimate: %v", mode, err)
		}
		if next.Version() != m.Version()+1 {
			t.Errorf("version = %d, want %d", next.Version(), m.Version()+1)
		}
		checkTransitionStructure(t, next)
		checkEmissionConstraints(t, next)
	}
}

// Twenty sequences of one word, one M-step.
func TestBatchScenario(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	seqs := synthBatch(rng, 20, 6, 2, 24)
	m := seedModel(t, 6, seqs)

	stats, err := Accumulate(context.Background(), NewEngine(LogDomain), m, seqs, 4)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Sequences != 20 {
		t.Errorf("Sequences = %d, want 20", stats.Sequences)
	}
	next, err := Reestimate(m, stats)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= next.NumStates(); i++ {
		if a := next.Trans(i, i); !(a > 0 && a < 1) {
			t.Errorf("A[%d,%d] = %v, want strictly inside (0, 1)", i, i, a)
		}
	}
	checkTransitionStructure(t, next)
	checkEmissionConstraints(t, next)
}

func TestStats_ExitTransitionAccumulated(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	seqs := synthBatch(rng, 5, 3, 2, 12)
	m := seedModel(t, 3, seqs)
	stats, err := Accumulate(context.Background(), NewEngine(LogDomain), m, seqs, 1)
	if err != nil {
		t.Fatal(err)
	}
	exit := m.Topology().Exit()
	// Every sequence leaves through the last emitting state exactly once.
	if got := stats.Transitions[3][exit]; math.Abs(got-5) > 1e-9 {
		t.Errorf("exit count = %f, want 5", got)
	}
	if stats.Transitions[1][exit] != 0 || stats.Transitions[2][exit] != 0 {
		t.Error("exit counted from a state that cannot exit")
	}
	// Occupancy excludes the final frame; Weight covers all of them.
	for i := 1; i <= 3; i++ {
		if stats.Weight[i] < stats.Occupancy[i] {
			t.Errorf("state %d: weight %f < occupancy %f", i, stats.Weight[i], stats.Occupancy[i])
		}
	}
	total := 0.0
	for i := 1; i <= 3; i++ {
		total += stats.Weight[i]
	}
	if math.Abs(total-60) > 1e-9 {
		t.Errorf("total weight = %f, want 60 frames", total)
	}

	next, _ := Reestimate(m, stats)
	if next.Trans(3, exit) <= 0 {
		t.Errorf("A[3,exit] = %v after update", next.Trans(3, exit))
	}
}

// With every sequence exactly NumStates frames long the last state never
// occupies a non-final frame, yet its exit count makes the row well-defined.
func TestReestimate_LastStateOnlyOnFinalFrame(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	seqs := make([][][]float64, 5)
	for i := range seqs {
		seqs[i] = synthSequence(rng, 4, 2, 4, 0.5)
	}
	m := seedModel(t, 4, seqs)
	stats, err := Accumulate(context.Background(), NewEngine(LogDomain), m, seqs, 1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Occupancy[4] != 0 {
		t.Errorf("occupancy of the last state = %v, want 0", stats.Occupancy[4])
	}
	if math.Abs(stats.Weight[4]-5) > 1e-9 {
		t.Errorf("weight of the last state = %v, want 5", stats.Weight[4])
	}

	next, err := Reestimate(m, stats)
	if err != nil {
		t.Fatalf("Reestimate: %v", err)
	}
	exit := m.Topology().Exit()
	if next.Trans(4, 4) != 0 || next.Trans(4, exit) != 1 {
		t.Errorf("last row = [%v %v], want [0 1]", next.Trans(4, 4), next.Trans(4, exit))
	}
}

func TestStats_CombineIsAssociative(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	seqs := synthBatch(rng, 6, 4, 2, 16)
	m := seedModel(t, 4, seqs)
	eng := NewEngine(ScaledLinear)

	serial, err := Accumulate(context.Background(), eng, m, seqs, 1)
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := Accumulate(context.Background(), eng, m, seqs, 4)
	if err != nil {
		t.Fatal(err)
	}
	// Reduction happens in batch order, so the results are bit-identical.
	if !reflect.DeepEqual(serial.Transitions, parallel.Transitions) || !reflect.DeepEqual(serial.Weight, parallel.Weight) {
		t.Error("parallel accumulation differs from serial")
	}
	if serial.LogLikelihood != parallel.LogLikelihood {
		t.Errorf("LL %v != %v", serial.LogLikelihood, parallel.LogLikelihood)
	}

	empty := NewStats(m)
	if err := empty.Combine(serial); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(empty.Occupancy, serial.Occupancy) {
		t.Error("empty stats are not the identity of Combine")
	}
}

func TestStats_CombineRejectsOtherModel(t *testing.T) {
	a := NewStats(separatedModel(t))
	rng := rand.New(rand.NewSource(1))
	b := NewStats(seedModel(t, 4, synthBatch(rng, 1, 4, 2, 8)))
	if err := a.Combine(b); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("error = %v, want ErrDimensionMismatch", err)
	}
}

func TestStats_CombineRejectsOtherSnapshot(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	seqs := synthBatch(rng, 4, 3, 2, 12)
	m0 := seedModel(t, 3, seqs)
	stats, err := Accumulate(context.Background(), NewEngine(LogDomain), m0, seqs, 1)
	if err != nil {
		t.Fatal(err)
	}
	m1, err := Reestimate(m0, stats)
	if m1 == nil {
		t.Fatalf("Reestimate failed: %v", err)
	}

	// Same topology and dimension, different means to shift around.
	part, err := Accumulate(context.Background(), NewEngine(LogDomain), m0, seqs[:1], 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewStats(m1).Combine(part); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("combine across snapshots: error = %v, want ErrDimensionMismatch", err)
	}
	if _, err := Reestimate(m1, part); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("reestimate with another snapshot's statistics: error = %v, want ErrDimensionMismatch", err)
	}
}

func TestAccumulate_SkipsZeroLikelihood(t *testing.T) {
	rng := rand.New(rand.NewSource(19))
	seqs := synthBatch(rng, 4, 5, 2, 20)
	seqs[2] = seqs[2][:3]
	m := seedModel(t, 5, seqs)

	stats, err := Accumulate(context.Background(), NewEngine(LogDomain), m, seqs, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(stats.Skipped, []int{2}) || stats.Sequences != 3 {
		t.Errorf("skipped = %v, sequences = %d", stats.Skipped, stats.Sequences)
	}

	_, err = Accumulate(context.Background(), NewEngine(LogDomain), m, [][][]float64{seqs[2]}, 1)
	if !errors.Is(err, ErrZeroLikelihood) {
		t.Errorf("all-skipped error = %v, want ErrZeroLikelihood", err)
	}
}

func TestAccumulate_DimensionMismatchAborts(t *testing.T) {
	m := separatedModel(t)
	seqs := [][][]float64{{{0}, {3}, {6}}, {{0, 0}, {3, 3}, {6, 6}}}
	if _, err := Accumulate(context.Background(), NewEngine(LogDomain), m, seqs, 2); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("error = %v, want ErrDimensionMismatch", err)
	}
}

func TestReestimate_ZeroOccupancyKeepsPreviousParameters(t *testing.T) {
	m := separatedModel(t)
	next, err := Reestimate(m, NewStats(m))
	if next == nil {
		t.Fatalf("Reestimate failed: %v", err)
	}
	if !errors.Is(err, ErrZeroOccupancy) {
		t.Fatalf("error = %v, want ErrZeroOccupancy", err)
	}
	var se *StateError
	if !errors.As(err, &se) || se.State < 1 || se.State > m.NumStates() {
		t.Errorf("error %v does not name an emitting state", err)
	}
	if !reflect.DeepEqual(next.Params().Means, m.Params().Means) || !reflect.DeepEqual(next.Params().Trans, m.Params().Trans) {
		t.Error("degenerate states did not keep their parameters")
	}
	if next.Version() != 1 {
		t.Errorf("version = %d, want 1", next.Version())
	}
}

func TestConditionCovariance(t *testing.T) {
	// Eigenvalues 3 and -1: flooring alone does not help.
	c := mat.NewSymDense(2, []float64{1, 2, 2, 1})
	got, err := conditionCovariance(c, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	var chol mat.Cholesky
	if !chol.Factorize(got) {
		t.Error("result is not positive definite")
	}
	if got.At(0, 1) != got.At(1, 0) {
		t.Error("result is not symmetric")
	}

	low := mat.NewSymDense(2, []float64{1e-6, 0, 0, 4})
	got, err = conditionCovariance(low, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if got.At(0, 0) != 0.5 || got.At(1, 1) != 4 {
		t.Errorf("floored diagonal = (%g, %g), want (0.5, 4)", got.At(0, 0), got.At(1, 1))
	}

	nan := mat.NewSymDense(1, []float64{math.NaN()})
	if got, err := conditionCovariance(nan, 0.5); err != nil || got.At(0, 0) != 0.5 {
		t.Errorf("NaN variance: got %v, %v", got, err)
	}
}

func TestSymmetrize(t *testing.T) {
	c := mat.NewDense(2, 2, []float64{1, 2, 4, 3})
	s := symmetrize(c)
	if s.At(0, 1) != 3 || s.At(1, 0) != 3 || s.At(0, 0) != 1 || s.At(1, 1) != 3 {
		t.Errorf("symmetrize = %v", mat.Formatted(s))
	}
}

func TestTrain_LikelihoodMonotone(t *testing.T) {
	for _, mode := range modes {
		rng := rand.New(rand.NewSource(42))
		seqs := synthBatch(rng, 20, 5, 2, 20)
		seed := seedModel(t, 5, seqs)

		cfg := DefaultTrainingConfig()
		cfg.Mode = mode
		cfg.MaxIterations = 15
		cfg.ConvergenceThresh = 1e-7
		res, err := Train(context.Background(), seed, seqs, cfg)
		if err != nil {
			t.Fatalf("%v: Train: %v", mode, err)
		}
		lls := res.LogLikelihoods
		if len(lls) != res.Iterations+1 {
			t.Errorf("%v: %d log-likelihoods for %d iterations", mode, len(lls), res.Iterations)
		}
		for k := 1; k < len(lls); k++ {
			if lls[k] < lls[k-1]-1e-8*math.Max(math.Abs(lls[k-1]), 1) {
				t.Errorf("%v: LL decreased at iteration %d: %f -> %f", mode, k, lls[k-1], lls[k])
			}
		}
		if res.Regressed() {
			t.Errorf("%v: unexpected regression: %v", mode, res.Warnings)
		}
		if lls[len(lls)-1] <= lls[0] {
			t.Errorf("%v: training did not improve LL: initial=%f, final=%f", mode, lls[0], lls[len(lls)-1])
		}
		for _, ll := range lls {
			if res.LogLikelihood < ll {
				t.Errorf("%v: returned LL %f is below %f seen during training", mode, res.LogLikelihood, ll)
			}
		}
		if res.Status != StatusConverged && res.Status != StatusMaxIterations {
			t.Errorf("%v: status = %v", mode, res.Status)
		}
		checkTransitionStructure(t, res.Model)
		checkEmissionConstraints(t, res.Model)
		if seed.Version() != 0 {
			t.Error("training mutated the seed snapshot")
		}
	}
}

func TestTrain_StatusReporting(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	seqs := synthBatch(rng, 10, 4, 2, 16)
	seed := seedModel(t, 4, seqs)

	res, err := Train(context.Background(), seed, seqs, TrainingConfig{MaxIterations: 1, ConvergenceThresh: 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusMaxIterations || res.Iterations != 1 {
		t.Errorf("status = %v after %d iterations, want max-iterations-reached after 1", res.Status, res.Iterations)
	}

	res, err = Train(context.Background(), seed, seqs, TrainingConfig{MaxIterations: 50, ConvergenceThresh: 1e-2})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusConverged || res.Iterations >= 50 {
		t.Errorf("status = %v after %d iterations, want converged", res.Status, res.Iterations)
	}
	if res.Model.Version() == 0 {
		t.Error("converged result still holds the seed")
	}
}

func TestTrain_Errors(t *testing.T) {
	m := separatedModel(t)
	if _, err := Train(context.Background(), m, nil, DefaultTrainingConfig()); !errors.Is(err, ErrNoSequences) {
		t.Errorf("error = %v, want ErrNoSequences", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	seqs := [][][]float64{{{0}, {3}, {6}}, {{0}, {3}, {6}}}
	if _, err := Train(ctx, m, seqs, DefaultTrainingConfig()); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRegressionError(t *testing.T) {
	err := error(&RegressionError{Iteration: 3, Previous: -10, Current: -11})
	if !errors.Is(err, ErrLikelihoodRegression) {
		t.Error("RegressionError does not unwrap to ErrLikelihoodRegression")
	}
	r := &Result{Warnings: err}
	if !r.Regressed() {
		t.Error("Regressed() = false")
	}
}

// A variance floor as large as the global variance forbids the covariance
// shrinkage EM asks for, so the first M-step loses likelihood.
func TestTrain_RegressionIsNotConvergence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	seqs := synthBatch(rng, 10, 4, 2, 20)
	topo, err := NewTopology(4)
	if err != nil {
		t.Fatal(err)
	}
	mean, cov := globalMeanCov(seqs)
	seed, err := Seed(topo, mean, cov, 1.0)
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultTrainingConfig()
	cfg.MaxIterations = 3
	cfg.ConvergenceThresh = 0
	res, err := Train(context.Background(), seed, seqs, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Regressed() {
		t.Fatalf("no regression reported, log-likelihoods %v", res.LogLikelihoods)
	}
	var re *RegressionError
	if !errors.As(res.Warnings, &re) || re.Current >= re.Previous {
		t.Errorf("warnings %v carry no usable RegressionError", res.Warnings)
	}
	if res.Status != StatusMaxIterations || res.Iterations != 3 {
		t.Errorf("status = %v after %d iterations, want max-iterations-reached after 3", res.Status, res.Iterations)
	}
	for k, ll := range res.LogLikelihoods {
		if ll > res.LogLikelihood {
			t.Errorf("returned log-likelihood %v is below iteration %d (%v)", res.LogLikelihood, k, ll)
		}
	}

	cfg.MaxIterations = 20
	cfg.ConvergenceThresh = 1e-4
	res, err = Train(context.Background(), seed, seqs, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status == StatusConverged {
		t.Errorf("regressed run reported %v, log-likelihoods %v", res.Status, res.LogLikelihoods)
	}
}

func TestStatusString(t *testing.T) {
	if StatusMaxIterations.String() != "max-iterations-reached" || StatusConverged.String() != "converged" {
		t.Error("unexpected status names")
	}
}
