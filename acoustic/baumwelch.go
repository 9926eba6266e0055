package acoustic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// TrainingConfig holds Baum-Welch training parameters.
type TrainingConfig struct {
	MaxIterations     int
	ConvergenceThresh float64 // relative log-likelihood improvement threshold
	RegressionSlack   float64 // relative decrease tolerated as rounding noise
	Mode              Mode
	Workers           int // parallel E-step workers, 0 = GOMAXPROCS

	// Logger is optional. If nil, uses slog.Default().
	Logger *slog.Logger
}

// DefaultTrainingConfig returns reasonable default training parameters.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		MaxIterations:     20,
		ConvergenceThresh: 1e-4,
		RegressionSlack:   1e-8,
		Mode:              LogDomain,
	}
}

func (c TrainingConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Status is the state of the training loop.
type Status int

const (
	StatusInitializing Status = iota
	StatusIterating
	StatusConverged
	StatusMaxIterations
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusIterating:
		return "iterating"
	case StatusConverged:
		return "converged"
	case StatusMaxIterations:
		return "max-iterations-reached"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result is the outcome of Train.
type Result struct {
	// Model is the snapshot with the highest total log-likelihood seen.
	Model *Model
	// Status is StatusConverged or StatusMaxIterations.
	Status Status
	// Iterations counts completed M-steps.
	Iterations int
	// LogLikelihood is the total log-likelihood of Model.
	LogLikelihood float64
	// LogLikelihoods[k] is the total log-likelihood after k M-steps;
	// LogLikelihoods[0] scores the seed.
	LogLikelihoods []float64
	// Skipped lists sequences that had zero likelihood in the last E-step.
	Skipped []int
	// Warnings aggregates degenerate-state reports and likelihood
	// regressions. It is nil for a clean run.
	Warnings error
}

// Regressed reports whether the log-likelihood decreased at any iteration.
func (r *Result) Regressed() bool {
	return errors.Is(r.Warnings, ErrLikelihoodRegression)
}

// Accumulate runs the E-step for every sequence against m and reduces the
// per-sequence statistics. Sequences are processed by up to workers
// goroutines; m is only read. Sequences with zero likelihood are recorded in
// Stats.Skipped; any other failure aborts the batch.
func Accumulate(ctx context.Context, eng Engine, m *Model, seqs [][][]float64, workers int) (*Stats, error) {
	if len(seqs) == 0 {
		return nil, ErrNoSequences
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(seqs))

	parts := make([]*Stats, len(seqs))
	errs := make([]error, len(seqs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				post, err := Expect(eng, m, seqs[i])
				if err != nil {
					errs[i] = err
					continue
				}
				st := NewStats(m)
				errs[i] = st.Add(seqs[i], post)
				parts[i] = st
			}
		}()
	}

feed:
	for i := range seqs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Reduce in batch order so the sums do not depend on scheduling.
	total := NewStats(m)
	for i, err := range errs {
		switch {
		case err == nil:
			if err := total.Combine(parts[i]); err != nil {
				return nil, err
			}
		case errors.Is(err, ErrZeroLikelihood):
			total.Skipped = append(total.Skipped, i)
		default:
			return nil, fmt.Errorf("sequence %d: %w", i, err)
		}
	}
	if total.Sequences == 0 {
		return nil, fmt.Errorf("all %d sequences: %w", len(seqs), ErrZeroLikelihood)
	}
	return total, nil
}

// Train runs Baum-Welch (EM) from seed on sequences of a single class.
// Every iteration scores all sequences under the current snapshot, runs one
// M-step, and scores the batch again under the new snapshot. Training stops
// when the relative log-likelihood gain falls below cfg.ConvergenceThresh or
// after cfg.MaxIterations M-steps. A decrease of the log-likelihood is never
// silent: it is logged, recorded in Result.Warnings, and the run ends with
// StatusMaxIterations rather than StatusConverged.
func Train(ctx context.Context, seed *Model, sequences [][][]float64, cfg TrainingConfig) (*Result, error) {
	if len(sequences) == 0 {
		return nil, ErrNoSequences
	}
	log := cfg.logger()
	eng := NewEngine(cfg.Mode)
	res := &Result{Status: StatusInitializing}
	var warnings *multierror.Error

	cur := seed
	stats, err := Accumulate(ctx, eng, cur, sequences, cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("initial e-step: %w", err)
	}
	warnSkipped(log, 0, stats, len(sequences))
	prevLL := stats.LogLikelihood
	best, bestLL := cur, prevLL
	res.LogLikelihoods = append(res.LogLikelihoods, prevLL)
	log.Debug("baum-welch seeded", "sequences", len(sequences), "states", seed.NumStates(), "mode", cfg.Mode, "loglik", prevLL)

	res.Status = StatusIterating
	regressed := false
	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		next, err := Reestimate(cur, stats)
		if next == nil {
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}
		if err != nil {
			log.Warn("states kept previous parameters", "iter", iter, "error", err)
			warnings = multierror.Append(warnings, fmt.Errorf("iteration %d: %w", iter, err))
		}

		nextStats, err := Accumulate(ctx, eng, next, sequences, cfg.Workers)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}
		warnSkipped(log, iter, nextStats, len(sequences))
		ll := nextStats.LogLikelihood
		delta := ll - prevLL
		res.Iterations = iter
		res.LogLikelihoods = append(res.LogLikelihoods, ll)
		log.Debug("baum-welch iteration", "iter", iter, "version", next.Version(), "loglik", ll, "delta", delta)

		scale := math.Max(math.Abs(prevLL), 1)
		if delta < -cfg.RegressionSlack*scale {
			rerr := &RegressionError{Iteration: iter, Previous: prevLL, Current: ll}
			log.Error("log-likelihood decreased", "iter", iter, "previous", prevLL, "current", ll)
			warnings = multierror.Append(warnings, rerr)
			regressed = true
		}
		if ll > bestLL {
			best, bestLL = next, ll
		}

		cur, stats, prevLL = next, nextStats, ll
		// A run that lost likelihood never reports convergence; it continues
		// to the iteration cap and returns the best snapshot.
		if !regressed && delta >= 0 && delta/scale < cfg.ConvergenceThresh {
			res.Status = StatusConverged
			break
		}
	}
	if res.Status == StatusIterating {
		res.Status = StatusMaxIterations
	}

	res.Model = best
	res.LogLikelihood = bestLL
	res.Skipped = stats.Skipped
	res.Warnings = warnings.ErrorOrNil()
	log.Info("baum-welch finished", "status", res.Status, "iterations", res.Iterations, "loglik", bestLL)
	return res, nil
}

func warnSkipped(log *slog.Logger, iter int, s *Stats, total int) {
	if len(s.Skipped) == 0 {
		return
	}
	log.Warn("sequences have zero likelihood and were skipped", "iter", iter, "skipped", len(s.Skipped), "total", total)
}
