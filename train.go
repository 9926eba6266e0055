package wordhmm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/ieee0824/wordhmm/acoustic"
	"github.com/ieee0824/wordhmm/feature"
	"github.com/ieee0824/wordhmm/internal/config"
)

// TrainOptions configures per-word training.
type TrainOptions struct {
	NumStates      int
	Dim            int // 0 accepts the dimension of the data
	VarFloorFactor float64
	Training       acoustic.TrainingConfig

	// OnWord, if set, is called after each word of TrainCorpus finishes.
	OnWord func(word string, res *acoustic.Result, err error)
}

// OptionsFromConfig builds TrainOptions from a settings file.
func OptionsFromConfig(cfg *config.Config, tc acoustic.TrainingConfig) TrainOptions {
	return TrainOptions{
		NumStates:      cfg.Model.NumStates,
		Dim:            cfg.Model.Dim,
		VarFloorFactor: cfg.Model.VarFloorFactor,
		Training:       tc,
	}
}

// SeedWord builds the flat-start model of one word: every emitting state
// gets the pooled mean and covariance of the word's sequences.
func SeedWord(seqs []feature.Sequence, opts TrainOptions) (*acoustic.Model, error) {
	topo, err := acoustic.NewTopology(opts.NumStates)
	if err != nil {
		return nil, err
	}
	mean, cov, err := feature.GlobalStats(seqs)
	if err != nil {
		return nil, err
	}
	if opts.Dim > 0 && len(mean) != opts.Dim {
		return nil, fmt.Errorf("%w: data has %d dims, configured %d", acoustic.ErrDimensionMismatch, len(mean), opts.Dim)
	}
	return acoustic.Seed(topo, mean, cov, opts.VarFloorFactor)
}

// TrainWord seeds and trains the model of one word.
func TrainWord(ctx context.Context, seqs []feature.Sequence, opts TrainOptions) (*acoustic.Result, error) {
	if len(seqs) == 0 {
		return nil, acoustic.ErrNoSequences
	}
	seed, err := SeedWord(seqs, opts)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return acoustic.Train(ctx, seed, seqs, opts.Training)
}

// TrainCorpus trains one model per word of c, in word order. A word that
// fails to train is left out of the returned models and reported in the
// error; the error is nil only if every word trained. Cancellation stops
// the loop immediately.
func TrainCorpus(ctx context.Context, c feature.Corpus, opts TrainOptions) (*acoustic.WordModels, map[string]*acoustic.Result, error) {
	wm := acoustic.NewWordModels()
	results := make(map[string]*acoustic.Result, len(c))
	var errs *multierror.Error

	for _, word := range c.Words() {
		log := opts.Training.Logger
		if log == nil {
			log = slog.Default()
		}
		wordOpts := opts
		wordOpts.Training.Logger = log.With("word", word)

		res, err := TrainWord(ctx, c[word], wordOpts)
		if opts.OnWord != nil {
			opts.OnWord(word, res, err)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return wm, results, err
			}
			errs = multierror.Append(errs, fmt.Errorf("word %q: %w", word, err))
			continue
		}
		wm.Models[word] = res.Model
		results[word] = res
	}
	return wm, results, errs.ErrorOrNil()
}
