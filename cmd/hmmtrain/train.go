package main

import (
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ieee0824/wordhmm"
	"github.com/ieee0824/wordhmm/acoustic"
	"github.com/ieee0824/wordhmm/feature"
	"github.com/ieee0824/wordhmm/internal/config"
	"github.com/ieee0824/wordhmm/store"
)

var (
	trainData   string
	trainConfig string
	trainWords  []string
	trainPlot   string
	trainMode   string
	trainIters  int
	trainStates int
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train one model per word and store it",
	RunE:  runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.StringVar(&trainData, "data", "", "feature directory (required)")
	f.StringVar(&trainConfig, "config", "", "YAML settings file")
	f.StringSliceVar(&trainWords, "word", nil, "train only these words (repeatable)")
	f.StringVar(&trainPlot, "plot", "", "write a log-likelihood PNG to this path")
	f.StringVar(&trainMode, "mode", "", "override arithmetic: scaled or log")
	f.IntVar(&trainIters, "iter", 0, "override max Baum-Welch iterations")
	f.IntVar(&trainStates, "states", 0, "override number of emitting states")
	trainCmd.MarkFlagRequired("data")
}

func loadTrainConfig() (*config.Config, error) {
	cfg := config.Default()
	if trainConfig != "" {
		var err error
		if cfg, err = config.Load(trainConfig); err != nil {
			return nil, err
		}
	}
	if trainMode != "" {
		cfg.Training.Mode = trainMode
	}
	if trainIters > 0 {
		cfg.Training.MaxIterations = trainIters
	}
	if trainStates > 0 {
		cfg.Model.NumStates = trainStates
	}
	return cfg, cfg.Validate()
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadTrainConfig()
	if err != nil {
		return err
	}
	tc, err := cfg.TrainingConfig(logger)
	if err != nil {
		return err
	}

	corpus, err := feature.LoadDir(trainData)
	if err != nil {
		return fmt.Errorf("load features: %w", err)
	}
	if len(trainWords) > 0 {
		for w := range corpus {
			if !slices.Contains(trainWords, w) {
				delete(corpus, w)
			}
		}
	}
	if len(corpus) == 0 {
		return fmt.Errorf("no training data in %s", trainData)
	}
	logger.Info("corpus loaded", "words", len(corpus), "sequences", len(corpus.All()))

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	bar := progressbar.NewOptions(len(corpus),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("training"),
		progressbar.OptionShowCount(),
	)
	ctx := cmd.Context()
	var storeErr error
	opts := wordhmm.OptionsFromConfig(cfg, tc)
	opts.OnWord = func(word string, res *acoustic.Result, err error) {
		bar.Describe(word)
		bar.Add(1)
		if err != nil {
			logger.Error("training failed", "word", word, "error", err)
			return
		}
		if res.Warnings != nil {
			logger.Warn("training finished with warnings", "word", word, "warnings", res.Warnings)
		}
		rec := store.NewRecord(word, len(corpus[word]), tc.Mode, res)
		if err := s.Put(ctx, rec); err != nil && storeErr == nil {
			storeErr = fmt.Errorf("store %q: %w", word, err)
		}
	}

	_, results, trainErr := wordhmm.TrainCorpus(ctx, corpus, opts)
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORD\tSEQUENCES\tSTATUS\tITERATIONS\tLOGLIK")
	for _, w := range corpus.Words() {
		res, ok := results[w]
		if !ok {
			fmt.Fprintf(tw, "%s\t%d\tfailed\t-\t-\n", w, len(corpus[w]))
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%.4f\n", w, len(corpus[w]), res.Status, res.Iterations, res.LogLikelihood)
	}
	tw.Flush()

	if trainPlot != "" && len(results) > 0 {
		if err := plotLogLikelihoods(trainPlot, results); err != nil {
			return fmt.Errorf("plot: %w", err)
		}
		logger.Info("plot written", "path", trainPlot)
	}
	if storeErr != nil {
		return storeErr
	}
	return trainErr
}
