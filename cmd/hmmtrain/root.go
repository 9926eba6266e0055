package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ieee0824/wordhmm/store"
)

var (
	// Global flags
	verbose  bool
	storeDir string

	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "hmmtrain",
	Short: "Baum-Welch trainer for isolated-word Gaussian HMMs",
	Long: `hmmtrain - train left-to-right Gaussian HMMs, one per word.

Feature directories hold one sequence per file, one frame per line, values
separated by commas or whitespace. Either <dir>/<word>/*.csv or flat
<dir>/<word>_<n>.csv files are accepted.

Examples:
  hmmtrain train --data features/ --store models/ --plot loglik.png
  hmmtrain recognize --store models/ utt1.csv utt2.csv
  hmmtrain sample --store models/ --word heed -n 20 --out synth/`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

// Execute runs the root command. An interrupt cancels training between
// E-step batches.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every Baum-Welch iteration")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store", "hmm-store", "model store directory")

	rootCmd.AddCommand(trainCmd, recognizeCmd, listCmd, exportCmd, sampleCmd)
}

func openStore() (*store.Badger, error) {
	return store.NewBadger(store.BadgerOptions{Dir: storeDir, Logger: logger})
}
