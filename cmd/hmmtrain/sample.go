package main

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ieee0824/wordhmm/acoustic"
	"github.com/ieee0824/wordhmm/feature"
)

var (
	sampleWord  string
	sampleCount int
	sampleOut   string
	sampleSeed  int64
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Generate synthetic feature sequences from a stored word model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		rec, err := s.Get(cmd.Context(), sampleWord)
		if err != nil {
			return err
		}
		m, err := rec.Model()
		if err != nil {
			return err
		}

		seed := sampleSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))
		for i := 0; i < sampleCount; i++ {
			obs, _ := acoustic.Generate(m, rng)
			path := filepath.Join(sampleOut, fmt.Sprintf("%s_%03d.csv", sampleWord, i))
			if err := feature.SaveFile(path, obs); err != nil {
				return err
			}
		}
		logger.Info("sequences written", "word", sampleWord, "count", sampleCount, "dir", sampleOut, "seed", seed)
		return nil
	},
}

func init() {
	f := sampleCmd.Flags()
	f.StringVar(&sampleWord, "word", "", "word model to sample (required)")
	f.IntVarP(&sampleCount, "count", "n", 10, "number of sequences")
	f.StringVar(&sampleOut, "out", "samples", "output directory")
	f.Int64Var(&sampleSeed, "seed", 0, "random seed, 0 = time based")
	sampleCmd.MarkFlagRequired("word")
}
