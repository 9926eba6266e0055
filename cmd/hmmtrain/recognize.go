package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ieee0824/wordhmm"
	"github.com/ieee0824/wordhmm/acoustic"
)

var recognizeMode string

var recognizeCmd = &cobra.Command{
	Use:   "recognize FILE...",
	Short: "Print the best word for each feature file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := acoustic.ParseMode(recognizeMode)
		if err != nil {
			return err
		}
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		r, err := wordhmm.NewRecognizerFromStore(cmd.Context(), s, wordhmm.WithMode(mode), wordhmm.WithLogger(logger))
		if err != nil {
			return err
		}
		if len(r.Models.Models) == 0 {
			return fmt.Errorf("no models in %s", storeDir)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer tw.Flush()
		fmt.Fprintln(tw, "FILE\tWORD\tLOGLIK\tMARGIN")
		failed := 0
		for _, path := range args {
			res, err := r.RecognizeFile(path)
			if err != nil {
				logger.Error("recognition failed", "file", path, "error", err)
				failed++
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\n", path, res.Word, res.LogScore, res.Margin())
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	recognizeCmd.Flags().StringVar(&recognizeMode, "mode", "log", "arithmetic: scaled or log")
}
