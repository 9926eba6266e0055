package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored word models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		recs, err := s.List(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer tw.Flush()
		fmt.Fprintln(tw, "WORD\tSTATES\tDIM\tMODE\tSTATUS\tITER\tLOGLIK\tTRAINED\tRUN")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%d\t%.4f\t%s\t%s\n",
				r.Word, r.Params.NumStates, r.Params.Dim, r.Mode, r.Status, r.Iterations,
				r.LogLikelihood, r.TrainedAt.Local().Format(time.DateTime), r.RunID)
		}
		return nil
	},
}
