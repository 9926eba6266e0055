package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ieee0824/wordhmm/store"
)

var (
	exportWord   string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write one word model, or all of them, as a gob file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := exportModels(cmd.Context(), s, exportWord, exportOutput); err != nil {
			return err
		}
		logger.Info("model saved", "path", exportOutput)
		return nil
	},
}

// exportModels writes the model of word, or every stored model when word is
// empty, to path.
func exportModels(ctx context.Context, s store.Store, word, path string) error {
	of, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := writeModels(ctx, s, word, of); err != nil {
		of.Close()
		return err
	}
	if err := of.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func writeModels(ctx context.Context, s store.Store, word string, w io.Writer) error {
	if word != "" {
		rec, err := s.Get(ctx, word)
		if err != nil {
			return err
		}
		m, err := rec.Model()
		if err != nil {
			return err
		}
		if err := m.Save(w); err != nil {
			return fmt.Errorf("save model: %w", err)
		}
		return nil
	}
	wm, err := store.LoadModels(ctx, s)
	if err != nil {
		return err
	}
	if err := wm.Save(w); err != nil {
		return fmt.Errorf("save models: %w", err)
	}
	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportWord, "word", "", "export only this word")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "models.gob", "output path")
}
