// Package wordhmm trains and applies left-to-right Gaussian HMMs for
// isolated-word recognition.
package wordhmm

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ieee0824/wordhmm/acoustic"
	"github.com/ieee0824/wordhmm/decoder"
	"github.com/ieee0824/wordhmm/feature"
	"github.com/ieee0824/wordhmm/store"
)

// Recognizer is the top-level isolated-word recognizer.
type Recognizer struct {
	Models *acoustic.WordModels
	DecCfg decoder.Config
	logger *slog.Logger
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithDecoderConfig sets custom decoder parameters.
func WithDecoderConfig(cfg decoder.Config) Option {
	return func(r *Recognizer) {
		r.DecCfg = cfg
	}
}

// WithMode selects scaled-linear or log-domain scoring.
func WithMode(mode acoustic.Mode) Option {
	return func(r *Recognizer) {
		r.DecCfg.Mode = mode
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Recognizer) {
		r.logger = l
	}
}

func newRecognizer(wm *acoustic.WordModels, opts []Option) *Recognizer {
	r := &Recognizer{
		Models: wm,
		DecCfg: decoder.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRecognizer creates a Recognizer from a gob word-model file.
func NewRecognizer(modelPath string, opts ...Option) (*Recognizer, error) {
	f, err := os.Open(modelPath)
	if err != nil {
		return nil, fmt.Errorf("open word models: %w", err)
	}
	defer f.Close()
	wm, err := acoustic.LoadWordModels(f)
	if err != nil {
		return nil, fmt.Errorf("load word models: %w", err)
	}
	return newRecognizer(wm, opts), nil
}

// NewRecognizerFromStore creates a Recognizer from every model in s.
func NewRecognizerFromStore(ctx context.Context, s store.Store, opts ...Option) (*Recognizer, error) {
	wm, err := store.LoadModels(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("load word models: %w", err)
	}
	return newRecognizer(wm, opts), nil
}

// NewRecognizerFromModels creates a Recognizer from pre-loaded models.
func NewRecognizerFromModels(wm *acoustic.WordModels, opts ...Option) *Recognizer {
	return newRecognizer(wm, opts)
}

// RecognizeFile runs recognition on a feature file.
func (r *Recognizer) RecognizeFile(path string) (*decoder.Result, error) {
	seq, err := feature.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read features: %w", err)
	}
	return r.Recognize(seq)
}

// Recognize scores a feature sequence against every word model.
func (r *Recognizer) Recognize(features feature.Sequence) (*decoder.Result, error) {
	res, err := decoder.Decode(features, r.Models, r.DecCfg)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("recognized", "word", res.Word, "loglik", res.LogScore, "margin", res.Margin(), "frames", len(features))
	return res, nil
}
