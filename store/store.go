// Package store persists trained word models keyed by word.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ieee0824/wordhmm/acoustic"
)

// ErrNotFound is returned when no model is stored for a word.
var ErrNotFound = errors.New("store: model not found")

// Record is one trained word model together with its training outcome.
type Record struct {
	Word           string          `msgpack:"word"`
	RunID          string          `msgpack:"run_id"`
	TrainedAt      time.Time       `msgpack:"trained_at"`
	Mode           string          `msgpack:"mode"`
	Status         string          `msgpack:"status"`
	Iterations     int             `msgpack:"iterations"`
	Sequences      int             `msgpack:"sequences"`
	LogLikelihood  float64         `msgpack:"loglik"`
	LogLikelihoods []float64       `msgpack:"logliks,omitempty"`
	Params         acoustic.Params `msgpack:"params"`
}

// NewRecord captures a training result under a fresh run ID.
func NewRecord(word string, sequences int, mode acoustic.Mode, res *acoustic.Result) *Record {
	return &Record{
		Word:           word,
		RunID:          uuid.NewString(),
		TrainedAt:      time.Now().UTC(),
		Mode:           mode.String(),
		Status:         res.Status.String(),
		Iterations:     res.Iterations,
		Sequences:      sequences,
		LogLikelihood:  res.LogLikelihood,
		LogLikelihoods: res.LogLikelihoods,
		Params:         res.Model.Params(),
	}
}

// Model rebuilds and validates the stored model.
func (r *Record) Model() (*acoustic.Model, error) {
	return acoustic.FromParams(r.Params)
}

// Store is a trained-model repository.
type Store interface {
	// Put stores rec, replacing any earlier model of the same word.
	Put(ctx context.Context, rec *Record) error
	// Get returns the model record of word, or ErrNotFound.
	Get(ctx context.Context, word string) (*Record, error)
	// List returns all records in word order.
	List(ctx context.Context) ([]*Record, error)
	// Delete removes the model of word. Deleting a missing word is not an error.
	Delete(ctx context.Context, word string) error
	Close() error
}

// LoadModels reads every stored record into a word model set.
func LoadModels(ctx context.Context, s Store) (*acoustic.WordModels, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	wm := acoustic.NewWordModels()
	for _, rec := range recs {
		m, err := rec.Model()
		if err != nil {
			return nil, err
		}
		wm.Models[rec.Word] = m
	}
	return wm, nil
}
