package acoustic

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when an observation or parameter does not
	// match the model's feature dimension or state count.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrEmptySequence is returned for an observation sequence with no frames.
	ErrEmptySequence = errors.New("empty observation sequence")
	// ErrNoSequences is returned when training is started without data.
	ErrNoSequences = errors.New("no training sequences")
	// ErrZeroLikelihood is returned when no path through the model can
	// produce the observation sequence.
	ErrZeroLikelihood = errors.New("sequence has zero likelihood under model")
	// ErrZeroOccupancy reports a state that received no posterior mass.
	ErrZeroOccupancy = errors.New("state received no posterior mass")
	// ErrNotPositiveDefinite reports a covariance that could not be repaired.
	ErrNotPositiveDefinite = errors.New("covariance is not positive definite")
	// ErrLikelihoodRegression reports a decrease of the total log-likelihood
	// between two Baum-Welch iterations.
	ErrLikelihoodRegression = errors.New("log-likelihood decreased")
	// ErrInvalidModel is returned when parameters violate the topology or
	// statistical constraints.
	ErrInvalidModel = errors.New("invalid model")
)

// StateError attaches a state index to a per-state failure.
type StateError struct {
	State int
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %d: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }

// RegressionError records a log-likelihood decrease between iterations.
type RegressionError struct {
	Iteration int
	Previous  float64
	Current   float64
}

func (e *RegressionError) Error() string {
	return fmt.Sprintf("iteration %d: log-likelihood decreased from %.10g to %.10g (by %.3g)",
		e.Iteration, e.Previous, e.Current, e.Previous-e.Current)
}

func (e *RegressionError) Unwrap() error { return ErrLikelihoodRegression }
