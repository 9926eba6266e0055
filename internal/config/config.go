// Package config loads hmmtrain settings from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"

	"github.com/ieee0824/wordhmm/acoustic"
)

// Config is the top-level settings file.
type Config struct {
	Model    Model    `yaml:"model"`
	Training Training `yaml:"training"`
}

// Model configures the word model topology and seeding.
type Model struct {
	// NumStates is the number of emitting states per word.
	NumStates int `yaml:"num_states"`

	// Dim is the feature dimension. 0 takes it from the data.
	Dim int `yaml:"dim,omitempty"`

	// VarFloorFactor scales mean(diag(global covariance)) into the variance floor.
	VarFloorFactor float64 `yaml:"var_floor_factor"`
}

// Training configures the Baum-Welch loop.
type Training struct {
	MaxIterations        int     `yaml:"max_iterations"`
	ConvergenceTolerance float64 `yaml:"convergence_tolerance"`
	RegressionSlack      float64 `yaml:"regression_slack,omitempty"`

	// Mode is "scaled" or "log".
	Mode string `yaml:"mode"`

	// Workers bounds the parallel E-step. 0 uses GOMAXPROCS.
	Workers int `yaml:"workers,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	tc := acoustic.DefaultTrainingConfig()
	return &Config{
		Model: Model{
			NumStates:      6,
			VarFloorFactor: 0.01,
		},
		Training: Training{
			MaxIterations:        tc.MaxIterations,
			ConvergenceTolerance: tc.ConvergenceThresh,
			RegressionSlack:      tc.RegressionSlack,
			Mode:                 tc.Mode.String(),
		},
	}
}

// Load reads path on top of Default. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.Model.NumStates < 1 {
		errs = multierror.Append(errs, fmt.Errorf("model.num_states must be at least 1, got %d", c.Model.NumStates))
	}
	if c.Model.Dim < 0 {
		errs = multierror.Append(errs, fmt.Errorf("model.dim must not be negative, got %d", c.Model.Dim))
	}
	if !(c.Model.VarFloorFactor > 0) {
		errs = multierror.Append(errs, fmt.Errorf("model.var_floor_factor must be positive, got %g", c.Model.VarFloorFactor))
	}
	if c.Training.MaxIterations < 0 {
		errs = multierror.Append(errs, fmt.Errorf("training.max_iterations must not be negative, got %d", c.Training.MaxIterations))
	}
	if c.Training.ConvergenceTolerance < 0 {
		errs = multierror.Append(errs, fmt.Errorf("training.convergence_tolerance must not be negative, got %g", c.Training.ConvergenceTolerance))
	}
	if c.Training.RegressionSlack < 0 {
		errs = multierror.Append(errs, fmt.Errorf("training.regression_slack must not be negative, got %g", c.Training.RegressionSlack))
	}
	if _, err := acoustic.ParseMode(c.Training.Mode); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("training.mode: %w", err))
	}
	if c.Training.Workers < 0 {
		errs = multierror.Append(errs, fmt.Errorf("training.workers must not be negative, got %d", c.Training.Workers))
	}
	return errs.ErrorOrNil()
}

// TrainingConfig converts the training section for acoustic.Train.
func (c *Config) TrainingConfig(logger *slog.Logger) (acoustic.TrainingConfig, error) {
	mode, err := acoustic.ParseMode(c.Training.Mode)
	if err != nil {
		return acoustic.TrainingConfig{}, err
	}
	return acoustic.TrainingConfig{
		MaxIterations:     c.Training.MaxIterations,
		ConvergenceThresh: c.Training.ConvergenceTolerance,
		RegressionSlack:   c.Training.RegressionSlack,
		Mode:              mode,
		Workers:           c.Training.Workers,
		Logger:            logger,
	}, nil
}
