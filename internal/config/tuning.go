// Package config loads pipeline tuning parameters from JSON. Fields omitted
// from the file keep their built-in defaults, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pocket-drs/crease.report/internal/pitch"
)

// TuningConfig represents the root configuration for tuning parameters. The
// schema matches the pipeline component configs so one JSON file can tune a
// whole deployment.
type TuningConfig struct {
	// Tracker params
	SeedSampleRadiusPx *int     `json:"seed_sample_radius_px,omitempty"`
	MaxSampledFrames   *int     `json:"max_sampled_frames,omitempty"`
	MinConfidence      *float64 `json:"min_confidence,omitempty"`

	// Trajectory params
	ReleaseHeightM   *float64 `json:"release_height_m,omitempty"`
	PeakPositionFrac *float64 `json:"peak_position_frac,omitempty"`
	StumpStepM       *float64 `json:"stump_step_m,omitempty"`

	// Decision params
	PredictionTailPoints *int     `json:"prediction_tail_points,omitempty"`
	MarginM              *float64 `json:"margin_m,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have
// a .json extension and stay under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	if c.MinConfidence != nil {
		if *c.MinConfidence < 0 || *c.MinConfidence > 1 {
			return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
		}
	}
	if c.PeakPositionFrac != nil {
		if *c.PeakPositionFrac <= 0 || *c.PeakPositionFrac >= 1 {
			return fmt.Errorf("peak_position_frac must be in (0,1), got %f", *c.PeakPositionFrac)
		}
	}
	if c.MaxSampledFrames != nil && *c.MaxSampledFrames <= 0 {
		return fmt.Errorf("max_sampled_frames must be positive, got %d", *c.MaxSampledFrames)
	}
	if c.ReleaseHeightM != nil && *c.ReleaseHeightM <= 0 {
		return fmt.Errorf("release_height_m must be positive, got %f", *c.ReleaseHeightM)
	}
	if c.MarginM != nil && *c.MarginM < 0 {
		return fmt.Errorf("margin_m must be non-negative, got %f", *c.MarginM)
	}
	if c.PredictionTailPoints != nil && *c.PredictionTailPoints < 2 {
		return fmt.Errorf("prediction_tail_points must be at least 2, got %d", *c.PredictionTailPoints)
	}
	return nil
}

// TrackerConfig returns the tracker config with file overrides applied over
// the defaults.
func (c *TuningConfig) TrackerConfig() pitch.TrackerConfig {
	cfg := pitch.DefaultTrackerConfig()
	if c.SeedSampleRadiusPx != nil {
		cfg.SeedSampleRadiusPx = *c.SeedSampleRadiusPx
	}
	if c.MaxSampledFrames != nil {
		cfg.MaxSampledFrames = *c.MaxSampledFrames
	}
	if c.MinConfidence != nil {
		cfg.MinConfidence = *c.MinConfidence
	}
	return cfg
}

// TrajectoryConfig returns the trajectory config with file overrides applied
// over the defaults.
func (c *TuningConfig) TrajectoryConfig() pitch.TrajectoryConfig {
	cfg := pitch.DefaultTrajectoryConfig()
	if c.ReleaseHeightM != nil {
		cfg.ReleaseHeightM = *c.ReleaseHeightM
	}
	if c.PeakPositionFrac != nil {
		cfg.PeakPositionFrac = *c.PeakPositionFrac
	}
	if c.StumpStepM != nil {
		cfg.StumpStepM = *c.StumpStepM
	}
	return cfg
}

// LbwConfig returns the decision config with file overrides applied over the
// defaults.
func (c *TuningConfig) LbwConfig() pitch.LbwConfig {
	cfg := pitch.DefaultLbwConfig()
	if c.PredictionTailPoints != nil {
		cfg.PredictionTailPoints = *c.PredictionTailPoints
	}
	if c.MarginM != nil {
		cfg.MarginM = *c.MarginM
	}
	return cfg
}

// Analyzer builds a pipeline analyzer from the tuned component configs.
func (c *TuningConfig) Analyzer() *pitch.Analyzer {
	return &pitch.Analyzer{
		Tracker:    pitch.NewBallTracker(c.TrackerConfig()),
		Trajectory: c.TrajectoryConfig(),
		Lbw:        c.LbwConfig(),
	}
}
