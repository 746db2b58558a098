package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocket-drs/crease.report/internal/pitch"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTuningConfigPartial(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{
		"max_sampled_frames": 90,
		"margin_m": 0.02
	}`)

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	tracker := cfg.TrackerConfig()
	assert.Equal(t, 90, tracker.MaxSampledFrames)
	assert.Equal(t, pitch.DefaultTrackerConfig().MinConfidence, tracker.MinConfidence,
		"omitted fields keep defaults")

	lbw := cfg.LbwConfig()
	assert.Equal(t, 0.02, lbw.MarginM)
	assert.Equal(t, pitch.DefaultLbwConfig().PredictionTailPoints, lbw.PredictionTailPoints)

	traj := cfg.TrajectoryConfig()
	assert.Equal(t, pitch.DefaultTrajectoryConfig(), traj)
}

func TestLoadTuningConfigRejectsWrongExtension(t *testing.T) {
	path := writeConfig(t, "tuning.yaml", `{}`)
	_, err := LoadTuningConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json extension")
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadTuningConfigMalformedJSON(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{not json`)
	_, err := LoadTuningConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config JSON")
}

func TestTuningConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"min_confidence out of range", `{"min_confidence": 1.5}`},
		{"peak_position_frac at bound", `{"peak_position_frac": 1.0}`},
		{"non-positive max frames", `{"max_sampled_frames": 0}`},
		{"negative margin", `{"margin_m": -0.01}`},
		{"tail too short", `{"prediction_tail_points": 1}`},
		{"non-positive release height", `{"release_height_m": 0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "tuning.json", tt.content)
			_, err := LoadTuningConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestAnalyzerFromConfig(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{
		"release_height_m": 2.4,
		"prediction_tail_points": 7
	}`)

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	a := cfg.Analyzer()
	require.NotNil(t, a.Tracker)
	assert.Equal(t, 2.4, a.Trajectory.ReleaseHeightM)
	assert.Equal(t, 7, a.Lbw.PredictionTailPoints)
}

func TestEmptyTuningConfigUsesDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, pitch.DefaultTrackerConfig(), cfg.TrackerConfig())
	assert.Equal(t, pitch.DefaultLbwConfig(), cfg.LbwConfig())
}
