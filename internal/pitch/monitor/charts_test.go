package monitor

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocket-drs/crease.report/internal/pitch"
)

func sampleResult() *pitch.AnalysisResult {
	res := &pitch.AnalysisResult{
		Lbw: pitch.LbwAssessment{Decision: pitch.DecisionNotOut, DecisionText: "NOT OUT"},
	}
	for i := 0; i < 10; i++ {
		x := 5.0 - 0.5*float64(i)
		res.PitchPlane = append(res.PitchPlane, pitch.PitchPlaneTrackPoint{
			TimeMs:     int64(i) * 33,
			World:      pitch.WorldPoint{X: x, Y: 0.02 * float64(i)},
			Confidence: 0.9,
		})
		res.Trajectory = append(res.Trajectory, pitch.TrajectoryPoint3D{X: x, Y: 0.02 * float64(i), Z: 0.3})
	}
	return res
}

func TestRenderTrajectoryChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTrajectoryChart(&buf, sampleResult(), "Test delivery"))

	html := buf.String()
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "Test delivery")
	assert.Contains(t, html, "NOT OUT")
}

func TestRenderTrajectoryChartEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, RenderTrajectoryChart(&buf, &pitch.AnalysisResult{}, "x"))
	assert.Error(t, RenderTrajectoryChart(&buf, nil, "x"))
}

func TestRenderPitchPlaneChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderPitchPlaneChart(&buf, sampleResult(), "Test delivery"))

	html := buf.String()
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "Test delivery")
}

func TestRenderPitchPlaneChartEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, RenderPitchPlaneChart(&buf, &pitch.AnalysisResult{}, "x"))
}

func TestSavePitchPlanePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plane.png")
	require.NoError(t, SavePitchPlanePNG(sampleResult(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSavePitchPlanePNGEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plane.png")
	assert.Error(t, SavePitchPlanePNG(&pitch.AnalysisResult{}, path))
}
