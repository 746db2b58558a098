// Package monitor renders analysis results for inspection: interactive
// go-echarts HTML charts served by the API and gonum/plot PNG artifacts for
// offline runs.
package monitor

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/pocket-drs/crease.report/internal/pitch"
)

// RenderTrajectoryChart writes an interactive 3D line chart of the
// reconstructed ball path (pitch-plane X/Y in meters, height Z).
func RenderTrajectoryChart(w io.Writer, res *pitch.AnalysisResult, title string) error {
	if res == nil || len(res.Trajectory) == 0 {
		return fmt.Errorf("no trajectory to render")
	}

	data := make([]opts.Chart3DData, 0, len(res.Trajectory))
	for _, p := range res.Trajectory {
		data = append(data, opts.Chart3DData{Value: []interface{}{p.X, p.Y, p.Z}})
	}

	line := charts.NewLine3D()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Ball Trajectory",
			Theme:     "dark",
			Width:     "900px",
			Height:    "700px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("points=%d decision=%s", len(res.Trajectory), res.Lbw.DecisionText),
		}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "X (m, toward bowler)", Show: opts.Bool(true)}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "Y (m, lateral)", Show: opts.Bool(true)}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "Z (m, height)", Show: opts.Bool(true)}),
	)
	line.AddSeries("trajectory", data)

	return line.Render(w)
}

// RenderPitchPlaneChart writes a scatter chart of the pitch-plane track with
// per-point confidence on the colour scale.
func RenderPitchPlaneChart(w io.Writer, res *pitch.AnalysisResult, title string) error {
	if res == nil || len(res.PitchPlane) == 0 {
		return fmt.Errorf("no pitch-plane track to render")
	}

	data := make([]opts.ScatterData, 0, len(res.PitchPlane))
	maxX := 0.0
	for _, p := range res.PitchPlane {
		if p.World.X > maxX {
			maxX = p.World.X
		}
		data = append(data, opts.ScatterData{Value: []interface{}{p.World.X, p.World.Y, p.Confidence}})
	}
	pad := maxX * 1.05
	if pad == 0 {
		pad = 1.0
	}

	band := pitch.StumpBandHalfWidthM()
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Pitch Plane Track", Theme: "dark", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("points=%d stump band=±%.3fm", len(data), band),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -2, Max: 2, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			Dimension:  "2",
		}),
	)
	scatter.AddSeries("track", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	return scatter.Render(w)
}
