package monitor

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/pocket-drs/crease.report/internal/pitch"
)

// SavePitchPlanePNG writes a top-down PNG of the pitch-plane track with the
// stump band marked, for run artifacts.
func SavePitchPlanePNG(res *pitch.AnalysisResult, path string) error {
	if res == nil || len(res.PitchPlane) == 0 {
		return fmt.Errorf("no pitch-plane track to plot")
	}

	p := plot.New()
	p.Title.Text = "Pitch-plane ball track"
	p.X.Label.Text = "X (m, toward bowler)"
	p.Y.Label.Text = "Y (m, lateral)"

	pts := make(plotter.XYs, 0, len(res.PitchPlane))
	for _, tp := range res.PitchPlane {
		pts = append(pts, plotter.XY{X: tp.World.X, Y: tp.World.Y})
	}

	track, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("track line: %w", err)
	}
	track.Width = vg.Points(1)
	p.Add(track)
	p.Legend.Add("track", track)

	// Stump band edges at the striker's end.
	band := pitch.StumpBandHalfWidthM()
	maxX := pts[0].X
	for _, pt := range pts {
		if pt.X > maxX {
			maxX = pt.X
		}
	}
	for _, edge := range []float64{band, -band} {
		line, err := plotter.NewLine(plotter.XYs{{X: 0, Y: edge}, {X: maxX, Y: edge}})
		if err != nil {
			return fmt.Errorf("band line: %w", err)
		}
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(line)
	}

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
