// Package main provides an offline analysis tool. It runs the full
// ball-to-decision pipeline over a synthetic clip and prints the outcome,
// optionally saving a pitch-plane plot and interactive charts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/pocket-drs/crease.report/internal/config"
	"github.com/pocket-drs/crease.report/internal/frames"
	"github.com/pocket-drs/crease.report/internal/pitch"
	"github.com/pocket-drs/crease.report/internal/pitch/monitor"
	"github.com/pocket-drs/crease.report/internal/units"
)

var (
	durationMs  = flag.Int64("duration-ms", 800, "Clip duration in milliseconds")
	sampleFps   = flag.Int("fps", 30, "Tracking sample rate in frames per second")
	searchPx    = flag.Int("search-px", 40, "Search window radius in pixels")
	speedUnits  = flag.String("units", units.KPH, "Ball speed units ("+units.ValidUnitsString()+")")
	outPlot     = flag.String("plot", "", "Write a pitch-plane PNG plot to this path")
	outCharts   = flag.String("charts-dir", "", "Write interactive HTML charts into this directory")
	showMatrix  = flag.Bool("matrix", false, "Print the calibration homography matrix")
	showWarns   = flag.Bool("warnings", true, "Print decode warnings")
	pitchLength = flag.Float64("pitch-length", pitch.DefaultPitchLengthM, "Pitch length in metres")
	pitchWidth  = flag.Float64("pitch-width", pitch.DefaultPitchWidthM, "Pitch width in metres")
	tuningFile  = flag.String("config", "", "Optional JSON tuning config for the analysis pipeline")
)

func main() {
	flag.Parse()

	if !units.IsValid(*speedUnits) {
		log.Fatalf("Invalid units %q (valid: %s)", *speedUnits, units.ValidUnitsString())
	}

	clip := frames.NewSyntheticClip(*durationMs)
	provider := frames.NewProvider(clip)
	defer provider.Close()

	seedX, seedY := clip.BallAt(0)

	req := pitch.AnalysisRequest{
		Frames:  frames.NewImageSource(provider),
		Segment: pitch.Segment{StartMs: 0, EndMs: *durationMs},
		Tracking: pitch.TrackingParams{
			SeedPx:         pitch.PixelPoint{X: seedX, Y: seedY},
			SampleFps:      *sampleFps,
			SearchRadiusPx: *searchPx,
		},
		Calibration: syntheticCalibration(clip, *pitchLength, *pitchWidth),
		Progress: func(pct int, stage string) {
			log.Printf("[%3d%%] %s", pct, stage)
		},
	}

	analyzer := pitch.NewAnalyzer()
	if *tuningFile != "" {
		tuning, err := config.LoadTuningConfig(*tuningFile)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
		analyzer = tuning.Analyzer()
	}

	res, err := analyzer.Run(context.Background(), req)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	printResult(res)

	if *outPlot != "" {
		if err := monitor.SavePitchPlanePNG(res, *outPlot); err != nil {
			log.Fatalf("Failed to save plot: %v", err)
		}
		fmt.Printf("Pitch-plane plot written to %s\n", *outPlot)
	}

	if *outCharts != "" {
		if err := writeCharts(res, *outCharts); err != nil {
			log.Fatalf("Failed to write charts: %v", err)
		}
		fmt.Printf("Charts written to %s\n", *outCharts)
	}
}

// syntheticCalibration maps the synthetic frame corners onto a pitch of the
// given dimensions. The clip draws the ball travelling across the full frame,
// so the frame edges stand in for the pitch edges.
func syntheticCalibration(clip *frames.SyntheticClip, lengthM, widthM float64) pitch.Calibration {
	w := float64(clip.Width)
	h := float64(clip.Height)
	return pitch.Calibration{
		CornersPx: [4]pitch.PixelPoint{
			{X: 0, Y: h},
			{X: 0, Y: 0},
			{X: w, Y: 0},
			{X: w, Y: h},
		},
		PitchLengthM: lengthM,
		PitchWidthM:  widthM,
	}
}

func printResult(res *pitch.AnalysisResult) {
	fmt.Printf("Tracked %d points in a %dx%d frame\n",
		len(res.Track.Points), res.Track.FrameWidth, res.Track.FrameHeight)
	fmt.Printf("Bounce at index %d (confidence %.2f), impact at index %d (confidence %.2f)\n",
		res.Bounce.Index, res.Bounce.Confidence, res.Impact.Index, res.Impact.Confidence)
	fmt.Printf("Ball speed: %.1f %s\n", units.ConvertSpeed(res.BallSpeedMps, *speedUnits), *speedUnits)
	fmt.Printf("Decision: %s (%s, confidence %.2f)\n",
		res.Lbw.DecisionText, res.Lbw.Reason, res.Lbw.Confidence)

	if *showMatrix {
		for _, row := range res.HomographyMatrix {
			fmt.Printf("  [%12.6f %12.6f %12.6f]\n", row[0], row[1], row[2])
		}
	}
	if *showWarns {
		for _, warn := range res.Warnings {
			fmt.Printf("Warning: %s\n", warn)
		}
	}
}

func writeCharts(res *pitch.AnalysisResult, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	trajectory, err := os.Create(filepath.Join(dir, "trajectory.html"))
	if err != nil {
		return err
	}
	defer trajectory.Close()
	if err := monitor.RenderTrajectoryChart(trajectory, res, "Synthetic delivery"); err != nil {
		return err
	}

	plane, err := os.Create(filepath.Join(dir, "pitch-plane.html"))
	if err != nil {
		return err
	}
	defer plane.Close()
	return monitor.RenderPitchPlaneChart(plane, res, "Synthetic delivery")
}
