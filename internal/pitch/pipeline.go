package pitch

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
)

// Stage names reported through the progress callback, in pipeline order.
const (
	StageDecode   = "decode"
	StageTracking = "tracking"
	StageCalib    = "calibration"
	StageEvents   = "events"
	StageLbw      = "lbw"
	StageFinalize = "finalize"
	StageDone     = "done"
)

// ProgressFunc receives coarse pipeline progress (percent, stage name).
type ProgressFunc func(pct int, stage string)

// Segment bounds the analysed portion of the clip.
type Segment struct {
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
}

// TrackingParams carries the user's seeded-tracking settings.
type TrackingParams struct {
	SeedPx         PixelPoint `json:"seed_px"`
	SampleFps      int        `json:"sample_fps"`
	SearchRadiusPx int        `json:"search_radius_px"`
	MaxFrames      int        `json:"max_frames"`
}

// Overrides lets the user pin the bounce/impact indices instead of the
// heuristics.
type Overrides struct {
	BounceIndex *int `json:"bounce_index,omitempty"`
	ImpactIndex *int `json:"impact_index,omitempty"`
}

// AnalysisRequest is one full ball-to-decision run.
type AnalysisRequest struct {
	Frames      FrameSource
	Segment     Segment
	Tracking    TrackingParams
	Calibration Calibration
	Overrides   Overrides
	Progress    ProgressFunc
}

// AnalysisResult aggregates every pipeline output for the caller to render.
type AnalysisResult struct {
	Track            BallTrackResult        `json:"track"`
	PitchPlane       []PitchPlaneTrackPoint `json:"pitch_plane"`
	HomographyMatrix [3][3]float64          `json:"homography"`
	Bounce           EventEstimate          `json:"bounce"`
	Impact           EventEstimate          `json:"impact"`
	Trajectory       []TrajectoryPoint3D    `json:"trajectory"`
	Lbw              LbwAssessment          `json:"lbw"`
	BallSpeedMps     float64                `json:"ball_speed_mps"`
	Warnings         []string               `json:"warnings,omitempty"`
}

// Analyzer runs the full pipeline for independent requests. It holds only
// immutable configuration and is safe for concurrent use.
type Analyzer struct {
	Tracker    *BallTracker
	Trajectory TrajectoryConfig
	Lbw        LbwConfig
}

// NewAnalyzer wires an analyzer with default component configs.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		Tracker:    NewBallTracker(DefaultTrackerConfig()),
		Trajectory: DefaultTrajectoryConfig(),
		Lbw:        DefaultLbwConfig(),
	}
}

// Run executes track -> homography -> pitch-plane mapping -> events ->
// trajectory -> LBW for one request. Per-frame decode failures are recovered
// locally and reported as warnings; structural failures (degenerate
// calibration, empty track, insufficient fit data) propagate as typed errors.
func (a *Analyzer) Run(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	progress := req.Progress
	if progress == nil {
		progress = func(int, string) {}
	}

	// Configuration failures surface before any tracking work begins.
	hom, err := CalibrationHomography(req.Calibration)
	if err != nil {
		return nil, err
	}

	progress(5, StageDecode)

	rec := &recordingFrameSource{src: req.Frames}
	tracker := a.Tracker
	if tracker == nil {
		tracker = NewBallTracker(DefaultTrackerConfig())
	}
	if req.Tracking.MaxFrames > 0 {
		cfg := tracker.cfg
		cfg.MaxSampledFrames = req.Tracking.MaxFrames
		tracker = NewBallTracker(cfg)
	}

	progress(35, StageTracking)
	track, err := tracker.Track(ctx, TrackRequest{
		Frames:         rec,
		StartMs:        req.Segment.StartMs,
		EndMs:          req.Segment.EndMs,
		SampleFps:      req.Tracking.SampleFps,
		Seed:           req.Tracking.SeedPx,
		SearchRadiusPx: req.Tracking.SearchRadiusPx,
	})
	if err != nil {
		return nil, err
	}
	if len(track.Points) == 0 {
		return nil, fmt.Errorf("segment [%d,%d]ms: %w", req.Segment.StartMs, req.Segment.EndMs, ErrEmptyTrack)
	}

	progress(60, StageCalib)
	plane := hom.MapTrack(track.Points)
	if len(plane) == 0 {
		return nil, fmt.Errorf("all %d tracked points mapped outside the pitch plane: %w",
			len(track.Points), ErrEmptyTrack)
	}

	progress(75, StageEvents)
	yPx := make([]float64, len(plane))
	for i, p := range plane {
		yPx[i] = p.Pixel.Y
	}
	bounce := EstimateBounceIndex(yPx)
	if req.Overrides.BounceIndex != nil {
		bounce = EventEstimate{Index: ClampEventIndex(*req.Overrides.BounceIndex, len(plane)), Confidence: 1}
	}
	impact := EstimateImpactIndex(len(plane))
	if req.Overrides.ImpactIndex != nil {
		impact = EventEstimate{Index: ClampEventIndex(*req.Overrides.ImpactIndex, len(plane)), Confidence: 1}
	}
	bounce.Index = ClampEventIndex(bounce.Index, len(plane))
	impact.Index = ClampEventIndex(impact.Index, len(plane))

	world := make([]WorldPoint, len(plane))
	times := make([]int64, len(plane))
	for i, p := range plane {
		world[i] = p.World
		times[i] = p.TimeMs
	}
	traj := EstimateTrajectory(world, times, bounce.Index, a.Trajectory)
	traj = ExtendToStumps(traj, impact.Index, a.Trajectory)

	progress(85, StageLbw)
	lbw, err := AssessLbw(plane, bounce.Index, impact.Index, a.Lbw)
	if err != nil {
		return nil, err
	}

	progress(98, StageFinalize)
	res := &AnalysisResult{
		Track:            track,
		PitchPlane:       plane,
		HomographyMatrix: hom.Matrix(),
		Bounce:           bounce,
		Impact:           impact,
		Trajectory:       traj,
		Lbw:              lbw,
		BallSpeedMps:     estimateSpeedMps(plane, bounce.Index, impact.Index),
		Warnings:         rec.warnings(),
	}
	progress(100, StageDone)
	return res, nil
}

// estimateSpeedMps derives the post-bounce ball speed from pitch-plane
// displacement over elapsed time. Returns 0 when the window is degenerate.
func estimateSpeedMps(plane []PitchPlaneTrackPoint, from, to int) float64 {
	if from < 0 || to >= len(plane) || to <= from {
		return 0
	}
	a, b := plane[from], plane[to]
	dtS := float64(b.TimeMs-a.TimeMs) / 1000
	if dtS <= 0 {
		return 0
	}
	dx := b.World.X - a.World.X
	dy := b.World.Y - a.World.Y
	return math.Hypot(dx, dy) / dtS
}

// recordingFrameSource passes frames through while collecting per-frame
// decode failures as user-facing warnings.
type recordingFrameSource struct {
	src FrameSource

	mu   sync.Mutex
	errs []string
}

func (r *recordingFrameSource) FrameAt(ctx context.Context, timeMs int64) (image.Image, error) {
	img, err := r.src.FrameAt(ctx, timeMs)
	if err != nil && ctx.Err() == nil {
		r.mu.Lock()
		r.errs = append(r.errs, fmt.Sprintf("frame at %dms: %v", timeMs, err))
		r.mu.Unlock()
	}
	return img, err
}

func (r *recordingFrameSource) warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errs...)
}
