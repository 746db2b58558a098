package api

import (
	"fmt"

	"github.com/pocket-drs/crease.report/internal/pitch"
)

// SourceRequest selects where frames come from. Codec work stays behind the
// frames.Decoder boundary; the built-in "synthetic" kind renders a
// deterministic delivery for demos and integration tests, while callers can
// register additional kinds through the server's source factory.
type SourceRequest struct {
	Kind       string `json:"kind"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// SegmentRequest bounds the analysed portion of the clip in milliseconds.
type SegmentRequest struct {
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
}

// TrackingRequest carries seeded-tracking settings.
type TrackingRequest struct {
	SeedPx         *pitch.PixelPoint `json:"seed_px"`
	SampleFps      int               `json:"sample_fps"`
	MaxFrames      int               `json:"max_frames"`
	SearchRadiusPx int               `json:"search_radius_px"`
}

// PitchDimensions is the real-world pitch size in meters.
type PitchDimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
}

// CalibrationRequest carries the four tapped pitch corners plus dimensions.
type CalibrationRequest struct {
	PitchCornersPx   []pitch.PixelPoint `json:"pitch_corners_px"`
	PitchDimensionsM PitchDimensions    `json:"pitch_dimensions_m"`
}

// OverridesRequest lets the client pin bounce/impact indices.
type OverridesRequest struct {
	BounceIndex *int `json:"bounce_index,omitempty"`
	ImpactIndex *int `json:"impact_index,omitempty"`
}

// CreateJobRequest is the submit payload.
type CreateJobRequest struct {
	Source      SourceRequest      `json:"source"`
	Segment     SegmentRequest     `json:"segment"`
	Tracking    TrackingRequest    `json:"tracking"`
	Calibration CalibrationRequest `json:"calibration"`
	Overrides   *OverridesRequest  `json:"overrides,omitempty"`
}

// Validate rejects malformed requests before a job is created. The checks
// mirror the pipeline's own validation so clients get a 400 rather than a
// failed job.
func (r *CreateJobRequest) Validate() error {
	if r.Segment.StartMs < 0 || r.Segment.EndMs <= r.Segment.StartMs {
		return fmt.Errorf("segment: end_ms must be > start_ms (got [%d,%d])", r.Segment.StartMs, r.Segment.EndMs)
	}
	if r.Tracking.SeedPx == nil {
		return fmt.Errorf("tracking: seed_px is required")
	}
	if r.Tracking.SampleFps <= 0 || r.Tracking.SampleFps > 240 {
		return fmt.Errorf("tracking: sample_fps must be in 1..240 (got %d)", r.Tracking.SampleFps)
	}
	if r.Tracking.SearchRadiusPx <= 0 {
		return fmt.Errorf("tracking: search_radius_px must be positive (got %d)", r.Tracking.SearchRadiusPx)
	}
	if len(r.Calibration.PitchCornersPx) != 4 {
		return fmt.Errorf("calibration: pitch_corners_px must contain exactly 4 points (got %d)", len(r.Calibration.PitchCornersPx))
	}
	if r.Calibration.PitchDimensionsM.Length <= 0 || r.Calibration.PitchDimensionsM.Width <= 0 {
		return fmt.Errorf("calibration: pitch_dimensions_m must be positive")
	}
	return nil
}

// Calibration converts the wire shape into the pipeline's calibration.
func (r *CreateJobRequest) CalibrationValue() pitch.Calibration {
	var corners [4]pitch.PixelPoint
	copy(corners[:], r.Calibration.PitchCornersPx)
	return pitch.Calibration{
		CornersPx:    corners,
		PitchLengthM: r.Calibration.PitchDimensionsM.Length,
		PitchWidthM:  r.Calibration.PitchDimensionsM.Width,
	}
}

// APIError is the wire error shape.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ProgressInfo reports coarse pipeline progress.
type ProgressInfo struct {
	Pct   int    `json:"pct"`
	Stage string `json:"stage"`
}

// CreateJobResponse acknowledges a submitted job.
type CreateJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobStatusResponse is the polling payload.
type JobStatusResponse struct {
	JobID    string        `json:"job_id"`
	Status   string        `json:"status"`
	Progress *ProgressInfo `json:"progress,omitempty"`
	Error    *APIError     `json:"error,omitempty"`
}
