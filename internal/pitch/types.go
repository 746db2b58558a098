// Package pitch implements the core ball-to-decision pipeline: seeded
// per-frame ball localisation, pixel-to-pitch-plane homography mapping,
// 3D trajectory reconstruction, and the rule-based LBW assessment.
//
// All types in this package are transient: they are computed per analysis
// request and discarded once the assessment is returned.
package pitch

import (
	"errors"
	"fmt"
)

// ICC-standard cricket dimensions (meters).
const (
	// WicketWidthM is the lateral span of the three stumps (9 inches).
	WicketWidthM = 0.2286
	// StumpHeightM is the stump height (28 inches).
	StumpHeightM = 0.71
	// BallRadiusM is the radius of a cricket ball.
	BallRadiusM = 0.036
	// StumpsPlaneX is the world X coordinate of the striker's stumps.
	StumpsPlaneX = 0.0
	// DefaultPitchLengthM is the crease-to-crease pitch length.
	DefaultPitchLengthM = 20.12
	// DefaultPitchWidthM is the full pitch width.
	DefaultPitchWidthM = 3.05
)

// ErrInvalidRequest indicates a structurally invalid request (bad segment,
// missing seed, non-positive dimensions) rejected before any work began.
var ErrInvalidRequest = errors.New("invalid request")

// ErrSingularCalibration indicates the four calibration correspondences are
// degenerate (collinear or duplicated) and no homography can be recovered.
var ErrSingularCalibration = errors.New("singular calibration configuration")

// ErrEmptyTrack indicates tracking produced no points, typically because no
// sampled frame decoded successfully.
var ErrEmptyTrack = errors.New("tracking produced no points")

// InsufficientDataError reports that an operation needed more points than the
// track provides. Have/Need give the caller enough context to construct an
// actionable "please re-select" message.
type InsufficientDataError struct {
	Op   string
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: have %d points, need %d", e.Op, e.Have, e.Need)
}

// PixelPoint is a position in image pixels.
type PixelPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WorldPoint is a position in meters on the pitch plane. X runs along the
// pitch length (0 = stumps at the striker's end, increasing toward the
// bowler); Y is lateral offset from the pitch centerline.
type WorldPoint struct {
	X float64 `json:"x_m"`
	Y float64 `json:"y_m"`
}

// BallTrackPoint is a single tracked ball position in pixel space.
type BallTrackPoint struct {
	TimeMs     int64      `json:"t_ms"`
	Pixel      PixelPoint `json:"pixel"`
	Confidence float64    `json:"confidence"`
}

// BallTrackResult is the output of BallTracker.Track. Points are ordered by
// strictly increasing TimeMs and all pixel coordinates lie within
// [0,FrameWidth) x [0,FrameHeight). Points may be empty when no sampled frame
// decoded; callers must treat that as insufficient data, not as an error.
type BallTrackResult struct {
	Points      []BallTrackPoint `json:"points"`
	FrameWidth  int              `json:"frame_width"`
	FrameHeight int              `json:"frame_height"`
}

// PitchPlaneTrackPoint pairs a tracked pixel with its homography-mapped
// pitch-plane position. Derived one-to-one from BallTrackPoint; samples whose
// transform produced non-finite coordinates are dropped.
type PitchPlaneTrackPoint struct {
	TimeMs     int64      `json:"t_ms"`
	Pixel      PixelPoint `json:"pixel"`
	World      WorldPoint `json:"world"`
	Confidence float64    `json:"confidence"`
}

// TrajectoryPoint3D is a reconstructed ball position; Z is height above the
// pitch plane in meters.
type TrajectoryPoint3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// EventEstimate is a heuristic index into a track (bounce or impact) with a
// confidence score.
type EventEstimate struct {
	Index      int     `json:"index"`
	Confidence float64 `json:"confidence"`
}

// Calibration carries the user-supplied pixel corners of the pitch plus its
// real-world dimensions. Corners are ordered striker-left, striker-right,
// bowler-right, bowler-left (clockwise from the striker's end).
type Calibration struct {
	CornersPx    [4]PixelPoint `json:"pitch_corners_px"`
	PitchLengthM float64       `json:"pitch_length_m"`
	PitchWidthM  float64       `json:"pitch_width_m"`
}

// Validate rejects unusable calibrations before any tracking work begins.
func (c Calibration) Validate() error {
	if c.PitchLengthM <= 0 || c.PitchWidthM <= 0 {
		return fmt.Errorf("calibration: pitch dimensions must be positive, got length=%v width=%v: %w",
			c.PitchLengthM, c.PitchWidthM, ErrInvalidRequest)
	}
	for i, p := range c.CornersPx {
		for j := 0; j < i; j++ {
			if p == c.CornersPx[j] {
				return fmt.Errorf("calibration: corners %d and %d are identical (%v): %w", j, i, p, ErrInvalidRequest)
			}
		}
	}
	return nil
}

// WorldCorners returns the pitch corner positions in world coordinates, in
// the same order as CornersPx: striker-left, striker-right, bowler-right,
// bowler-left. The striker's crease sits at X=0 and the centerline at Y=0.
func (c Calibration) WorldCorners() [4]WorldPoint {
	halfW := c.PitchWidthM / 2
	return [4]WorldPoint{
		{X: 0, Y: -halfW},
		{X: 0, Y: halfW},
		{X: c.PitchLengthM, Y: halfW},
		{X: c.PitchLengthM, Y: -halfW},
	}
}

// WicketDecision is the outcome classification of an LBW assessment.
type WicketDecision string

const (
	DecisionOut         WicketDecision = "out"
	DecisionNotOut      WicketDecision = "not_out"
	DecisionUmpiresCall WicketDecision = "umpires_call"
)

// LbwAssessment is the result of the rule-based LBW check.
type LbwAssessment struct {
	PitchedInLine     bool           `json:"pitching_in_line"`
	ImpactInLine      bool           `json:"impact_in_line"`
	WouldHitStumps    bool           `json:"wickets_hitting"`
	PredictedAtStumps WorldPoint     `json:"predicted_at_stumps"`
	Decision          WicketDecision `json:"decision"`
	DecisionText      string         `json:"decision_text"`
	Reason            string         `json:"reason"`
	Confidence        float64        `json:"confidence"`
}
