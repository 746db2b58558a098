package pitch

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// LbwConfig holds the decision-engine parameters. The umpire's-call margin is
// not dictated by the law itself, so it stays configurable.
type LbwConfig struct {
	// PredictionTailPoints is how many points at/after the impact feed the
	// straight-line fit toward the stumps.
	PredictionTailPoints int
	// MarginM is the safety band around the stump-line edges inside which a
	// passing check becomes umpire's call.
	MarginM float64
	// MinFitWeight is the floor applied to per-point confidences when used as
	// regression weights.
	MinFitWeight float64
}

// DefaultLbwConfig returns the standard decision parameters (1cm umpire's
// call band, five-point prediction tail).
func DefaultLbwConfig() LbwConfig {
	return LbwConfig{
		PredictionTailPoints: 5,
		MarginM:              0.01,
		MinFitWeight:         1e-3,
	}
}

// StumpBandHalfWidthM is the lateral half-span used for the in-line and
// hitting checks: stump width plus one ball radius either side, matching the
// "leg stump to off stump" reading of the LBW law.
func StumpBandHalfWidthM() float64 {
	return WicketWidthM/2 + BallRadiusM
}

// AssessLbw classifies a pitch-plane track against the stump geometry.
//
// pitchIndex and impactIndex locate the bounce and the pad impact within the
// track (clamped into range). The three checks are: ball pitched in line (not
// outside leg stump), impact in line, and the straight-line projection from
// the prediction tail crossing the stumps plane inside the stump band. The
// decision is Out only when all three pass cleanly; a hitting check inside
// cfg.MarginM of the band edge returns UmpiresCall.
//
// Fewer than 2 usable points in the prediction tail means the fit is
// undefined and an InsufficientDataError is returned instead of a guess.
func AssessLbw(points []PitchPlaneTrackPoint, pitchIndex, impactIndex int, cfg LbwConfig) (LbwAssessment, error) {
	n := len(points)
	if n < 2 {
		return LbwAssessment{}, &InsufficientDataError{Op: "lbw assess", Have: n, Need: 2}
	}
	if cfg.PredictionTailPoints <= 0 {
		cfg.PredictionTailPoints = DefaultLbwConfig().PredictionTailPoints
	}
	if cfg.MinFitWeight <= 0 {
		cfg.MinFitWeight = DefaultLbwConfig().MinFitWeight
	}

	pitchIndex = clampInt(pitchIndex, 0, n-1)
	impactIndex = clampInt(impactIndex, 0, n-1)
	if impactIndex <= 0 {
		impactIndex = n - 1
	}

	band := StumpBandHalfWidthM()
	pitchY := points[pitchIndex].World.Y
	impactY := points[impactIndex].World.Y

	// Leg side is inferred from the impact's lateral sign: the batter stands
	// on the opposite side of the centerline from the off side.
	legSign := 1.0
	if impactY < 0 {
		legSign = -1.0
	}

	pitchedInLine := pitchY*legSign <= band
	impactInLine := math.Abs(impactY) <= band

	predicted, rsq, err := predictAtStumps(points, pitchIndex, impactIndex, cfg)
	if err != nil {
		return LbwAssessment{}, err
	}

	distToCenter := math.Abs(predicted.Y)
	hitting := distToCenter <= band

	a := LbwAssessment{
		PitchedInLine:     pitchedInLine,
		ImpactInLine:      impactInLine,
		WouldHitStumps:    hitting,
		PredictedAtStumps: predicted,
		Confidence:        clampFloat(0.2+0.8*rsq, 0, 1),
	}

	switch {
	case !pitchedInLine:
		a.Decision = DecisionNotOut
		a.Reason = "Pitched outside leg stump"
	case !impactInLine:
		a.Decision = DecisionNotOut
		a.Reason = "Impact outside off stump line"
	case hitting && math.Abs(distToCenter-band) <= cfg.MarginM:
		a.Decision = DecisionUmpiresCall
		a.Reason = "Projected clipping stumps (margin)"
	case hitting:
		a.Decision = DecisionOut
		a.Reason = "Projected to hit stumps"
	default:
		a.Decision = DecisionNotOut
		a.Reason = "Projected to miss stumps"
	}
	a.DecisionText = decisionText(a.Decision)
	return a, nil
}

// predictAtStumps fits world-y as a straight line in world-x over the last
// cfg.PredictionTailPoints points at/after the bounce, weighted by point
// confidence, and evaluates it at the stumps plane. Returns the predicted
// point and an r-squared fit quality in [0,1].
func predictAtStumps(points []PitchPlaneTrackPoint, pitchIndex, impactIndex int, cfg LbwConfig) (WorldPoint, float64, error) {
	i0 := clampInt(pitchIndex, 0, impactIndex)
	i1 := impactIndex

	// Prefer the tail closest to the impact.
	if i1-i0+1 > cfg.PredictionTailPoints {
		i0 = i1 - cfg.PredictionTailPoints + 1
	}

	var xs, ys, ws []float64
	for i := i0; i <= i1; i++ {
		w := points[i].World
		if !isFinite(w.X) || !isFinite(w.Y) {
			continue
		}
		xs = append(xs, w.X)
		ys = append(ys, w.Y)
		ws = append(ws, math.Max(cfg.MinFitWeight, points[i].Confidence))
	}
	if len(xs) < 2 {
		return WorldPoint{}, 0, &InsufficientDataError{Op: "stumps prediction fit", Have: len(xs), Need: 2}
	}

	// Degenerate in x (ball not advancing): a line y(x) is undefined.
	if math.Abs(maxOf(xs)-minOf(xs)) < 1e-9 {
		return WorldPoint{}, 0, &InsufficientDataError{Op: "stumps prediction fit", Have: 1, Need: 2}
	}

	alpha, beta := stat.LinearRegression(xs, ys, ws, false)
	yAtStumps := alpha + beta*StumpsPlaneX
	if !isFinite(yAtStumps) {
		return WorldPoint{}, 0, fmt.Errorf("stumps prediction fit produced non-finite value")
	}

	// r-squared against the fitted line, as a fit-quality signal.
	var ssRes, ssTot, meanY float64
	for _, y := range ys {
		meanY += y
	}
	meanY /= float64(len(ys))
	for i := range xs {
		pred := alpha + beta*xs[i]
		ssRes += (ys[i] - pred) * (ys[i] - pred)
		ssTot += (ys[i] - meanY) * (ys[i] - meanY)
	}
	rsq := 0.0
	if ssTot > 1e-12 {
		rsq = clampFloat(1-ssRes/ssTot, 0, 1)
	}

	return WorldPoint{X: StumpsPlaneX, Y: yAtStumps}, rsq, nil
}

func decisionText(d WicketDecision) string {
	switch d {
	case DecisionOut:
		return "OUT"
	case DecisionUmpiresCall:
		return "UMPIRE'S CALL"
	default:
		return "NOT OUT"
	}
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
