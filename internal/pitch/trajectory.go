package pitch

// TrajectoryConfig holds the physical height model parameters. The pre-bounce
// arc is a cosmetic approximation (no true depth sensing), so these are
// tunable rather than measured.
type TrajectoryConfig struct {
	// ReleaseHeightM scales the peak of the pre-bounce arc.
	ReleaseHeightM float64
	// PeakPositionFrac places the arc's maximum as a fraction of the
	// pre-bounce segment (0..1); deliveries peak shortly before the bounce.
	PeakPositionFrac float64
	// StumpStepM is the world-x spacing of synthetic points appended by
	// ExtendToStumps.
	StumpStepM float64
}

// DefaultTrajectoryConfig returns the standard height model.
func DefaultTrajectoryConfig() TrajectoryConfig {
	return TrajectoryConfig{
		ReleaseHeightM:   2.0,
		PeakPositionFrac: 0.4,
		StumpStepM:       0.25,
	}
}

// EstimateTrajectory reconstructs a 3D path from a pitch-plane track. Height
// before and at bounceIndex follows a normalized parabolic arc that is zero
// at the first point and at the bounce, with its maximum proportional to the
// configured release height. After the bounce the model holds height at zero:
// only the horizontal pitch-plane path matters for the post-bounce segment.
//
// bounceIndex 0 degenerates to a flat arc (denominator treated as 1);
// bounceIndex past the end is clamped.
func EstimateTrajectory(points []WorldPoint, timesMs []int64, bounceIndex int, cfg TrajectoryConfig) []TrajectoryPoint3D {
	n := len(points)
	if n == 0 {
		return nil
	}
	if bounceIndex < 0 {
		bounceIndex = 0
	}
	if bounceIndex >= n {
		bounceIndex = n - 1
	}

	span := float64(bounceIndex)
	if span < 1 {
		span = 1
	}
	peakAt := cfg.PeakPositionFrac * span
	if peakAt <= 0 {
		peakAt = span / 2
	}

	out := make([]TrajectoryPoint3D, n)
	for i, p := range points {
		var z float64
		if i <= bounceIndex && bounceIndex > 0 {
			// Parabola through z(0)=0 and z(span)=0 with apex at peakAt.
			// Normalised so the apex equals ReleaseHeightM/2.
			t := float64(i)
			z = arcHeight(t, span, peakAt) * cfg.ReleaseHeightM / 2
			if z < 0 {
				z = 0
			}
		}
		out[i] = TrajectoryPoint3D{X: p.X, Y: p.Y, Z: z}
	}
	_ = timesMs // timing is carried by the caller; the arc is index-parametric
	return out
}

// arcHeight evaluates a normalized arc that is 0 at t=0 and t=span and 1 at
// t=peak, built from two parabolic half-segments so the apex can sit off
// center.
func arcHeight(t, span, peak float64) float64 {
	if span <= 0 {
		return 0
	}
	if t <= peak {
		if peak <= 0 {
			return 0
		}
		u := t / peak
		return u * (2 - u)
	}
	rest := span - peak
	if rest <= 0 {
		return 0
	}
	u := (t - peak) / rest
	return 1 - u*u
}

// ExtendToStumps appends synthetic points continuing the path from the point
// at impactIndex to the stumps plane (world x = 0) by linear interpolation at
// height zero, so the visualized and assessed path reaches the stumps.
// impactIndex at or beyond the track length is clamped to the last point.
func ExtendToStumps(track []TrajectoryPoint3D, impactIndex int, cfg TrajectoryConfig) []TrajectoryPoint3D {
	n := len(track)
	if n == 0 {
		return nil
	}
	if impactIndex < 0 {
		impactIndex = 0
	}
	if impactIndex >= n {
		impactIndex = n - 1
	}

	from := track[impactIndex]
	out := append([]TrajectoryPoint3D(nil), track...)
	if from.X <= StumpsPlaneX {
		return out
	}

	// Direction of lateral travel per meter of x, from the segment into the
	// impact point when available.
	var dyPerDx float64
	if impactIndex > 0 {
		prev := track[impactIndex-1]
		if dx := from.X - prev.X; dx != 0 {
			dyPerDx = (from.Y - prev.Y) / dx
		}
	}

	step := cfg.StumpStepM
	if step <= 0 {
		step = DefaultTrajectoryConfig().StumpStepM
	}
	for x := from.X - step; x > StumpsPlaneX; x -= step {
		out = append(out, TrajectoryPoint3D{
			X: x,
			Y: from.Y + dyPerDx*(x-from.X),
			Z: 0,
		})
	}
	out = append(out, TrajectoryPoint3D{
		X: StumpsPlaneX,
		Y: from.Y + dyPerDx*(StumpsPlaneX-from.X),
		Z: 0,
	})
	return out
}
