package pitch

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// minDeterminant is the threshold below which the DLT system is treated as
// singular rather than solved.
const minDeterminant = 1e-12

// Homography is an invertible 3x3 projective matrix (up to scale) mapping
// image pixels onto the pitch plane. It is immutable after construction.
type Homography struct {
	h [9]float64
}

// NewHomography solves the direct linear transform mapping src[i] -> dst[i]
// for four point correspondences. Each correspondence contributes two linear
// equations in the eight unknown matrix entries (the last entry is fixed to
// 1), giving an 8x8 system solved by LU factorization with partial pivoting.
//
// A singular system (collinear or duplicate correspondences) returns
// ErrSingularCalibration; callers never receive a degenerate matrix.
func NewHomography(src [4]PixelPoint, dst [4]WorldPoint) (*Homography, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		r := 2 * i

		// u = (h0 x + h1 y + h2) / (h6 x + h7 y + 1)
		a.SetRow(r, []float64{x, y, 1, 0, 0, 0, -x * u, -y * u})
		b.SetVec(r, u)

		// v = (h3 x + h4 y + h5) / (h6 x + h7 y + 1)
		a.SetRow(r+1, []float64{0, 0, 0, x, y, 1, -x * v, -y * v})
		b.SetVec(r+1, v)
	}

	var lu mat.LU
	lu.Factorize(a)
	if det := lu.Det(); math.IsNaN(det) || math.Abs(det) < minDeterminant {
		return nil, fmt.Errorf("homography from 4 correspondences (det=%.3g): %w", lu.Det(), ErrSingularCalibration)
	}

	var sol mat.VecDense
	if err := lu.SolveVecTo(&sol, false, b); err != nil {
		return nil, fmt.Errorf("homography solve: %v: %w", err, ErrSingularCalibration)
	}

	var h Homography
	for i := 0; i < 8; i++ {
		h.h[i] = sol.AtVec(i)
	}
	h.h[8] = 1
	return &h, nil
}

// CalibrationHomography builds the pixel-to-meter mapping for a validated
// calibration, pairing the tapped pixel corners with the real-world pitch
// corners.
func CalibrationHomography(cal Calibration) (*Homography, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	wc := cal.WorldCorners()
	h, err := NewHomography(cal.CornersPx, wc)
	if err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}
	return h, nil
}

// Transform applies the homogeneous transform to p and normalizes by the
// homogeneous coordinate. When that coordinate is ~0 (the point sits on the
// horizon line of the mapping) the result has non-finite coordinates, which
// downstream consumers must detect and discard.
func (h *Homography) Transform(p PixelPoint) WorldPoint {
	w := h.h[6]*p.X + h.h[7]*p.Y + h.h[8]
	return WorldPoint{
		X: (h.h[0]*p.X + h.h[1]*p.Y + h.h[2]) / w,
		Y: (h.h[3]*p.X + h.h[4]*p.Y + h.h[5]) / w,
	}
}

// Matrix returns the row-major 3x3 matrix entries, for diagnostics and for
// the result payload.
func (h *Homography) Matrix() [3][3]float64 {
	return [3][3]float64{
		{h.h[0], h.h[1], h.h[2]},
		{h.h[3], h.h[4], h.h[5]},
		{h.h[6], h.h[7], h.h[8]},
	}
}

// MapTrack converts a pixel track to the pitch plane, dropping samples whose
// transform produced non-finite coordinates.
func (h *Homography) MapTrack(points []BallTrackPoint) []PitchPlaneTrackPoint {
	out := make([]PitchPlaneTrackPoint, 0, len(points))
	for _, p := range points {
		w := h.Transform(p.Pixel)
		if !isFinite(w.X) || !isFinite(w.Y) {
			continue
		}
		out = append(out, PitchPlaneTrackPoint{
			TimeMs:     p.TimeMs,
			Pixel:      p.Pixel,
			World:      w,
			Confidence: p.Confidence,
		})
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
