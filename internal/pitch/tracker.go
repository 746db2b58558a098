package pitch

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/pocket-drs/crease.report/internal/monitoring"
)

// FrameSource supplies decoded raster frames by timestamp. Decoding mechanics
// (codec, file access, thumbnail quality) live behind this interface; the
// tracker only ever reads frames through it.
type FrameSource interface {
	FrameAt(ctx context.Context, timeMs int64) (image.Image, error)
}

// TrackerConfig holds tuning parameters for the ball localiser.
type TrackerConfig struct {
	// SeedSampleRadiusPx is the half-width of the patch around the seed pixel
	// averaged to obtain the reference ball colour.
	SeedSampleRadiusPx int
	// MaxSampledFrames caps the number of timestamps sampled per request.
	MaxSampledFrames int
	// MinConfidence is the score floor below which a sample is still emitted
	// but flagged as weak. Kept separate from emission so the result stays
	// gap-free on successful decodes.
	MinConfidence float64
}

// DefaultTrackerConfig returns defaults suitable for phone footage of a
// single delivery.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		SeedSampleRadiusPx: 2,
		MaxSampledFrames:   180,
		MinConfidence:      0.05,
	}
}

// TrackRequest describes one seeded tracking run over a video segment.
type TrackRequest struct {
	Frames         FrameSource
	StartMs        int64
	EndMs          int64
	SampleFps      int
	Seed           PixelPoint
	SearchRadiusPx int
}

// Validate rejects structurally invalid requests before any frame work.
func (r TrackRequest) Validate() error {
	if r.Frames == nil {
		return fmt.Errorf("track request: frame source is required: %w", ErrInvalidRequest)
	}
	if r.StartMs < 0 || r.EndMs <= r.StartMs {
		return fmt.Errorf("track request: invalid segment [%d,%d]ms: %w", r.StartMs, r.EndMs, ErrInvalidRequest)
	}
	if r.SampleFps <= 0 {
		return fmt.Errorf("track request: sample fps must be positive, got %d: %w", r.SampleFps, ErrInvalidRequest)
	}
	if r.SearchRadiusPx <= 0 {
		return fmt.Errorf("track request: search radius must be positive, got %d: %w", r.SearchRadiusPx, ErrInvalidRequest)
	}
	return nil
}

// BallTracker localises the ball frame by frame from a user-supplied seed
// pixel. It holds no mutable state across calls; a zero-value tracker with a
// default config is safe for concurrent use.
type BallTracker struct {
	cfg TrackerConfig
}

// NewBallTracker returns a tracker with the given config; zero fields fall
// back to defaults.
func NewBallTracker(cfg TrackerConfig) *BallTracker {
	def := DefaultTrackerConfig()
	if cfg.SeedSampleRadiusPx <= 0 {
		cfg.SeedSampleRadiusPx = def.SeedSampleRadiusPx
	}
	if cfg.MaxSampledFrames <= 0 {
		cfg.MaxSampledFrames = def.MaxSampledFrames
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	return &BallTracker{cfg: cfg}
}

// Track samples timestamps at req.SampleFps between StartMs and EndMs
// inclusive and localises the ball in each decodable frame.
//
// The first search centers on the seed pixel; each subsequent search centers
// on a constant-velocity prediction from the previous finds (falling back to
// the last find, then the seed). A frame that fails to decode is logged and
// skipped — the result has a gap, it is not padded — and the search center is
// left unchanged for the next sample. The operation only yields an empty
// point sequence when zero frames decode; that is a valid result, not an
// error.
//
// Cancelling ctx stops further frame requests after the current one; the
// partial result is discarded and ctx.Err() returned.
func (t *BallTracker) Track(ctx context.Context, req TrackRequest) (BallTrackResult, error) {
	if err := req.Validate(); err != nil {
		return BallTrackResult{}, err
	}

	dtMs := int64(math.Round(1000 / float64(req.SampleFps)))
	if dtMs < 1 {
		dtMs = 1
	}

	var res BallTrackResult
	var ref ballColor
	haveRef := false

	var last, prev *PixelPoint
	sampled, failed := 0, 0

	for tMs := req.StartMs; tMs <= req.EndMs && sampled < t.cfg.MaxSampledFrames; tMs += dtMs {
		if err := ctx.Err(); err != nil {
			return BallTrackResult{}, err
		}
		sampled++

		frame, err := req.Frames.FrameAt(ctx, tMs)
		if err != nil {
			failed++
			monitoring.Logf("tracker: skipping frame at %dms: %v", tMs, err)
			continue
		}

		bounds := frame.Bounds()
		if res.FrameWidth == 0 {
			res.FrameWidth = bounds.Dx()
			res.FrameHeight = bounds.Dy()
		}

		center := t.searchCenter(req.Seed, last, prev, bounds)
		if !haveRef {
			ref = sampleColor(frame, center, t.cfg.SeedSampleRadiusPx)
			haveRef = true
		}

		found, conf := bestMatch(frame, center, req.SearchRadiusPx, ref)
		if conf < t.cfg.MinConfidence {
			conf = t.cfg.MinConfidence
		}

		found = clampToBounds(found, bounds)
		res.Points = append(res.Points, BallTrackPoint{
			TimeMs:     tMs,
			Pixel:      found,
			Confidence: conf,
		})
		prev = last
		last = &found
	}

	if failed > 0 {
		monitoring.Logf("tracker: %d of %d sampled frames failed to decode", failed, sampled)
	}
	return res, nil
}

// searchCenter predicts the next ball position. With two prior finds it
// extrapolates at constant velocity; with one it reuses it; otherwise the
// seed.
func (t *BallTracker) searchCenter(seed PixelPoint, last, prev *PixelPoint, bounds image.Rectangle) PixelPoint {
	switch {
	case last != nil && prev != nil:
		pred := PixelPoint{
			X: last.X + (last.X - prev.X),
			Y: last.Y + (last.Y - prev.Y),
		}
		return clampToBounds(pred, bounds)
	case last != nil:
		return clampToBounds(*last, bounds)
	default:
		return clampToBounds(seed, bounds)
	}
}

// ballColor is an 8-bit RGB reference sample.
type ballColor struct {
	r, g, b float64
}

// maxColorDist is the largest possible Euclidean distance between two 8-bit
// RGB colours, used to normalise match scores into [0,1].
var maxColorDist = math.Sqrt(3 * 255 * 255)

func sampleColor(frame image.Image, at PixelPoint, radius int) ballColor {
	bounds := frame.Bounds()
	var sr, sg, sb, n float64
	cx, cy := int(math.Round(at.X)), int(math.Round(at.Y))
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
				continue
			}
			r, g, b, _ := frame.At(x, y).RGBA()
			sr += float64(r >> 8)
			sg += float64(g >> 8)
			sb += float64(b >> 8)
			n++
		}
	}
	if n == 0 {
		return ballColor{}
	}
	return ballColor{r: sr / n, g: sg / n, b: sb / n}
}

// bestMatch scans the search window for the pixel most similar to the
// reference colour and returns it with a confidence proportional to match
// strength.
func bestMatch(frame image.Image, center PixelPoint, radiusPx int, ref ballColor) (PixelPoint, float64) {
	bounds := frame.Bounds()
	cx, cy := int(math.Round(center.X)), int(math.Round(center.Y))

	x0 := maxInt(bounds.Min.X, cx-radiusPx)
	x1 := minInt(bounds.Max.X-1, cx+radiusPx)
	y0 := maxInt(bounds.Min.Y, cy-radiusPx)
	y1 := minInt(bounds.Max.Y-1, cy+radiusPx)

	best := PixelPoint{X: float64(clampInt(cx, bounds.Min.X, bounds.Max.X-1)), Y: float64(clampInt(cy, bounds.Min.Y, bounds.Max.Y-1))}
	bestDist := math.MaxFloat64
	r2 := float64(radiusPx * radiusPx)

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx, dy := float64(x-cx), float64(y-cy)
			if dx*dx+dy*dy > r2 {
				continue
			}
			r, g, b, _ := frame.At(x, y).RGBA()
			dr := float64(r>>8) - ref.r
			dg := float64(g>>8) - ref.g
			db := float64(b>>8) - ref.b
			dist := dr*dr + dg*dg + db*db
			if dist < bestDist {
				bestDist = dist
				best = PixelPoint{X: float64(x), Y: float64(y)}
			}
		}
	}

	if bestDist == math.MaxFloat64 {
		return best, 0
	}
	conf := 1 - math.Sqrt(bestDist)/maxColorDist
	if conf < 0 {
		conf = 0
	}
	return best, conf
}

func clampToBounds(p PixelPoint, bounds image.Rectangle) PixelPoint {
	return PixelPoint{
		X: math.Min(math.Max(p.X, float64(bounds.Min.X)), float64(bounds.Max.X-1)),
		Y: math.Min(math.Max(p.Y, float64(bounds.Min.Y)), float64(bounds.Max.Y-1)),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
