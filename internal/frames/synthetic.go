package frames

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
)

// SyntheticClip renders a deterministic delivery: a red ball travelling along
// a straight pixel path over a green background. It implements both Decoder
// (PNG bytes) and the tracker's FrameSource, and exists for tests, demos and
// the offline analyze tool.
type SyntheticClip struct {
	Width      int
	Height     int
	DurationMs int64

	// Ball path endpoints in pixels at t=0 and t=DurationMs.
	From image.Point
	To   image.Point

	// BallRadiusPx is the rendered ball radius.
	BallRadiusPx int

	// FailAt lists timestamps whose decode deterministically fails, for
	// exercising skip-and-continue behaviour.
	FailAt map[int64]bool
}

// NewSyntheticClip returns a 640x360 clip with a ball crossing the frame over
// the given duration.
func NewSyntheticClip(durationMs int64) *SyntheticClip {
	return &SyntheticClip{
		Width:        640,
		Height:       360,
		DurationMs:   durationMs,
		From:         image.Pt(600, 60),
		To:           image.Pt(60, 300),
		BallRadiusPx: 6,
	}
}

// BallAt returns the ball center at timeMs along the clip's linear path.
func (c *SyntheticClip) BallAt(timeMs int64) (float64, float64) {
	t := float64(timeMs) / float64(c.DurationMs)
	t = math.Min(math.Max(t, 0), 1)
	x := float64(c.From.X) + t*float64(c.To.X-c.From.X)
	y := float64(c.From.Y) + t*float64(c.To.Y-c.From.Y)
	return x, y
}

// Render draws the frame at timeMs.
func (c *SyntheticClip) Render(timeMs int64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	bg := color.RGBA{R: 40, G: 120, B: 40, A: 255}
	ball := color.RGBA{R: 200, G: 30, B: 30, A: 255}

	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			img.SetRGBA(x, y, bg)
		}
	}

	bx, by := c.BallAt(timeMs)
	r := c.BallRadiusPx
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > r*r {
				continue
			}
			x, y := int(math.Round(bx))+dx, int(math.Round(by))+dy
			if x >= 0 && x < c.Width && y >= 0 && y < c.Height {
				img.SetRGBA(x, y, ball)
			}
		}
	}
	return img
}

// DecodeFrame implements Decoder, returning PNG bytes.
func (c *SyntheticClip) DecodeFrame(timeMs int64, _ Quality) ([]byte, error) {
	if c.FailAt[timeMs] {
		return nil, fmt.Errorf("synthetic decode failure at %dms", timeMs)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.Render(timeMs)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FrameAt implements pitch.FrameSource without the PNG round trip.
func (c *SyntheticClip) FrameAt(_ context.Context, timeMs int64) (image.Image, error) {
	if c.FailAt[timeMs] {
		return nil, fmt.Errorf("synthetic decode failure at %dms", timeMs)
	}
	return c.Render(timeMs), nil
}
