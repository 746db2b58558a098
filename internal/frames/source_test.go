package frames

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageSourceDecodesProviderFrames(t *testing.T) {
	clip := NewSyntheticClip(800)
	p := NewProvider(clip)
	defer p.Close()

	src := NewImageSource(p)
	img, err := src.FrameAt(context.Background(), 400)
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, clip.Width, bounds.Dx())
	assert.Equal(t, clip.Height, bounds.Dy())

	// The ball center pixel is the rendered red, the far corner is background.
	bx, by := clip.BallAt(400)
	r, g, b, _ := img.At(int(bx), int(by)).RGBA()
	assert.Equal(t, color.RGBA{R: 200, G: 30, B: 30, A: 255},
		color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255})

	r, g, b, _ = img.At(0, 0).RGBA()
	assert.Equal(t, color.RGBA{R: 40, G: 120, B: 40, A: 255},
		color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255})
}

func TestImageSourcePropagatesDecodeFailure(t *testing.T) {
	clip := NewSyntheticClip(800)
	clip.FailAt = map[int64]bool{400: true}
	p := NewProvider(clip)
	defer p.Close()

	src := NewImageSource(p)
	_, err := src.FrameAt(context.Background(), 400)
	require.Error(t, err)

	_, err = src.FrameAt(context.Background(), 433)
	assert.NoError(t, err, "failure at one timestamp does not poison others")
}

func TestSyntheticClipPath(t *testing.T) {
	clip := NewSyntheticClip(1000)

	x0, y0 := clip.BallAt(0)
	assert.Equal(t, float64(clip.From.X), x0)
	assert.Equal(t, float64(clip.From.Y), y0)

	x1, y1 := clip.BallAt(1000)
	assert.Equal(t, float64(clip.To.X), x1)
	assert.Equal(t, float64(clip.To.Y), y1)

	// Out-of-range times clamp to the endpoints.
	xc, yc := clip.BallAt(5000)
	assert.Equal(t, x1, xc)
	assert.Equal(t, y1, yc)
}
