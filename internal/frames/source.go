package frames

import (
	"bytes"
	"context"
	"fmt"
	"image"

	// Frame bytes from decoders are PNG or JPEG encoded rasters.
	_ "image/jpeg"
	_ "image/png"

	"github.com/pocket-drs/crease.report/internal/pitch"
)

// ImageSource adapts a Provider into the tracker's FrameSource, decoding the
// provider's frame bytes into rasters.
type ImageSource struct {
	Provider *Provider
	Quality  Quality
}

// NewImageSource returns a full-quality frame source over p.
func NewImageSource(p *Provider) *ImageSource {
	return &ImageSource{Provider: p, Quality: QualityFull}
}

// FrameAt implements pitch.FrameSource.
func (s *ImageSource) FrameAt(ctx context.Context, timeMs int64) (image.Image, error) {
	raw, err := s.Provider.GetFrame(ctx, timeMs, s.Quality)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode raster at %dms: %w", timeMs, err)
	}
	return img, nil
}

var _ pitch.FrameSource = (*ImageSource)(nil)
