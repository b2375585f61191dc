package mask

import (
	"image"
	"math"
)

// Viewport maps between a scaled preview and the full-resolution image.
// Scale is preview pixels per full-resolution pixel.
type Viewport struct {
	Scale  float64
	Width  int
	Height int
}

// NewViewport returns a viewport for an image shown at the given scale.
// A non-positive scale means the preview is shown at full size.
func NewViewport(ext Extent, scale float64) Viewport {
	if scale <= 0 {
		scale = 1
	}
	return Viewport{Scale: scale, Width: ext.Width, Height: ext.Height}
}

// RectToFull maps a preview rectangle onto full-resolution pixels. The min
// corner is floored and the max corner ceiled so the full-resolution region
// covers every pixel the preview rectangle touches; the result is clipped.
func (v Viewport) RectToFull(r image.Rectangle) image.Rectangle {
	r = r.Canon()
	full := image.Rectangle{
		Min: image.Pt(
			int(math.Floor(float64(r.Min.X)/v.Scale)),
			int(math.Floor(float64(r.Min.Y)/v.Scale)),
		),
		Max: image.Pt(
			int(math.Ceil(float64(r.Max.X)/v.Scale)),
			int(math.Ceil(float64(r.Max.Y)/v.Scale)),
		),
	}
	return full.Intersect(image.Rect(0, 0, v.Width, v.Height))
}

// PointToFull maps a preview point onto the full-resolution pixel under it.
func (v Viewport) PointToFull(p image.Point) image.Point {
	return image.Pt(
		clampInt(int(math.Floor(float64(p.X)/v.Scale)), 0, v.Width-1),
		clampInt(int(math.Floor(float64(p.Y)/v.Scale)), 0, v.Height-1),
	)
}

// PointToDisplay maps a full-resolution pixel onto preview coordinates.
func (v Viewport) PointToDisplay(p image.Point) image.Point {
	return image.Pt(
		int(math.Round(float64(p.X)*v.Scale)),
		int(math.Round(float64(p.Y)*v.Scale)),
	)
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
