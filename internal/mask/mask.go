// Package mask turns region geometry into the set of included pixels.
//
// Rectangles resolve to a clipped half-open range with no mask. Circles and
// polygons are rasterized over their own bounding box, clipped to the image,
// so the work is proportional to the region and not to the image.
package mask

import (
	"fmt"
	"image"
	"math"
	"slices"

	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/pkg/region"
)

// Extent is the size of the image being measured.
type Extent struct {
	Width  int
	Height int
}

// Rect returns the extent as an image rectangle anchored at the origin.
func (e Extent) Rect() image.Rectangle {
	return image.Rect(0, 0, e.Width, e.Height)
}

// Selection is the clipped sub-window of a region. Mask is nil when every
// pixel of Bounds is included; otherwise it holds Bounds.Dx()*Bounds.Dy()
// row-major flags.
type Selection struct {
	Bounds image.Rectangle
	Mask   []bool
}

// Empty reports whether no pixel is included.
func (s Selection) Empty() bool {
	return s.Count() == 0
}

// Count is the number of included pixels.
func (s Selection) Count() int {
	if s.Bounds.Empty() {
		return 0
	}
	if s.Mask == nil {
		return s.Bounds.Dx() * s.Bounds.Dy()
	}
	n := 0
	for _, in := range s.Mask {
		if in {
			n++
		}
	}
	return n
}

// Contains reports whether the image pixel (x, y) is included.
func (s Selection) Contains(x, y int) bool {
	if !image.Pt(x, y).In(s.Bounds) {
		return false
	}
	if s.Mask == nil {
		return true
	}
	return s.Mask[(y-s.Bounds.Min.Y)*s.Bounds.Dx()+(x-s.Bounds.Min.X)]
}

// Build resolves geometry against an image extent. Geometry partly or fully
// outside the image is clipped; an empty result is not an error.
func Build(g region.Geometry, ext Extent) (Selection, error) {
	if ext.Width <= 0 || ext.Height <= 0 {
		return Selection{}, apperrors.NewInvalidInputError(
			fmt.Sprintf("image extent %dx%d is empty", ext.Width, ext.Height), nil)
	}
	if g == nil {
		return Selection{}, apperrors.NewInvalidInputError("region geometry is nil", nil)
	}
	if err := g.Validate(); err != nil {
		return Selection{}, apperrors.NewInvalidInputError("invalid region geometry", err)
	}

	window := g.Bounds().Intersect(ext.Rect())
	if window.Empty() {
		return Selection{}, nil
	}

	switch shape := g.(type) {
	case region.Rect:
		return Selection{Bounds: window}, nil
	case region.Circle:
		return circleMask(shape, window), nil
	case region.Polygon:
		return polygonMask(shape, window), nil
	default:
		return Selection{}, apperrors.NewInvalidInputError(fmt.Sprintf("unsupported geometry %T", g), nil)
	}
}

// circleMask includes (px, py) iff (px-cx)^2 + (py-cy)^2 <= r^2.
func circleMask(c region.Circle, window image.Rectangle) Selection {
	w := window.Dx()
	m := make([]bool, w*window.Dy())
	r2 := int64(c.R) * int64(c.R)

	for y := window.Min.Y; y < window.Max.Y; y++ {
		dy := int64(y - c.CY)
		row := m[(y-window.Min.Y)*w : (y-window.Min.Y+1)*w]
		for x := window.Min.X; x < window.Max.X; x++ {
			dx := int64(x - c.CX)
			row[x-window.Min.X] = dx*dx+dy*dy <= r2
		}
	}
	return Selection{Bounds: window, Mask: m}
}

// polygonMask fills with the even-odd rule, sampling each pixel at its centre.
// Every scanline collects the x positions where edges cross y+0.5 and fills
// between alternate pairs.
func polygonMask(p region.Polygon, window image.Rectangle) Selection {
	w := window.Dx()
	m := make([]bool, w*window.Dy())
	n := len(p.Points)
	xs := make([]float64, 0, n)

	for y := window.Min.Y; y < window.Max.Y; y++ {
		sy := float64(y) + 0.5
		xs = xs[:0]
		for i, j := 0, n-1; i < n; j, i = i, i+1 {
			xi, yi := float64(p.Points[i][0]), float64(p.Points[i][1])
			xj, yj := float64(p.Points[j][0]), float64(p.Points[j][1])
			if (yi > sy) != (yj > sy) {
				xs = append(xs, xi+(sy-yi)*(xj-xi)/(yj-yi))
			}
		}
		slices.Sort(xs)

		row := m[(y-window.Min.Y)*w : (y-window.Min.Y+1)*w]
		for k := 0; k+1 < len(xs); k += 2 {
			// pixel px is inside when xs[k] <= px+0.5 < xs[k+1]
			from := max(int(math.Ceil(xs[k]-0.5)), window.Min.X)
			to := min(int(math.Ceil(xs[k+1]-0.5)), window.Max.X)
			for x := from; x < to; x++ {
				row[x-window.Min.X] = true
			}
		}
	}
	return Selection{Bounds: window, Mask: m}
}
