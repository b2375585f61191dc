package decode

import (
	"image"
	"image/color"

	"go-roi-inspector/internal/mask"
	"go-roi-inspector/internal/raster"
	"go-roi-inspector/pkg/region"

	"golang.org/x/image/draw"
)

// PreviewScale is the factor that fits a w x h image into maxW x maxH
// without enlarging it.
func PreviewScale(w, h, maxW, maxH int) float64 {
	if w <= 0 || h <= 0 {
		return 1
	}
	scale := 1.0
	if maxW > 0 {
		scale = min(scale, float64(maxW)/float64(w))
	}
	if maxH > 0 {
		scale = min(scale, float64(maxH)/float64(h))
	}
	return scale
}

// Preview renders an 8-bit downscaled copy of img and the viewport that maps
// preview coordinates back to full resolution.
func Preview(img *raster.RGB, maxW, maxH int) (*image.RGBA, mask.Viewport) {
	scale := PreviewScale(img.Width, img.Height, maxW, maxH)
	vp := mask.NewViewport(mask.Extent{Width: img.Width, Height: img.Height}, scale)

	dw := max(1, int(float64(img.Width)*scale))
	dh := max(1, int(float64(img.Height)*scale))
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	src := img.ToImage()
	if dw == img.Width && dh == img.Height {
		draw.Draw(dst, dst.Bounds(), src, image.Point{}, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}
	return dst, vp
}

// Outline draws a one pixel rectangle given in full-resolution coordinates
// onto a preview.
func Outline(dst *image.RGBA, vp mask.Viewport, full image.Rectangle, c color.Color) {
	if full.Empty() {
		return
	}
	r := image.Rectangle{
		Min: vp.PointToDisplay(full.Min),
		Max: vp.PointToDisplay(full.Max),
	}.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		dst.Set(x, r.Min.Y, c)
		dst.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dst.Set(r.Min.X, y, c)
		dst.Set(r.Max.X-1, y, c)
	}
}

// RegionOutline is the colour PreviewRegions draws region bounds in.
var RegionOutline = color.RGBA{R: 255, G: 0, B: 255, A: 255}

// PreviewRegions renders a preview with the bounding box of every region
// outlined. Regions with invalid geometry are skipped.
func PreviewRegions(img *raster.RGB, regions []region.Region, maxW, maxH int) *image.RGBA {
	dst, vp := Preview(img, maxW, maxH)
	for _, r := range regions {
		g, err := r.Geometry()
		if err != nil {
			continue
		}
		Outline(dst, vp, g.Bounds(), RegionOutline)
	}
	return dst
}
