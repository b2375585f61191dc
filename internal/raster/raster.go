// Package raster holds decoded pixel data: interleaved RGB images and
// single-channel CFA sensor arrays, both in full-resolution coordinates.
package raster

import (
	"fmt"
	"image"
	"image/color"

	apperrors "go-roi-inspector/internal/errors"
)

// RGB is an interleaved three-channel image. Samples are stored widened to
// uint16; BitDepth records the native width (8 or 16).
type RGB struct {
	Width    int
	Height   int
	BitDepth int
	Pix      []uint16
}

// NewRGB allocates a zeroed image.
func NewRGB(width, height, bitDepth int) *RGB {
	return &RGB{
		Width:    width,
		Height:   height,
		BitDepth: bitDepth,
		Pix:      make([]uint16, width*height*3),
	}
}

// Offset is the index of the red sample of (x, y).
func (m *RGB) Offset(x, y int) int {
	return (y*m.Width + x) * 3
}

// At returns the three samples of (x, y).
func (m *RGB) At(x, y int) (r, g, b uint16) {
	i := m.Offset(x, y)
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// Set stores the three samples of (x, y).
func (m *RGB) Set(x, y int, r, g, b uint16) {
	i := m.Offset(x, y)
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = r, g, b
}

// MaxValue is the full-scale sample value for the bit depth.
func (m *RGB) MaxValue() float64 {
	return float64(uint32(1)<<uint(m.BitDepth) - 1)
}

// Validate reports a buffer whose length does not match H x W x 3.
func (m *RGB) Validate() error {
	if m == nil {
		return apperrors.NewInvalidInputError("rgb image is nil", nil)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return apperrors.NewInvalidInputError(fmt.Sprintf("rgb image has invalid extent %dx%d", m.Width, m.Height), nil)
	}
	if len(m.Pix) != m.Width*m.Height*3 {
		return apperrors.NewInvalidInputError(
			fmt.Sprintf("rgb buffer holds %d samples, want %dx%dx3", len(m.Pix), m.Height, m.Width), nil)
	}
	if m.BitDepth != 8 && m.BitDepth != 16 {
		return apperrors.NewInvalidInputError(fmt.Sprintf("unsupported bit depth %d", m.BitDepth), nil)
	}
	return nil
}

// Sensor is a single-channel RGGB mosaic as read off the sensor.
type Sensor struct {
	Width  int
	Height int
	Pix    []uint16
}

// NewSensor allocates a zeroed sensor array.
func NewSensor(width, height int) *Sensor {
	return &Sensor{Width: width, Height: height, Pix: make([]uint16, width*height)}
}

func (s *Sensor) At(x, y int) uint16     { return s.Pix[y*s.Width+x] }
func (s *Sensor) Set(x, y int, v uint16) { s.Pix[y*s.Width+x] = v }

// Validate reports a buffer whose length does not match H x W.
func (s *Sensor) Validate() error {
	if s == nil {
		return apperrors.NewInvalidInputError("sensor array is nil", nil)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return apperrors.NewInvalidInputError(fmt.Sprintf("sensor array has invalid extent %dx%d", s.Width, s.Height), nil)
	}
	if len(s.Pix) != s.Width*s.Height {
		return apperrors.NewInvalidInputError(
			fmt.Sprintf("sensor buffer holds %d samples, want %dx%d", len(s.Pix), s.Height, s.Width), nil)
	}
	return nil
}

// IsSingleChannel reports whether img carries one channel (a CFA mosaic).
func IsSingleChannel(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

// RGBFromImage copies img into an RGB buffer at the requested depth.
// 16-bit sources are reduced to 8 bits by dividing by 257.
func RGBFromImage(img image.Image, bitDepth int) (*RGB, error) {
	if bitDepth != 8 && bitDepth != 16 {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("unsupported bit depth %d", bitDepth), nil)
	}
	b := img.Bounds()
	out := NewRGB(b.Dx(), b.Dy(), bitDepth)
	if out.Width == 0 || out.Height == 0 {
		return nil, apperrors.NewInvalidInputError("image is empty", nil)
	}

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			if bitDepth == 8 {
				out.Set(x, y, c.R/257, c.G/257, c.B/257)
			} else {
				out.Set(x, y, c.R, c.G, c.B)
			}
		}
	}
	return out, nil
}

// SensorFromImage copies a single-channel image into a sensor array.
// 8-bit mosaics are kept at their native values.
func SensorFromImage(img image.Image) (*Sensor, error) {
	b := img.Bounds()
	out := NewSensor(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				out.Set(x, y, src.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	case *image.Gray:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				out.Set(x, y, uint16(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
	default:
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("sensor data must be single-channel, got %T", img), nil)
	}
	return out, out.Validate()
}

// ToImage renders the buffer as a 16-bit image.Image for encoding or preview.
func (m *RGB) ToImage() *image.RGBA64 {
	img := image.NewRGBA64(image.Rect(0, 0, m.Width, m.Height))
	scale := uint16(1)
	if m.BitDepth == 8 {
		scale = 257
	}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			r, g, b := m.At(x, y)
			img.SetRGBA64(x, y, color.RGBA64{R: r * scale, G: g * scale, B: b * scale, A: 0xffff})
		}
	}
	return img
}
