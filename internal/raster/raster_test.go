package raster

import (
	"image"
	"image/color"
	"testing"

	apperrors "go-roi-inspector/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRGBValidate(t *testing.T) {
	tests := []struct {
		name string
		img  *RGB
		ok   bool
	}{
		{"valid", NewRGB(2, 3, 8), true},
		{"nil", nil, false},
		{"short buffer", &RGB{Width: 2, Height: 2, BitDepth: 8, Pix: make([]uint16, 11)}, false},
		{"two channels", &RGB{Width: 2, Height: 2, BitDepth: 16, Pix: make([]uint16, 8)}, false},
		{"bad depth", NewRGB(1, 1, 12), false},
		{"zero extent", NewRGB(0, 4, 8), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.img.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
		})
	}
}

func TestSensorValidate(t *testing.T) {
	assert.NoError(t, NewSensor(4, 4).Validate())
	assert.Error(t, (&Sensor{Width: 4, Height: 4, Pix: make([]uint16, 15)}).Validate())
	var s *Sensor
	assert.Error(t, s.Validate())
}

func TestRGBFromImage(t *testing.T) {
	src := image.NewRGBA64(image.Rect(0, 0, 2, 1))
	src.SetRGBA64(0, 0, color.RGBA64{R: 0xffff, G: 0x8080, B: 0, A: 0xffff})
	src.SetRGBA64(1, 0, color.RGBA64{R: 257, G: 514, B: 771, A: 0xffff})

	img16, err := RGBFromImage(src, 16)
	require.NoError(t, err)
	r, g, b := img16.At(0, 0)
	assert.Equal(t, []uint16{0xffff, 0x8080, 0}, []uint16{r, g, b})

	img8, err := RGBFromImage(src, 8)
	require.NoError(t, err)
	r, g, b = img8.At(1, 0)
	assert.Equal(t, []uint16{1, 2, 3}, []uint16{r, g, b})
	assert.Equal(t, 255.0, img8.MaxValue())

	_, err = RGBFromImage(src, 10)
	assert.Error(t, err)
}

func TestSensorFromImage(t *testing.T) {
	src := image.NewGray16(image.Rect(0, 0, 2, 2))
	src.SetGray16(1, 1, color.Gray16{Y: 4000})

	s, err := SensorFromImage(src)
	require.NoError(t, err)
	assert.Equal(t, uint16(4000), s.At(1, 1))
	assert.True(t, IsSingleChannel(src))

	_, err = SensorFromImage(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
}

func TestToImageScales8Bit(t *testing.T) {
	m := NewRGB(1, 1, 8)
	m.Set(0, 0, 255, 128, 0)

	c := m.ToImage().RGBA64At(0, 0)
	assert.Equal(t, uint16(0xffff), c.R)
	assert.Equal(t, uint16(128*257), c.G)
}
