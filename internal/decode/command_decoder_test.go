package decode

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"slices"
	"testing"
	"time"

	apperrors "go-roi-inspector/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func encodeTIFF(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, img, nil))
	return buf.Bytes()
}

type recordedCall struct {
	name string
	args []string
}

func fakeRunner(t *testing.T, developed, sensor []byte, calls *[]recordedCall) Runner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, recordedCall{name: name, args: args})
		if slices.Contains(args, "-D") {
			return sensor, nil
		}
		return developed, nil
	}
}

func TestDevelopArgs(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			"defaults",
			DefaultConfig(),
			[]string{"-T", "-W", "-g", "1", "1", "-w", "-q", "3", "-Z", "-", "a.dng"},
		},
		{
			"sixteen bit srgb auto",
			DefaultConfig().WithBitDepth(16).WithGamma(GammaSRGB).WithAutoBrighten(true).
				WithWhiteBalance(WhiteBalance{Mode: WhiteBalanceAuto}).WithDemosaic(DemosaicAMaZE),
			[]string{"-T", "-6", "-g", "2.222", "4.5", "-a", "-q", "10", "-Z", "-", "a.dng"},
		},
		{
			"manual gains",
			DefaultConfig().WithWhiteBalance(WhiteBalance{Mode: WhiteBalanceManual, Gains: [4]float64{2.1, 1, 1.6, 1}}),
			[]string{"-T", "-W", "-g", "1", "1", "-r", "2.1", "1", "1.6", "1", "-q", "3", "-Z", "-", "a.dng"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DevelopArgs("a.dng", tt.cfg))
		})
	}
}

func TestCommandDecoderDecode(t *testing.T) {
	rgb := image.NewRGBA64(image.Rect(0, 0, 4, 2))
	rgb.SetRGBA64(3, 1, color.RGBA64{R: 500, G: 600, B: 700, A: 0xffff})
	mosaic := image.NewGray16(image.Rect(0, 0, 4, 2))
	mosaic.SetGray16(3, 1, color.Gray16{Y: 4095})

	var calls []recordedCall
	d, err := newCommandDecoder(`"/opt/libraw/bin/dcraw_emu" -v`, time.Second,
		fakeRunner(t, encodeTIFF(t, rgb), encodeTIFF(t, mosaic), &calls))
	require.NoError(t, err)

	got, err := d.Decode(context.Background(), "/shots/a.dng", DefaultConfig().WithBitDepth(16))
	require.NoError(t, err)

	r, g, b := got.RGB.At(3, 1)
	assert.Equal(t, []uint16{500, 600, 700}, []uint16{r, g, b})
	assert.Equal(t, uint16(4095), got.Sensor.At(3, 1))

	require.Len(t, calls, 2)
	assert.Equal(t, "/opt/libraw/bin/dcraw_emu", calls[0].name)
	assert.Equal(t, "-v", calls[0].args[0])
	assert.Equal(t, "/shots/a.dng", calls[1].args[len(calls[1].args)-1])
}

func TestCommandDecoderFailures(t *testing.T) {
	boom := errors.New("exit status 1: cannot open file")
	failing := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, boom
	}
	d, err := newCommandDecoder("", 0, failing)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultCommand}, d.command)

	_, err = d.Decode(context.Background(), "x.dng", DefaultConfig())
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeDecodeFailed, appErr.Type)
	assert.Equal(t, "x.dng", appErr.Path)
	assert.ErrorIs(t, err, boom)

	var calls []recordedCall
	garbage, err := newCommandDecoder("dcraw_emu", 0, fakeRunner(t, []byte("nope"), nil, &calls))
	require.NoError(t, err)
	_, err = garbage.Decode(context.Background(), "y.dng", DefaultConfig())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDecodeFailed))
}

func TestCommandDecoderSizeMismatch(t *testing.T) {
	var calls []recordedCall
	d, err := newCommandDecoder("dcraw_emu", 0, fakeRunner(t,
		encodeTIFF(t, image.NewRGBA64(image.Rect(0, 0, 4, 4))),
		encodeTIFF(t, image.NewGray16(image.Rect(0, 0, 2, 2))), &calls))
	require.NoError(t, err)

	_, err = d.Decode(context.Background(), "z.dng", DefaultConfig())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDecodeFailed))
}

func TestNewCommandDecoderRejectsBadQuoting(t *testing.T) {
	_, err := NewCommandDecoder(`dcraw_emu "unterminated`, 0)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
}
