package decode

import (
	"bufio"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/raster"

	_ "golang.org/x/image/tiff"
)

// imageDecoder reads formats registered with the image package. Colour
// images are taken as already developed; single-channel images are taken as
// RGGB mosaics and developed in process.
type imageDecoder struct{}

// NewImageDecoder creates the built-in decoder
func NewImageDecoder() Decoder {
	return &imageDecoder{}
}

func (d *imageDecoder) Name() string { return string(KindBuiltin) }

// Decode implements Decoder
func (d *imageDecoder) Decode(ctx context.Context, path string, cfg Config) (*Decoded, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, decodeFailed(path, err)
	}
	defer f.Close()

	img, format, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, decodeFailed(path, err)
	}

	if !raster.IsSingleChannel(img) {
		rgb, err := raster.RGBFromImage(img, cfg.BitDepth)
		if err != nil {
			return nil, decodeFailed(path, err)
		}
		return &Decoded{RGB: rgb}, nil
	}

	if cfg.Demosaic != DemosaicLinear {
		err := decodeFailed(path, fmt.Errorf("%s mosaic: demosaic %q is not available in the built-in decoder", format, cfg.Demosaic))
		return nil, apperrors.WithHint(err, "use --demosaic linear or the exec decoder")
	}

	sensor, err := raster.SensorFromImage(img)
	if err != nil {
		return nil, decodeFailed(path, err)
	}
	white := 65535.0
	if _, ok := img.(*image.Gray); ok {
		white = 255
	}
	rgb, err := Develop(sensor, white, cfg)
	if err != nil {
		return nil, decodeFailed(path, err)
	}
	return &Decoded{RGB: rgb, Sensor: sensor}, nil
}
