package decode

import (
	"context"

	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/raster"
)

// Decoded is the pixel data of one image. Sensor is nil when the source has
// no CFA data (an already developed colour image).
type Decoded struct {
	RGB    *raster.RGB
	Sensor *raster.Sensor
}

// Decoder turns a file into pixel data. Implementations must be
// deterministic for a fixed file and Config and report failures as
// DecodeFailed errors carrying the path.
type Decoder interface {
	Decode(ctx context.Context, path string, cfg Config) (*Decoded, error)
	Name() string
}

// Kind names a decoder implementation.
type Kind string

const (
	KindBuiltin Kind = "builtin"
	KindExec    Kind = "exec"
)

// DefaultDemosaic is the algorithm used when none is configured. The
// built-in decoder only implements linear interpolation.
func (k Kind) DefaultDemosaic() Demosaic {
	if k == KindBuiltin {
		return DemosaicLinear
	}
	return DemosaicAHD
}

func decodeFailed(path string, cause error) error {
	if apperrors.IsType(cause, apperrors.ErrorTypeDecodeFailed) {
		return cause
	}
	return apperrors.NewDecodeFailedError(path, cause)
}
