package decode

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/raster"

	"github.com/kballard/go-shellquote"
	"golang.org/x/image/tiff"
)

// DefaultCommand is LibRaw's dcraw emulator.
const DefaultCommand = "dcraw_emu"

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// commandDecoder shells out to a dcraw compatible converter, once for the
// developed image and once for the undemosaiced sensor data, reading TIFF
// from standard output.
type commandDecoder struct {
	command []string
	timeout time.Duration
	run     Runner
}

// NewCommandDecoder parses a shell-quoted command line such as
// "dcraw_emu" or "/opt/libraw/bin/dcraw_emu -v". A zero timeout disables the
// per-image deadline.
func NewCommandDecoder(commandLine string, timeout time.Duration) (Decoder, error) {
	return newCommandDecoder(commandLine, timeout, execRunner)
}

func newCommandDecoder(commandLine string, timeout time.Duration, run Runner) (*commandDecoder, error) {
	if strings.TrimSpace(commandLine) == "" {
		commandLine = DefaultCommand
	}
	words, err := shellquote.Split(commandLine)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("invalid decoder command %q", commandLine), err)
	}
	if len(words) == 0 {
		return nil, apperrors.NewInvalidInputError("decoder command is empty", nil)
	}
	return &commandDecoder{command: words, timeout: timeout, run: run}, nil
}

func (d *commandDecoder) Name() string { return string(KindExec) }

// DevelopArgs are the converter flags for the developed image.
func DevelopArgs(path string, cfg Config) []string {
	args := []string{"-T"}
	if cfg.BitDepth == 16 {
		args = append(args, "-6")
	}
	if !cfg.AutoBrighten {
		args = append(args, "-W")
	}
	args = append(args, "-g", formatFloat(cfg.Gamma.Power), formatFloat(cfg.Gamma.Slope))

	switch cfg.WhiteBalance.Mode {
	case WhiteBalanceCamera:
		args = append(args, "-w")
	case WhiteBalanceAuto:
		args = append(args, "-a")
	case WhiteBalanceManual:
		args = append(args, "-r")
		for _, g := range cfg.WhiteBalance.Gains {
			args = append(args, formatFloat(g))
		}
	}

	args = append(args, "-q", strconv.Itoa(cfg.Demosaic.QualityCode()), "-Z", "-", path)
	return args
}

// SensorArgs are the converter flags for raw, unscaled CFA data.
func SensorArgs(path string) []string {
	return []string{"-D", "-4", "-T", "-Z", "-", path}
}

// Decode implements Decoder
func (d *commandDecoder) Decode(ctx context.Context, path string, cfg Config) (*Decoded, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	developed, err := d.invoke(ctx, DevelopArgs(path, cfg))
	if err != nil {
		return nil, decodeFailed(path, err)
	}
	img, err := tiff.Decode(bytes.NewReader(developed))
	if err != nil {
		return nil, decodeFailed(path, fmt.Errorf("developed output: %w", err))
	}
	rgb, err := raster.RGBFromImage(img, cfg.BitDepth)
	if err != nil {
		return nil, decodeFailed(path, err)
	}

	raw, err := d.invoke(ctx, SensorArgs(path))
	if err != nil {
		return nil, decodeFailed(path, err)
	}
	mosaic, err := tiff.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, decodeFailed(path, fmt.Errorf("sensor output: %w", err))
	}
	sensor, err := raster.SensorFromImage(mosaic)
	if err != nil {
		return nil, decodeFailed(path, err)
	}
	if sensor.Width != rgb.Width || sensor.Height != rgb.Height {
		return nil, decodeFailed(path, fmt.Errorf("sensor %dx%d does not match image %dx%d",
			sensor.Width, sensor.Height, rgb.Width, rgb.Height))
	}

	return &Decoded{RGB: rgb, Sensor: sensor}, nil
}

func (d *commandDecoder) invoke(ctx context.Context, args []string) ([]byte, error) {
	full := append(append([]string{}, d.command[1:]...), args...)
	out, err := d.run(ctx, d.command[0], full...)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s timed out after %s: %w", d.command[0], d.timeout, ctx.Err())
		}
		return nil, fmt.Errorf("%s: %w", d.command[0], err)
	}
	return out, nil
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}
	return out, err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
