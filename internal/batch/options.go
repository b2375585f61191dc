package batch

import (
	"fmt"
	"strings"

	apperrors "go-roi-inspector/internal/errors"
)

// DefaultExtensions are the file types a batch picks up when none are given.
var DefaultExtensions = []string{".dng"}

// Options controls a batch run. The zero value processes .dng files one at
// a time and aborts on the first failure.
type Options struct {
	// Extensions are matched case-insensitively, with or without the dot
	Extensions []string `json:"extensions" mapstructure:"extensions"`
	// Workers > 1 decodes and measures images concurrently
	Workers int `json:"workers" mapstructure:"workers"`
	// ContinueOnError skips failed images and reports them instead of aborting
	ContinueOnError bool `json:"continue_on_error" mapstructure:"continue_on_error"`
}

// DefaultOptions returns sequential, fail-fast options for .dng files.
func DefaultOptions() Options {
	return Options{
		Extensions: append([]string(nil), DefaultExtensions...),
		Workers:    1,
	}
}

// WithWorkers returns a copy using n workers.
func (o Options) WithWorkers(n int) Options {
	o.Workers = n
	return o
}

// WithContinueOnError returns a copy with fault isolation switched on or off.
func (o Options) WithContinueOnError(enabled bool) Options {
	o.ContinueOnError = enabled
	return o
}

// WithExtensions returns a copy matching exts.
func (o Options) WithExtensions(exts ...string) Options {
	o.Extensions = exts
	return o
}

// normalize fills zero values and lowercases extensions. Negative worker
// counts and blank extensions are rejected.
func (o Options) normalize() (Options, error) {
	if o.Workers < 0 {
		return o, apperrors.NewInvalidInputError(fmt.Sprintf("workers must be >= 1, got %d", o.Workers), nil)
	}
	if o.Workers == 0 {
		o.Workers = 1
	}

	exts := o.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	o.Extensions = make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" || ext == "." {
			return o, apperrors.NewInvalidInputError("empty file extension", nil)
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		o.Extensions = append(o.Extensions, ext)
	}
	return o, nil
}
