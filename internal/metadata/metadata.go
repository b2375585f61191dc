// Package metadata resolves capture timestamps and summarizes EXIF data.
package metadata

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// ExifTimeLayout is the EXIF DateTime format.
const ExifTimeLayout = "2006:01:02 15:04:05"

// TimestampResolver returns the capture time of an image file. It never
// fails: when no capture time is recorded it falls back to the file's
// modification time, and to the zero time when even that is unavailable.
type TimestampResolver interface {
	Resolve(path string) time.Time
}

// SourceResolver also reports which field supplied the time.
type SourceResolver interface {
	TimestampResolver
	ResolveWithSource(path string) (time.Time, Source)
}

// Source says where a resolved timestamp came from.
type Source string

const (
	SourceDateTimeOriginal  Source = "DateTimeOriginal"
	SourceDateTimeDigitized Source = "DateTimeDigitized"
	SourceModTime           Source = "mtime"
	SourceNone              Source = "none"
)

// exifResolver reads DateTimeOriginal, then DateTimeDigitized, then mtime.
type exifResolver struct {
	location *time.Location
}

// NewExifResolver interprets EXIF times in loc; nil means local time.
func NewExifResolver(loc *time.Location) SourceResolver {
	if loc == nil {
		loc = time.Local
	}
	return &exifResolver{location: loc}
}

func (r *exifResolver) Resolve(path string) time.Time {
	ts, _ := r.ResolveWithSource(path)
	return ts
}

func (r *exifResolver) ResolveWithSource(path string) (time.Time, Source) {
	if x, err := readExif(path); err == nil {
		for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized} {
			if ts, ok := r.exifTime(x, field); ok {
				return ts, Source(field)
			}
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, SourceNone
	}
	return info.ModTime(), SourceModTime
}

func (r *exifResolver) exifTime(x *exif.Exif, field exif.FieldName) (time.Time, bool) {
	tag, err := x.Get(field)
	if err != nil {
		return time.Time{}, false
	}
	s, err := tag.StringVal()
	if err != nil {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(ExifTimeLayout, strings.TrimRight(strings.TrimSpace(s), "\x00"), r.location)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func readExif(path string) (*exif.Exif, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// non-critical errors (a broken GPS sub-IFD, say) still leave usable tags
	x, err := exif.Decode(f)
	if x != nil && (err == nil || !exif.IsCriticalError(err)) {
		return x, nil
	}
	if err == nil {
		err = errors.New("no exif data")
	}
	return nil, err
}

// Summary is a one line description of exposure settings, for example
// "Exposure: 1/125 s | ISO: 100 | FNumber: f/28/10 | Camera: Canon EOS R5".
// Missing fields are skipped; a file without EXIF yields "No EXIF found".
func Summary(path string) string {
	x, err := readExif(path)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return fmt.Sprintf("Metadata error: %v", err)
		}
		return "No EXIF found"
	}

	var parts []string
	if tag, err := x.Get(exif.ExposureTime); err == nil {
		if num, den, err := tag.Rat2(0); err == nil {
			parts = append(parts, fmt.Sprintf("Exposure: %s s", ratio(num, den)))
		}
	}
	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if iso, err := tag.Int(0); err == nil {
			parts = append(parts, fmt.Sprintf("ISO: %d", iso))
		}
	}
	if tag, err := x.Get(exif.FNumber); err == nil {
		if num, den, err := tag.Rat2(0); err == nil {
			parts = append(parts, fmt.Sprintf("FNumber: f/%s", ratio(num, den)))
		}
	}
	camera := strings.TrimSpace(stringField(x, exif.Make) + " " + stringField(x, exif.Model))
	if camera != "" {
		parts = append(parts, "Camera: "+camera)
	}

	if len(parts) == 0 {
		return "No EXIF found"
	}
	return strings.Join(parts, " | ")
}

func stringField(x *exif.Exif, field exif.FieldName) string {
	tag, err := x.Get(field)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func ratio(num, den int64) string {
	if den == 1 {
		return fmt.Sprintf("%d", num)
	}
	return fmt.Sprintf("%d/%d", num, den)
}
