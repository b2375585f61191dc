package analyzer

import (
	"math"

	"go-roi-inspector/pkg/models"
	"go-roi-inspector/pkg/region"
)

// RGBStats holds per-channel mean and population standard deviation over
// Count included pixels, in the image's native sample units.
type RGBStats struct {
	MeanR, MeanG, MeanB float64
	StdR, StdG, StdB    float64
	Count               int
}

// RawStats holds RGGB plane means. A plane with no included samples is NaN.
type RawStats struct {
	R, G1, G2, B float64
	// Counts per plane in R, G1, G2, B order
	Counts [4]int
}

// RegionResult is the outcome for one region. RGB is nil when the region
// covers no pixels; Raw is nil when raw statistics were not requested, no
// sensor data was supplied, or the region is empty.
type RegionResult struct {
	Region region.Region
	RGB    *RGBStats
	Raw    *RawStats
}

// Empty reports whether the region intersected no pixels.
func (r RegionResult) Empty() bool {
	return r.RGB == nil
}

// Row converts the RGB statistics into a table row; an empty region yields NaN cells.
func (r RegionResult) Row() models.MeasurementRow {
	if r.RGB == nil {
		return models.EmptyRow(r.Region.ID, string(r.Region.Shape), r.Region.ParamString())
	}
	return models.MeasurementRow{
		ID:         r.Region.ID,
		Shape:      string(r.Region.Shape),
		Parameters: r.Region.ParamString(),
		MeanR:      r.RGB.MeanR,
		MeanG:      r.RGB.MeanG,
		MeanB:      r.RGB.MeanB,
		StdR:       r.RGB.StdR,
		StdG:       r.RGB.StdG,
		StdB:       r.RGB.StdB,
		Samples:    r.RGB.Count,
	}
}

// RawRow converts the plane means; ok is false when raw statistics are absent.
func (r RegionResult) RawRow() (models.RawRow, bool) {
	row := models.RawRow{
		ID:         r.Region.ID,
		Shape:      string(r.Region.Shape),
		Parameters: r.Region.ParamString(),
	}
	if r.Raw == nil {
		nan := models.NullableFloat(math.NaN())
		row.R, row.G1, row.G2, row.B = nan, nan, nan, nan
		return row, false
	}
	row.R = models.NullableFloat(r.Raw.R)
	row.G1 = models.NullableFloat(r.Raw.G1)
	row.G2 = models.NullableFloat(r.Raw.G2)
	row.B = models.NullableFloat(r.Raw.B)
	return row, true
}
