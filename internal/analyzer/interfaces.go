package analyzer

import (
	"context"

	"go-roi-inspector/internal/raster"
	"go-roi-inspector/pkg/region"
)

// StatsCalculator computes per-region statistics. The bool result is false
// when the region covers no pixels of the image; that is not an error.
type StatsCalculator interface {
	MeasureRGB(img *raster.RGB, r region.Region) (RGBStats, bool, error)
	MeasureRaw(sensor *raster.Sensor, r region.Region) (RawStats, bool, error)
}

// RegionAnalyzer measures a region set against one decoded image
type RegionAnalyzer interface {
	MeasureRegions(ctx context.Context, img *raster.RGB, sensor *raster.Sensor, regions []region.Region, opts MeasureOptions) ([]RegionResult, error)

	// Lifecycle management
	Close() error
}
