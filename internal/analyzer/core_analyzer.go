package analyzer

import (
	"context"
	"runtime"
	"sync"

	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/raster"
	"go-roi-inspector/pkg/region"
)

// coreAnalyzer implements RegionAnalyzer on top of a StatsCalculator
type coreAnalyzer struct {
	calculator StatsCalculator
}

// NewRegionAnalyzer creates a region analyzer; a nil calculator selects the
// Gonum implementation
func NewRegionAnalyzer(calculator StatsCalculator) RegionAnalyzer {
	if calculator == nil {
		calculator = NewStatsCalculator()
	}
	return &coreAnalyzer{calculator: calculator}
}

// MeasureRegions measures every region against img, and against sensor when
// raw statistics are requested. The whole set succeeds or fails together.
func (ca *coreAnalyzer) MeasureRegions(ctx context.Context, img *raster.RGB, sensor *raster.Sensor, regions []region.Region, opts MeasureOptions) ([]RegionResult, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if opts.IncludeRaw && sensor != nil {
		if err := sensor.Validate(); err != nil {
			return nil, err
		}
		if sensor.Width != img.Width || sensor.Height != img.Height {
			return nil, apperrors.NewInvalidInputError("sensor array and rgb image differ in size", nil)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]RegionResult, len(regions))
	errs := make([]error, len(regions))

	measure := func(i int) {
		results[i], errs[i] = ca.measureOne(img, sensor, regions[i], opts)
	}

	if opts.ParallelRegions && len(regions) > 1 {
		workers := opts.MaxWorkers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		workers = min(workers, len(regions))

		indices := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range indices {
					measure(i)
				}
			}()
		}
		for i := range regions {
			indices <- i
		}
		close(indices)
		wg.Wait()
	} else {
		for i := range regions {
			measure(i)
		}
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (ca *coreAnalyzer) measureOne(img *raster.RGB, sensor *raster.Sensor, r region.Region, opts MeasureOptions) (RegionResult, error) {
	result := RegionResult{Region: r}

	stats, ok, err := ca.calculator.MeasureRGB(img, r)
	if err != nil {
		return result, err
	}
	if ok {
		result.RGB = &stats
	}

	if opts.IncludeRaw && sensor != nil {
		raw, ok, err := ca.calculator.MeasureRaw(sensor, r)
		if err != nil {
			return result, err
		}
		if ok {
			result.Raw = &raw
		}
	}
	return result, nil
}

// Close releases analyzer resources
func (ca *coreAnalyzer) Close() error {
	return nil
}
