package strategy

import (
	"context"

	"go-roi-inspector/internal/analyzer"
	"go-roi-inspector/internal/decode"
	"go-roi-inspector/pkg/region"
)

// ParallelThreshold is the region count from which regions are measured
// concurrently.
const ParallelThreshold = 16

// MeasurementStrategy defines how a region set is measured on a decoded image
type MeasurementStrategy interface {
	Measure(ctx context.Context, img *decode.Decoded, regions []region.Region) ([]analyzer.RegionResult, error)
	GetStrategyName() string
}

// RGBStrategy measures developed colour statistics only
type RGBStrategy struct {
	analyzer analyzer.RegionAnalyzer
}

// NewRGBStrategy creates a new RGB strategy
func NewRGBStrategy(a analyzer.RegionAnalyzer) MeasurementStrategy {
	return &RGBStrategy{analyzer: a}
}

// Measure performs RGB measurement
func (s *RGBStrategy) Measure(ctx context.Context, img *decode.Decoded, regions []region.Region) ([]analyzer.RegionResult, error) {
	return s.analyzer.MeasureRegions(ctx, img.RGB, nil, regions, analyzer.DefaultOptions())
}

// GetStrategyName returns the strategy name
func (s *RGBStrategy) GetStrategyName() string {
	return "rgb"
}

// RawPlaneStrategy adds RGGB plane means from the sensor array. Images
// without sensor data get RGB statistics only.
type RawPlaneStrategy struct {
	analyzer analyzer.RegionAnalyzer
}

// NewRawPlaneStrategy creates a new raw plane strategy
func NewRawPlaneStrategy(a analyzer.RegionAnalyzer) MeasurementStrategy {
	return &RawPlaneStrategy{analyzer: a}
}

// Measure performs RGB and raw plane measurement
func (s *RawPlaneStrategy) Measure(ctx context.Context, img *decode.Decoded, regions []region.Region) ([]analyzer.RegionResult, error) {
	return s.analyzer.MeasureRegions(ctx, img.RGB, img.Sensor, regions, analyzer.RawOptions())
}

// GetStrategyName returns the strategy name
func (s *RawPlaneStrategy) GetStrategyName() string {
	return "rgb+raw"
}

// ParallelStrategy spreads large region sets over several goroutines
type ParallelStrategy struct {
	analyzer analyzer.RegionAnalyzer
	raw      bool
	workers  int
}

// NewParallelStrategy creates a parallel strategy; workers <= 0 means one
// per CPU
func NewParallelStrategy(a analyzer.RegionAnalyzer, raw bool, workers int) MeasurementStrategy {
	return &ParallelStrategy{analyzer: a, raw: raw, workers: workers}
}

// Measure performs region-parallel measurement; results keep region order
func (s *ParallelStrategy) Measure(ctx context.Context, img *decode.Decoded, regions []region.Region) ([]analyzer.RegionResult, error) {
	opts := analyzer.DefaultOptions().WithRaw(s.raw).WithParallelRegions(s.workers)
	return s.analyzer.MeasureRegions(ctx, img.RGB, img.Sensor, regions, opts)
}

// GetStrategyName returns the strategy name
func (s *ParallelStrategy) GetStrategyName() string {
	if s.raw {
		return "parallel_rgb+raw"
	}
	return "parallel_rgb"
}

// Select picks the strategy for a request.
func Select(a analyzer.RegionAnalyzer, raw bool, regionCount int) MeasurementStrategy {
	switch {
	case regionCount >= ParallelThreshold:
		return NewParallelStrategy(a, raw, 0)
	case raw:
		return NewRawPlaneStrategy(a)
	default:
		return NewRGBStrategy(a)
	}
}

// MeasurementContext manages the measurement strategy
type MeasurementContext struct {
	strategy MeasurementStrategy
}

// NewMeasurementContext creates a new measurement context
func NewMeasurementContext(strategy MeasurementStrategy) *MeasurementContext {
	return &MeasurementContext{strategy: strategy}
}

// SetStrategy changes the measurement strategy
func (c *MeasurementContext) SetStrategy(strategy MeasurementStrategy) {
	c.strategy = strategy
}

// ExecuteMeasurement measures using the current strategy
func (c *MeasurementContext) ExecuteMeasurement(ctx context.Context, img *decode.Decoded, regions []region.Region) ([]analyzer.RegionResult, error) {
	return c.strategy.Measure(ctx, img, regions)
}

// GetCurrentStrategy returns the current strategy name
func (c *MeasurementContext) GetCurrentStrategy() string {
	return c.strategy.GetStrategyName()
}
