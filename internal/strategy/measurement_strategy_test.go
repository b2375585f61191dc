package strategy

import (
	"context"
	"fmt"
	"testing"

	"go-roi-inspector/internal/analyzer"
	"go-roi-inspector/internal/decode"
	"go-roi-inspector/internal/raster"
	"go-roi-inspector/pkg/region"
)

func decoded(withSensor bool) *decode.Decoded {
	img := raster.NewRGB(4, 4, 8)
	for i := range img.Pix {
		img.Pix[i] = 40
	}
	d := &decode.Decoded{RGB: img}
	if withSensor {
		s := raster.NewSensor(4, 4)
		for i := range s.Pix {
			s.Pix[i] = 100
		}
		d.Sensor = s
	}
	return d
}

func regions(t *testing.T, n int) []region.Region {
	t.Helper()
	out := make([]region.Region, n)
	for i := range out {
		r, err := region.New(i+1, region.Rect{X: i % 4, Y: 0, W: 1, H: 2})
		if err != nil {
			t.Fatalf("Failed to build region: %v", err)
		}
		out[i] = r
	}
	return out
}

func TestSelect(t *testing.T) {
	a := analyzer.NewRegionAnalyzer(nil)
	tests := []struct {
		raw   bool
		count int
		want  string
	}{
		{false, 1, "rgb"},
		{true, 3, "rgb+raw"},
		{false, ParallelThreshold, "parallel_rgb"},
		{true, ParallelThreshold + 4, "parallel_rgb+raw"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("raw=%v/count=%d", tt.raw, tt.count), func(t *testing.T) {
			if got := Select(a, tt.raw, tt.count).GetStrategyName(); got != tt.want {
				t.Errorf("Expected strategy %s, got %s", tt.want, got)
			}
		})
	}
}

func TestStrategiesMeasure(t *testing.T) {
	a := analyzer.NewRegionAnalyzer(nil)
	ctx := context.Background()
	rs := regions(t, 2)

	results, err := NewRGBStrategy(a).Measure(ctx, decoded(true), rs)
	if err != nil {
		t.Fatalf("RGB strategy failed: %v", err)
	}
	if results[0].Raw != nil {
		t.Error("Expected no raw statistics from the RGB strategy")
	}
	if results[1].RGB == nil || results[1].RGB.MeanG != 40 {
		t.Errorf("Unexpected RGB statistics: %+v", results[1].RGB)
	}

	results, err = NewRawPlaneStrategy(a).Measure(ctx, decoded(true), rs)
	if err != nil {
		t.Fatalf("Raw strategy failed: %v", err)
	}
	if results[0].Raw == nil || results[0].Raw.R != 100 {
		t.Errorf("Expected raw R plane 100, got %+v", results[0].Raw)
	}

	results, err = NewRawPlaneStrategy(a).Measure(ctx, decoded(false), rs)
	if err != nil {
		t.Fatalf("Raw strategy without sensor failed: %v", err)
	}
	if results[0].Raw != nil {
		t.Error("Expected no raw statistics without sensor data")
	}
}

func TestParallelStrategyKeepsRegionOrder(t *testing.T) {
	rs := regions(t, ParallelThreshold)
	mc := NewMeasurementContext(NewRGBStrategy(analyzer.NewRegionAnalyzer(nil)))
	mc.SetStrategy(NewParallelStrategy(analyzer.NewRegionAnalyzer(nil), false, 4))

	if mc.GetCurrentStrategy() != "parallel_rgb" {
		t.Fatalf("Expected parallel strategy, got %s", mc.GetCurrentStrategy())
	}
	results, err := mc.ExecuteMeasurement(context.Background(), decoded(false), rs)
	if err != nil {
		t.Fatalf("ExecuteMeasurement failed: %v", err)
	}
	for i, res := range results {
		if res.Region.ID != i+1 {
			t.Errorf("Result %d: expected region %d, got %d", i, i+1, res.Region.ID)
		}
	}
}
