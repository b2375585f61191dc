package analyzer

import (
	"math"
	"testing"

	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/mask"
	"go-roi-inspector/internal/raster"
	"go-roi-inspector/pkg/region"

	"gonum.org/v1/gonum/stat"
)

// createTestImage creates an RGB image filled with one colour
func createTestImage(width, height, bitDepth int, r, g, b uint16) *raster.RGB {
	img := raster.NewRGB(width, height, bitDepth)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, r, g, b)
		}
	}
	return img
}

// createGradientImage sets red to x, green to y and blue to x+y
func createGradientImage(width, height int) *raster.RGB {
	img := raster.NewRGB(width, height, 16)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, uint16(x), uint16(y), uint16(x+y))
		}
	}
	return img
}

func newRegion(t *testing.T, id int, g region.Geometry) region.Region {
	t.Helper()
	r, err := region.New(id, g)
	if err != nil {
		t.Fatalf("Failed to create region: %v", err)
	}
	return r
}

func TestMeasureRGB_UniformImage(t *testing.T) {
	calc := NewStatsCalculator()
	img := createTestImage(50, 40, 8, 200, 100, 50)

	stats, ok, err := calc.MeasureRGB(img, newRegion(t, 1, region.Rect{X: 5, Y: 5, W: 10, H: 4}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("Expected a non-empty result")
	}
	if stats.Count != 40 {
		t.Errorf("Expected 40 samples, got %d", stats.Count)
	}
	if stats.MeanR != 200 || stats.MeanG != 100 || stats.MeanB != 50 {
		t.Errorf("Expected means 200/100/50, got %v/%v/%v", stats.MeanR, stats.MeanG, stats.MeanB)
	}
	if stats.StdR != 0 || stats.StdG != 0 || stats.StdB != 0 {
		t.Errorf("Expected zero deviation, got %v/%v/%v", stats.StdR, stats.StdG, stats.StdB)
	}
}

func TestMeasureRGB_PopulationStdDev(t *testing.T) {
	calc := NewStatsCalculator()
	img := createGradientImage(4, 1)

	// red samples 0,1,2,3: mean 1.5, population variance 1.25
	stats, ok, err := calc.MeasureRGB(img, newRegion(t, 1, region.Rect{W: 4, H: 1}))
	if err != nil || !ok {
		t.Fatalf("Expected result, got ok=%v err=%v", ok, err)
	}
	if stats.MeanR != 1.5 {
		t.Errorf("Expected mean 1.5, got %v", stats.MeanR)
	}
	if math.Abs(stats.StdR-math.Sqrt(1.25)) > 1e-12 {
		t.Errorf("Expected std %v, got %v", math.Sqrt(1.25), stats.StdR)
	}
	if stats.StdG != 0 {
		t.Errorf("Expected green std 0, got %v", stats.StdG)
	}
}

func TestMeasureRGB_SixteenBitPrecision(t *testing.T) {
	calc := NewStatsCalculator()
	img := raster.NewRGB(2, 1, 16)
	img.Set(0, 0, 65535, 0, 1)
	img.Set(1, 0, 65534, 0, 2)

	stats, _, err := calc.MeasureRGB(img, newRegion(t, 1, region.Rect{W: 2, H: 1}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stats.MeanR != 65534.5 || stats.MeanB != 1.5 {
		t.Errorf("Expected fractional means, got R=%v B=%v", stats.MeanR, stats.MeanB)
	}
}

func TestMeasureRGB_RectCountEqualsArea(t *testing.T) {
	calc := NewStatsCalculator()
	img := createGradientImage(64, 48)

	for _, rect := range []region.Rect{{X: 0, Y: 0, W: 64, H: 48}, {X: 3, Y: 7, W: 11, H: 13}, {X: 63, Y: 47, W: 1, H: 1}} {
		stats, ok, err := calc.MeasureRGB(img, newRegion(t, 1, rect))
		if err != nil || !ok {
			t.Fatalf("Expected result for %+v, got ok=%v err=%v", rect, ok, err)
		}
		if stats.Count != rect.W*rect.H {
			t.Errorf("Expected %d samples for %+v, got %d", rect.W*rect.H, rect, stats.Count)
		}
	}
}

func TestMeasureRGB_CircleUsesMaskCount(t *testing.T) {
	calc := NewStatsCalculator()
	img := createTestImage(30, 30, 8, 10, 20, 30)

	stats, ok, err := calc.MeasureRGB(img, newRegion(t, 1, region.Circle{CX: 15, CY: 15, R: 1}))
	if err != nil || !ok {
		t.Fatalf("Expected result, got ok=%v err=%v", ok, err)
	}
	if stats.Count != 5 {
		t.Errorf("Expected 5 samples (not the 9 pixel bounding box), got %d", stats.Count)
	}
}

func TestMeasureRGB_OutsideIsEmpty(t *testing.T) {
	calc := NewStatsCalculator()
	img := createTestImage(10, 10, 8, 0, 0, 0)

	regions := []region.Geometry{
		region.Rect{X: 20, Y: 20, W: 5, H: 5},
		region.Rect{X: 2, Y: 2, W: 0, H: 5},
		region.Circle{CX: -10, CY: -10, R: 3},
		region.Polygon{Points: [][2]int{{30, 30}, {40, 30}, {35, 40}}},
	}
	for _, g := range regions {
		stats, ok, err := calc.MeasureRGB(img, newRegion(t, 1, g))
		if err != nil {
			t.Errorf("Expected no error for %+v, got %v", g, err)
		}
		if ok {
			t.Errorf("Expected empty result for %+v, got %+v", g, stats)
		}
	}
}

func TestMeasureRGB_Idempotent(t *testing.T) {
	calc := NewStatsCalculator()
	img := createGradientImage(200, 150)
	r := newRegion(t, 1, region.Polygon{Points: [][2]int{{10, 10}, {190, 30}, {120, 140}, {5, 100}}})

	first, _, err := calc.MeasureRGB(img, r)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, _, err := calc.MeasureRGB(img, r)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("Expected bit-identical results, got %+v and %+v", first, second)
	}
}

func TestMeasureRGB_InvalidInput(t *testing.T) {
	calc := NewStatsCalculator()
	good := createTestImage(4, 4, 8, 1, 1, 1)

	tests := []struct {
		name string
		img  *raster.RGB
		reg  region.Region
	}{
		{"wrong channel count", &raster.RGB{Width: 4, Height: 4, BitDepth: 8, Pix: make([]uint16, 32)}, newRegion(t, 1, region.Rect{W: 1, H: 1})},
		{"nil image", nil, newRegion(t, 1, region.Rect{W: 1, H: 1})},
		{"negative width", good, region.Region{ID: 1, Shape: region.ShapeRect, Params: []byte(`{"x":0,"y":0,"w":-2,"h":1}`)}},
		{"short polygon", good, region.Region{ID: 1, Shape: region.ShapePolygon, Params: []byte(`{"points":[[0,0],[1,1]]}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := calc.MeasureRGB(tt.img, tt.reg)
			if !apperrors.IsType(err, apperrors.ErrorTypeInvalidInput) {
				t.Errorf("Expected invalid input error, got %v", err)
			}
		})
	}
}

func TestMeasureRaw_PlaneParity(t *testing.T) {
	calc := NewStatsCalculator()
	sensor := raster.NewSensor(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			// R=10, G1=20, G2=30, B=40
			sensor.Set(x, y, uint16(10+10*(x&1)+20*(y&1)))
		}
	}

	stats, ok, err := calc.MeasureRaw(sensor, newRegion(t, 1, region.Rect{W: 4, H: 4}))
	if err != nil || !ok {
		t.Fatalf("Expected result, got ok=%v err=%v", ok, err)
	}
	if stats.R != 10 || stats.G1 != 20 || stats.G2 != 30 || stats.B != 40 {
		t.Errorf("Expected 10/20/30/40, got %+v", stats)
	}
	if stats.Counts != [4]int{4, 4, 4, 4} {
		t.Errorf("Expected 4 samples per plane, got %v", stats.Counts)
	}
}

func TestMeasureRaw_SingleHotPixel(t *testing.T) {
	calc := NewStatsCalculator()
	sensor := raster.NewSensor(4, 4)
	sensor.Set(0, 0, 100)

	// over one RGGB block every plane has a single sample
	block, _, err := calc.MeasureRaw(sensor, newRegion(t, 1, region.Rect{W: 2, H: 2}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if block.R != 100 || block.G1 != 0 || block.G2 != 0 || block.B != 0 {
		t.Errorf("Expected R=100 and zero elsewhere, got %+v", block)
	}

	// over the full array the R plane holds four samples
	full, _, err := calc.MeasureRaw(sensor, newRegion(t, 2, region.Rect{W: 4, H: 4}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if full.R != 25 || full.G1 != 0 || full.G2 != 0 || full.B != 0 {
		t.Errorf("Expected R=25 and zero elsewhere, got %+v", full)
	}
}

func TestMeasureRaw_SmallRegionYieldsNaNPlanes(t *testing.T) {
	calc := NewStatsCalculator()
	sensor := raster.NewSensor(6, 6)
	sensor.Set(3, 3, 7)

	stats, ok, err := calc.MeasureRaw(sensor, newRegion(t, 1, region.Circle{CX: 3, CY: 3, R: 0}))
	if err != nil || !ok {
		t.Fatalf("Expected result, got ok=%v err=%v", ok, err)
	}
	if stats.B != 7 {
		t.Errorf("Expected B=7 for odd/odd pixel, got %v", stats.B)
	}
	if !math.IsNaN(stats.R) || !math.IsNaN(stats.G1) || !math.IsNaN(stats.G2) {
		t.Errorf("Expected NaN for planes without samples, got %+v", stats)
	}
}

func TestMeasureRaw_OddOriginKeepsSensorParity(t *testing.T) {
	calc := NewStatsCalculator()
	sensor := raster.NewSensor(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			sensor.Set(x, y, uint16(1+(y&1)*2+(x&1)))
		}
	}

	stats, _, err := calc.MeasureRaw(sensor, newRegion(t, 1, region.Rect{X: 1, Y: 1, W: 2, H: 2}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stats.R != 1 || stats.G1 != 2 || stats.G2 != 3 || stats.B != 4 {
		t.Errorf("Expected planes anchored at the sensor origin, got %+v", stats)
	}
}

func TestMeasureRaw_MaskIsStrided(t *testing.T) {
	calc := NewStatsCalculator()
	sensor := raster.NewSensor(8, 8)
	for i := range sensor.Pix {
		sensor.Pix[i] = 50
	}

	stats, ok, err := calc.MeasureRaw(sensor, newRegion(t, 1, region.Circle{CX: 4, CY: 4, R: 1}))
	if err != nil || !ok {
		t.Fatalf("Expected result, got ok=%v err=%v", ok, err)
	}
	// disk pixels: (4,4) R, (3,4) (5,4) G1, (4,3) (4,5) G2
	if stats.Counts != [4]int{1, 2, 2, 0} {
		t.Errorf("Expected counts [1 2 2 0], got %v", stats.Counts)
	}
	if !math.IsNaN(stats.B) {
		t.Errorf("Expected NaN blue plane, got %v", stats.B)
	}
}

func TestMeasureRaw_Empty(t *testing.T) {
	calc := NewStatsCalculator()
	_, ok, err := calc.MeasureRaw(raster.NewSensor(4, 4), newRegion(t, 1, region.Rect{X: 10, Y: 10, W: 2, H: 2}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ok {
		t.Error("Expected empty result")
	}
}

func TestMeasureRaw_InvalidSensor(t *testing.T) {
	calc := NewStatsCalculator()
	bad := &raster.Sensor{Width: 4, Height: 4, Pix: make([]uint16, 48)}
	_, _, err := calc.MeasureRaw(bad, newRegion(t, 1, region.Rect{W: 1, H: 1}))
	if !apperrors.IsType(err, apperrors.ErrorTypeInvalidInput) {
		t.Errorf("Expected invalid input error, got %v", err)
	}
}

// wholeRegionStats gathers every selected sample before calling gonum, the
// reference the row-wise accumulation must agree with.
func wholeRegionStats(t *testing.T, img *raster.RGB, r region.Region) RGBStats {
	t.Helper()
	sel, err := selectRegion(r, mask.Extent{Width: img.Width, Height: img.Height})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	var rs, gs, bs []float64
	for y := sel.Bounds.Min.Y; y < sel.Bounds.Max.Y; y++ {
		for x := sel.Bounds.Min.X; x < sel.Bounds.Max.X; x++ {
			if !sel.Contains(x, y) {
				continue
			}
			pr, pg, pb := img.At(x, y)
			rs = append(rs, float64(pr))
			gs = append(gs, float64(pg))
			bs = append(bs, float64(pb))
		}
	}
	out := RGBStats{Count: len(rs)}
	out.MeanR, out.StdR = stat.PopMeanStdDev(rs, nil)
	out.MeanG, out.StdG = stat.PopMeanStdDev(gs, nil)
	out.MeanB, out.StdB = stat.PopMeanStdDev(bs, nil)
	return out
}

func closeTo(got, want float64) bool {
	return math.Abs(got-want) <= 1e-12*math.Max(1, math.Abs(want))
}

func TestMeasureRGB_RowwiseMatchesWholeRegion(t *testing.T) {
	calc := NewStatsCalculator()
	img := raster.NewRGB(97, 61, 16)
	// deterministic pseudo-random 16-bit content
	seed := uint32(12345)
	for i := range img.Pix {
		seed = seed*1664525 + 1013904223
		img.Pix[i] = uint16(seed >> 16)
	}

	geoms := []region.Geometry{
		region.Rect{X: 0, Y: 0, W: 97, H: 61},
		region.Rect{X: 13, Y: 5, W: 40, H: 33},
		region.Circle{CX: 48, CY: 30, R: 25},
		region.Polygon{Points: [][2]int{{2, 3}, {90, 10}, {70, 58}, {10, 40}}},
	}
	for _, g := range geoms {
		r := newRegion(t, 1, g)
		got, ok, err := calc.MeasureRGB(img, r)
		if err != nil || !ok {
			t.Fatalf("Expected result for %+v, got ok=%v err=%v", g, ok, err)
		}
		want := wholeRegionStats(t, img, r)
		if got.Count != want.Count {
			t.Errorf("%+v: expected %d samples, got %d", g, want.Count, got.Count)
		}
		pairs := [][2]float64{
			{got.MeanR, want.MeanR}, {got.MeanG, want.MeanG}, {got.MeanB, want.MeanB},
			{got.StdR, want.StdR}, {got.StdG, want.StdG}, {got.StdB, want.StdB},
		}
		for i, p := range pairs {
			if !closeTo(p[0], p[1]) {
				t.Errorf("%+v: statistic %d is %v, expected %v", g, i, p[0], p[1])
			}
		}
	}
}

func TestMeasureRaw_SixteenBitSumsAreExact(t *testing.T) {
	calc := NewStatsCalculator()
	sensor := raster.NewSensor(64, 64)
	for i := range sensor.Pix {
		sensor.Pix[i] = 65535
	}
	sensor.Set(1, 0, 65534)

	stats, ok, err := calc.MeasureRaw(sensor, newRegion(t, 1, region.Rect{W: 64, H: 64}))
	if err != nil || !ok {
		t.Fatalf("Expected result, got ok=%v err=%v", ok, err)
	}
	if stats.R != 65535 || stats.G2 != 65535 || stats.B != 65535 {
		t.Errorf("Expected saturated planes, got %+v", stats)
	}
	if want := (65535.0*1023 + 65534) / 1024; stats.G1 != want {
		t.Errorf("Expected G1 %v, got %v", want, stats.G1)
	}
}
