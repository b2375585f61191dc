package analyzer

import (
	"math"
	"sync"

	"go-roi-inspector/internal/mask"
	"go-roi-inspector/internal/raster"
	"go-roi-inspector/pkg/region"

	"gonum.org/v1/gonum/stat"
)

// statsCalculator implements StatsCalculator with Gonum statistics.
// Samples are gathered one sub-window row at a time, so the scratch space is
// bounded by the region width. Row buffers are pooled since batch runs
// measure the same regions on every image.
type statsCalculator struct {
	slicePool sync.Pool
}

// NewStatsCalculator creates a new statistics calculator using Gonum
func NewStatsCalculator() StatsCalculator {
	return &statsCalculator{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

func (sc *statsCalculator) getSlice(n int) []float64 {
	data := sc.slicePool.Get().([]float64)
	if cap(data) < n {
		data = make([]float64, 0, n)
	}
	return data[:0]
}

func (sc *statsCalculator) putSlice(data []float64) {
	sc.slicePool.Put(data[:0])
}

// moments is the running count, mean and sum of squared deviations of one
// channel.
type moments struct {
	n    int
	mean float64
	m2   float64
}

// add merges the population mean and standard deviation of a batch of
// samples using the pairwise update of Chan, Golub and LeVeque.
func (m *moments) add(samples []float64) {
	nb := len(samples)
	if nb == 0 {
		return
	}
	meanB, stdB := stat.PopMeanStdDev(samples, nil)
	m2B := stdB * stdB * float64(nb)
	if m.n == 0 {
		m.n, m.mean, m.m2 = nb, meanB, m2B
		return
	}
	n := m.n + nb
	delta := meanB - m.mean
	m.mean += delta * float64(nb) / float64(n)
	m.m2 += m2B + delta*delta*float64(m.n)*float64(nb)/float64(n)
	m.n = n
}

func (m moments) std() float64 {
	if m.n == 0 {
		return 0
	}
	return math.Sqrt(m.m2 / float64(m.n))
}

// MeasureRGB computes mean and population standard deviation per channel over
// the pixels the region selects.
func (sc *statsCalculator) MeasureRGB(img *raster.RGB, r region.Region) (RGBStats, bool, error) {
	if err := img.Validate(); err != nil {
		return RGBStats{}, false, err
	}
	sel, err := selectRegion(r, mask.Extent{Width: img.Width, Height: img.Height})
	if err != nil {
		return RGBStats{}, false, err
	}
	if sel.Empty() {
		return RGBStats{}, false, nil
	}

	b := sel.Bounds
	w := b.Dx()
	rs, gs, bs := sc.getSlice(w), sc.getSlice(w), sc.getSlice(w)
	defer func() {
		sc.putSlice(rs)
		sc.putSlice(gs)
		sc.putSlice(bs)
	}()

	var mr, mg, mb moments
	for y := b.Min.Y; y < b.Max.Y; y++ {
		rs, gs, bs = rs[:0], gs[:0], bs[:0]
		p := img.Offset(b.Min.X, y)
		var row []bool
		if sel.Mask != nil {
			row = sel.Mask[(y-b.Min.Y)*w : (y-b.Min.Y+1)*w]
		}
		for i := 0; i < w; i, p = i+1, p+3 {
			if row != nil && !row[i] {
				continue
			}
			rs = append(rs, float64(img.Pix[p]))
			gs = append(gs, float64(img.Pix[p+1]))
			bs = append(bs, float64(img.Pix[p+2]))
		}
		mr.add(rs)
		mg.add(gs)
		mb.add(bs)
	}

	return RGBStats{
		MeanR: mr.mean, StdR: mr.std(),
		MeanG: mg.mean, StdG: mg.std(),
		MeanB: mb.mean, StdB: mb.std(),
		Count: mr.n,
	}, true, nil
}

// MeasureRaw computes the mean of each RGGB plane over the selected sensor
// samples. Plane membership follows the parity of the absolute sensor
// coordinates: R even row/even column, G1 even/odd, G2 odd/even, B odd/odd.
// Sums are exact integers, so the means match summing every sample first.
func (sc *statsCalculator) MeasureRaw(sensor *raster.Sensor, r region.Region) (RawStats, bool, error) {
	if err := sensor.Validate(); err != nil {
		return RawStats{}, false, err
	}
	sel, err := selectRegion(r, mask.Extent{Width: sensor.Width, Height: sensor.Height})
	if err != nil {
		return RawStats{}, false, err
	}
	if sel.Empty() {
		return RawStats{}, false, nil
	}

	var sums [4]uint64
	var stats RawStats
	b := sel.Bounds
	w := b.Dx()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		base := y * sensor.Width
		rowParity := (y & 1) << 1
		for x := b.Min.X; x < b.Max.X; x++ {
			if sel.Mask != nil && !sel.Mask[(y-b.Min.Y)*w+(x-b.Min.X)] {
				continue
			}
			k := rowParity | (x & 1)
			sums[k] += uint64(sensor.Pix[base+x])
			stats.Counts[k]++
		}
	}

	var means [4]float64
	for i, n := range stats.Counts {
		if n == 0 {
			means[i] = math.NaN()
			continue
		}
		means[i] = float64(sums[i]) / float64(n)
	}
	stats.R, stats.G1, stats.G2, stats.B = means[0], means[1], means[2], means[3]
	return stats, true, nil
}

func selectRegion(r region.Region, ext mask.Extent) (mask.Selection, error) {
	g, err := r.Geometry()
	if err != nil {
		return mask.Selection{}, err
	}
	return mask.Build(g, ext)
}
