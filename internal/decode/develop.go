package decode

import (
	"math"

	"go-roi-inspector/internal/raster"
)

// CFA sites in RGGB order as stored by raster.Sensor plane parity.
const (
	siteR = iota
	siteG1
	siteG2
	siteB
)

func siteAt(x, y int) int {
	return (y&1)<<1 | (x & 1)
}

// channel of each site in RGB output
var siteChannel = [4]int{0, 1, 1, 2}

// Develop renders a CFA mosaic into RGB: white balance, bilinear
// interpolation, optional auto-brighten, gamma, then quantization to
// cfg.BitDepth. whiteLevel is the sensor value treated as full scale.
func Develop(sensor *raster.Sensor, whiteLevel float64, cfg Config) (*raster.RGB, error) {
	if err := sensor.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if whiteLevel <= 0 {
		whiteLevel = 65535
	}

	w, h := sensor.Width, sensor.Height
	gains := siteGains(sensor, cfg.WhiteBalance)

	balanced := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float64(sensor.At(x, y)) / whiteLevel * gains[siteAt(x, y)]
			balanced[y*w+x] = math.Min(v, 1)
		}
	}

	rgb := bilinear(balanced, w, h)

	scale := 1.0
	if cfg.AutoBrighten {
		if white := highlightLevel(rgb); white > 0 {
			scale = 1 / white
		}
	}

	curve := newGammaCurve(cfg.Gamma)
	out := raster.NewRGB(w, h, cfg.BitDepth)
	maxValue := out.MaxValue()
	for i, v := range rgb {
		v = math.Min(v*scale, 1)
		out.Pix[i] = uint16(math.Round(curve.apply(v) * maxValue))
	}
	return out, nil
}

// siteGains returns per-site multipliers normalized so the smallest is 1.
func siteGains(sensor *raster.Sensor, wb WhiteBalance) [4]float64 {
	gains := [4]float64{1, 1, 1, 1}
	switch wb.Mode {
	case WhiteBalanceManual:
		// configured order is R, G1, B, G2
		gains = [4]float64{wb.Gains[0], wb.Gains[1], wb.Gains[3], wb.Gains[2]}
	case WhiteBalanceAuto:
		var sums [4]float64
		var counts [4]int
		for y := 0; y < sensor.Height; y++ {
			for x := 0; x < sensor.Width; x++ {
				s := siteAt(x, y)
				sums[s] += float64(sensor.At(x, y))
				counts[s]++
			}
		}
		var means [4]float64
		for s := range sums {
			if counts[s] > 0 {
				means[s] = sums[s] / float64(counts[s])
			}
		}
		green := (means[siteG1] + means[siteG2]) / 2
		if means[siteR] > 0 && green > 0 {
			gains[siteR] = green / means[siteR]
		}
		if means[siteB] > 0 && green > 0 {
			gains[siteB] = green / means[siteB]
		}
	}

	lowest := math.Min(math.Min(gains[0], gains[1]), math.Min(gains[2], gains[3]))
	for i := range gains {
		gains[i] /= lowest
	}
	return gains
}

// bilinear interpolates the missing channels of every pixel from the
// in-bounds 3x3 neighbours of the matching CFA colour.
func bilinear(mosaic []float64, w, h int) []float64 {
	out := make([]float64, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			own := siteChannel[siteAt(x, y)]
			var sum [3]float64
			var n [3]int
			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= w {
						continue
					}
					c := siteChannel[siteAt(nx, ny)]
					sum[c] += mosaic[ny*w+nx]
					n[c]++
				}
			}
			p := (y*w + x) * 3
			for c := 0; c < 3; c++ {
				switch {
				case c == own:
					out[p+c] = mosaic[y*w+x]
				case n[c] > 0:
					out[p+c] = sum[c] / float64(n[c])
				}
			}
		}
	}
	return out
}

// highlightLevel is the largest per-channel level with at least 1% of the
// pixels at or above it.
func highlightLevel(rgb []float64) float64 {
	const bins = 8192
	var hist [3][bins]int
	for i, v := range rgb {
		b := int(v * (bins - 1))
		b = max(0, min(b, bins-1))
		hist[i%3][b]++
	}

	perc := len(rgb) / 3 / 100
	white := 0
	for c := range hist {
		total, level := 0, bins-1
		for ; level > 32; level-- {
			total += hist[c][level]
			if total > perc {
				break
			}
		}
		white = max(white, level)
	}
	return float64(white) / (bins - 1)
}

// gammaCurve maps linear values in [0,1] through a power curve whose low end
// is replaced by a straight toe. The solver follows dcraw's gamma_curve.
type gammaCurve struct {
	exp, slope, toe, offset float64
}

func newGammaCurve(g Gamma) gammaCurve {
	c := gammaCurve{exp: 1 / g.Power, slope: g.Slope}

	var knee float64
	bnd := [2]float64{0, 0}
	if c.slope >= 1 {
		bnd[1] = 1
	} else {
		bnd[0] = 1
	}
	if (c.slope-1)*(c.exp-1) <= 0 {
		for i := 0; i < 48; i++ {
			knee = (bnd[0] + bnd[1]) / 2
			if (math.Pow(knee/c.slope, -c.exp)-1)/c.exp-1/knee > -1 {
				bnd[1] = knee
			} else {
				bnd[0] = knee
			}
		}
		c.toe = knee / c.slope
		c.offset = knee * (1/c.exp - 1)
	}
	return c
}

func (c gammaCurve) apply(v float64) float64 {
	if v < c.toe {
		return v * c.slope
	}
	return math.Pow(v, c.exp)*(1+c.offset) - c.offset
}
