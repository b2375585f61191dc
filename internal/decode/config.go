// Package decode turns image files into RGB and sensor arrays under a fixed
// decode configuration.
package decode

import (
	"fmt"
	"sort"
	"strings"

	apperrors "go-roi-inspector/internal/errors"

	"github.com/arbovm/levenshtein"
)

// Demosaic names a CFA interpolation algorithm.
type Demosaic string

const (
	DemosaicLinear Demosaic = "linear"
	DemosaicVNG    Demosaic = "vng"
	DemosaicPPG    Demosaic = "ppg"
	DemosaicAHD    Demosaic = "ahd"
	DemosaicDCB    Demosaic = "dcb"
	DemosaicLMMSE  Demosaic = "lmmse"
	DemosaicAMaZE  Demosaic = "amaze"
)

// LibRaw user_qual codes.
var demosaicCodes = map[Demosaic]int{
	DemosaicLinear: 0,
	DemosaicVNG:    1,
	DemosaicPPG:    2,
	DemosaicAHD:    3,
	DemosaicDCB:    4,
	DemosaicLMMSE:  9,
	DemosaicAMaZE:  10,
}

// QualityCode is the LibRaw interpolation quality for the algorithm.
func (d Demosaic) QualityCode() int {
	return demosaicCodes[d]
}

// WhiteBalanceMode selects where channel multipliers come from.
type WhiteBalanceMode string

const (
	WhiteBalanceCamera WhiteBalanceMode = "camera"
	WhiteBalanceAuto   WhiteBalanceMode = "auto"
	WhiteBalanceManual WhiteBalanceMode = "manual"
)

// WhiteBalance holds the mode and, for manual mode, the R, G1, B, G2 gains.
type WhiteBalance struct {
	Mode  WhiteBalanceMode `json:"mode"`
	Gains [4]float64       `json:"gains,omitempty"`
}

// Gamma is a power curve with a linear toe of the given slope.
type Gamma struct {
	Power float64 `json:"power"`
	Slope float64 `json:"slope"`
}

var (
	GammaLinear = Gamma{Power: 1, Slope: 1}
	GammaSRGB   = Gamma{Power: 2.222, Slope: 4.5}
)

// Config is the full decode configuration applied to every image of a run.
type Config struct {
	BitDepth     int          `json:"bit_depth"`
	WhiteBalance WhiteBalance `json:"white_balance"`
	Gamma        Gamma        `json:"gamma"`
	AutoBrighten bool         `json:"auto_brighten"`
	Demosaic     Demosaic     `json:"demosaic"`
}

// DefaultConfig returns 8-bit output, camera white balance, linear gamma,
// no auto-brighten and AHD interpolation.
func DefaultConfig() Config {
	return Config{
		BitDepth:     8,
		WhiteBalance: WhiteBalance{Mode: WhiteBalanceCamera},
		Gamma:        GammaLinear,
		AutoBrighten: false,
		Demosaic:     DemosaicAHD,
	}
}

// WithBitDepth sets the output sample width
func (c Config) WithBitDepth(bits int) Config {
	c.BitDepth = bits
	return c
}

// WithWhiteBalance sets the white balance
func (c Config) WithWhiteBalance(wb WhiteBalance) Config {
	c.WhiteBalance = wb
	return c
}

// WithGamma sets the output curve
func (c Config) WithGamma(g Gamma) Config {
	c.Gamma = g
	return c
}

// WithAutoBrighten toggles highlight-based brightening
func (c Config) WithAutoBrighten(enabled bool) Config {
	c.AutoBrighten = enabled
	return c
}

// WithDemosaic sets the interpolation algorithm
func (c Config) WithDemosaic(d Demosaic) Config {
	c.Demosaic = d
	return c
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	if c.BitDepth != 8 && c.BitDepth != 16 {
		return apperrors.NewInvalidInputError(fmt.Sprintf("bit depth must be 8 or 16, got %d", c.BitDepth), nil)
	}
	if err := c.WhiteBalance.Validate(); err != nil {
		return err
	}
	if c.Gamma.Power <= 0 || c.Gamma.Slope <= 0 {
		return apperrors.NewInvalidInputError(
			fmt.Sprintf("gamma power and slope must be > 0, got (%g, %g)", c.Gamma.Power, c.Gamma.Slope), nil)
	}
	if _, ok := demosaicCodes[c.Demosaic]; !ok {
		return apperrors.NewInvalidInputError(fmt.Sprintf("unknown demosaic algorithm %q", c.Demosaic), nil)
	}
	return nil
}

// Validate checks the mode and, for manual mode, that every gain is positive.
func (wb WhiteBalance) Validate() error {
	switch wb.Mode {
	case WhiteBalanceCamera, WhiteBalanceAuto:
		return nil
	case WhiteBalanceManual:
		for i, g := range wb.Gains {
			if !(g > 0) {
				return apperrors.NewInvalidInputError(
					fmt.Sprintf("manual white balance gain %d must be > 0, got %g", i, g), nil)
			}
		}
		return nil
	default:
		return apperrors.NewInvalidInputError(fmt.Sprintf("unknown white balance mode %q", wb.Mode), nil)
	}
}

// ParseDemosaic accepts algorithm names case-insensitively, including the
// "AHD (default)" label.
func ParseDemosaic(name string) (Demosaic, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimSpace(strings.TrimSuffix(key, "(default)"))
	if key == "" {
		return DemosaicAHD, nil
	}
	d := Demosaic(key)
	if _, ok := demosaicCodes[d]; ok {
		return d, nil
	}
	names := make([]string, 0, len(demosaicCodes))
	for known := range demosaicCodes {
		names = append(names, string(known))
	}
	return "", unknownName("demosaic algorithm", name, names)
}

// ParseWhiteBalance builds a white balance from a mode name. Manual mode
// takes R, G, B (G reused for G2) or R, G1, B, G2 gains.
func ParseWhiteBalance(mode string, gains []float64) (WhiteBalance, error) {
	m := WhiteBalanceMode(strings.ToLower(strings.TrimSpace(mode)))
	switch m {
	case "":
		return WhiteBalance{Mode: WhiteBalanceCamera}, nil
	case WhiteBalanceCamera, WhiteBalanceAuto:
		if len(gains) > 0 {
			return WhiteBalance{}, apperrors.NewInvalidInputError(
				fmt.Sprintf("white balance %q takes no gains", m), nil)
		}
		return WhiteBalance{Mode: m}, nil
	case WhiteBalanceManual:
		wb := WhiteBalance{Mode: WhiteBalanceManual}
		switch len(gains) {
		case 3:
			wb.Gains = [4]float64{gains[0], gains[1], gains[2], gains[1]}
		case 4:
			copy(wb.Gains[:], gains)
		default:
			return WhiteBalance{}, apperrors.NewInvalidInputError(
				fmt.Sprintf("manual white balance needs 3 or 4 gains, got %d", len(gains)), nil)
		}
		return wb, wb.Validate()
	default:
		return WhiteBalance{}, unknownName("white balance mode", mode,
			[]string{string(WhiteBalanceCamera), string(WhiteBalanceAuto), string(WhiteBalanceManual)})
	}
}

// ParseGamma accepts "linear", "srgb" or "manual" with (power, slope).
func ParseGamma(mode string, params []float64) (Gamma, error) {
	m := strings.ToLower(strings.TrimSpace(mode))
	switch m {
	case "", "linear":
		return GammaLinear, noParams(m, params)
	case "srgb":
		return GammaSRGB, noParams(m, params)
	case "manual":
		if len(params) != 2 {
			return Gamma{}, apperrors.NewInvalidInputError(
				fmt.Sprintf("manual gamma needs power and slope, got %d values", len(params)), nil)
		}
		g := Gamma{Power: params[0], Slope: params[1]}
		if !(g.Power > 0) || !(g.Slope > 0) {
			return Gamma{}, apperrors.NewInvalidInputError(
				fmt.Sprintf("gamma power and slope must be > 0, got (%g, %g)", g.Power, g.Slope), nil)
		}
		return g, nil
	default:
		return Gamma{}, unknownName("gamma", mode, []string{"linear", "srgb", "manual"})
	}
}

func noParams(mode string, params []float64) error {
	if len(params) > 0 {
		return apperrors.NewInvalidInputError(fmt.Sprintf("gamma %q takes no parameters", mode), nil)
	}
	return nil
}

func unknownName(kind, got string, known []string) error {
	sort.Strings(known)
	err := apperrors.NewInvalidInputError(fmt.Sprintf("unknown %s %q", kind, got), nil).
		WithDetails("valid values: " + strings.Join(known, ", "))
	if s := closest(strings.ToLower(got), known); s != "" {
		return apperrors.WithHint(err, fmt.Sprintf("did you mean %q?", s))
	}
	return err
}

// closest returns the nearest known name within an edit distance of 3.
func closest(got string, known []string) string {
	best, bestDist := "", 4
	for _, k := range known {
		if d := levenshtein.Distance(got, k); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

// Settings is the textual form of a Config as it arrives from flags, config
// files or request bodies.
type Settings struct {
	BitDepth     int       `json:"bit_depth" mapstructure:"bit_depth"`
	WhiteBalance string    `json:"white_balance" mapstructure:"white_balance"`
	WBGains      []float64 `json:"wb_gains,omitempty" mapstructure:"wb_gains"`
	Gamma        string    `json:"gamma" mapstructure:"gamma"`
	GammaParams  []float64 `json:"gamma_params,omitempty" mapstructure:"gamma_params"`
	AutoBrighten bool      `json:"auto_brighten" mapstructure:"auto_brighten"`
	Demosaic     string    `json:"demosaic" mapstructure:"demosaic"`
}

// Config parses the settings. Every malformed value is an error; nothing
// falls back to a default silently. A zero bit depth means 8.
func (s Settings) Config() (Config, error) {
	cfg := DefaultConfig()
	if s.BitDepth != 0 {
		cfg.BitDepth = s.BitDepth
	}

	wb, err := ParseWhiteBalance(s.WhiteBalance, s.WBGains)
	if err != nil {
		return Config{}, err
	}
	gamma, err := ParseGamma(s.Gamma, s.GammaParams)
	if err != nil {
		return Config{}, err
	}
	demosaic, err := ParseDemosaic(s.Demosaic)
	if err != nil {
		return Config{}, err
	}

	cfg = cfg.WithWhiteBalance(wb).WithGamma(gamma).WithDemosaic(demosaic).WithAutoBrighten(s.AutoBrighten)
	return cfg, cfg.Validate()
}
