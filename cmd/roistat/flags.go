package main

import (
	"fmt"
	"strconv"
	"strings"

	"go-roi-inspector/internal/config"
	"go-roi-inspector/internal/decode"
	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/pkg/region"

	"github.com/spf13/cobra"
)

// geometryFlags collects regions given on the command line.
type geometryFlags struct {
	rects    []string
	circles  []string
	polygons []string
}

func (g *geometryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&g.rects, "rect", nil, `Rectangle "x,y,w,h" (repeatable)`)
	cmd.Flags().StringArrayVar(&g.circles, "circle", nil, `Circle "cx,cy,r" (repeatable)`)
	cmd.Flags().StringArrayVar(&g.polygons, "polygon", nil, `Polygon "x,y x,y x,y ..." (repeatable)`)
}

func (g *geometryFlags) empty() bool {
	return len(g.rects)+len(g.circles)+len(g.polygons) == 0
}

// session adds the flag geometries in rectangle, circle, polygon order, so
// ids follow that order.
func (g *geometryFlags) session() (*region.Session, error) {
	s := region.NewSession()
	for _, spec := range g.rects {
		v, err := parseInts("rect", spec, 4)
		if err != nil {
			return nil, err
		}
		if _, err := s.Add(region.Rect{X: v[0], Y: v[1], W: v[2], H: v[3]}); err != nil {
			return nil, err
		}
	}
	for _, spec := range g.circles {
		v, err := parseInts("circle", spec, 3)
		if err != nil {
			return nil, err
		}
		if _, err := s.Add(region.Circle{CX: v[0], CY: v[1], R: v[2]}); err != nil {
			return nil, err
		}
	}
	for _, spec := range g.polygons {
		p, err := parsePolygon(spec)
		if err != nil {
			return nil, err
		}
		if _, err := s.Add(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func parseInts(kind, spec string, n int) ([]int, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != n {
		return nil, apperrors.NewInvalidInputError(
			fmt.Sprintf("%s %q: want %d comma separated integers", kind, spec, n), nil)
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, apperrors.NewInvalidInputError(fmt.Sprintf("%s %q: %q is not an integer", kind, spec, p), err)
		}
		out[i] = v
	}
	return out, nil
}

func parsePolygon(spec string) (region.Polygon, error) {
	var p region.Polygon
	for _, pair := range strings.Fields(spec) {
		v, err := parseInts("polygon vertex", pair, 2)
		if err != nil {
			return region.Polygon{}, err
		}
		p.Points = append(p.Points, [2]int{v[0], v[1]})
	}
	return p, nil
}

// decodeFlags override the decode section of the configuration.
type decodeFlags struct {
	decoder      string
	bits         int
	wb           string
	wbGains      []float64
	gamma        string
	gammaParams  []float64
	autoBrighten bool
	demosaic     string
}

func (d *decodeFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&d.decoder, "decoder", "", "Decoder: builtin or exec")
	f.IntVar(&d.bits, "bits", 0, "Output bit depth: 8 or 16")
	f.StringVar(&d.wb, "wb", "", "White balance: camera, auto or manual")
	f.Float64SliceVar(&d.wbGains, "wb-gains", nil, "Manual white balance gains R,G,B or R,G1,B,G2")
	f.StringVar(&d.gamma, "gamma", "", "Gamma: linear, srgb or manual")
	f.Float64SliceVar(&d.gammaParams, "gamma-params", nil, "Manual gamma power,slope")
	f.BoolVar(&d.autoBrighten, "auto-brighten", false, "Scale so that 1% of pixels clip")
	f.StringVar(&d.demosaic, "demosaic", "", "Demosaic: linear, VNG, PPG, AHD, DCB, LMMSE or AMaZE")
}

// apply copies every flag the user set onto cfg.
func (d *decodeFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	s := &cfg.Decode.Settings
	if f.Changed("decoder") {
		cfg.Decode.Decoder = d.decoder
	}
	if f.Changed("bits") {
		s.BitDepth = d.bits
	}
	// a mode from the command line drops gains inherited from the config file
	if f.Changed("wb") {
		s.WhiteBalance = d.wb
		s.WBGains = nil
	}
	if f.Changed("wb-gains") {
		s.WBGains = d.wbGains
		if !f.Changed("wb") {
			s.WhiteBalance = string(decode.WhiteBalanceManual)
		}
	}
	if f.Changed("gamma") {
		s.Gamma = d.gamma
		s.GammaParams = nil
	}
	if f.Changed("gamma-params") {
		s.GammaParams = d.gammaParams
		if !f.Changed("gamma") {
			s.Gamma = "manual"
		}
	}
	if f.Changed("auto-brighten") {
		s.AutoBrighten = d.autoBrighten
	}
	if f.Changed("demosaic") {
		s.Demosaic = d.demosaic
	}
}
