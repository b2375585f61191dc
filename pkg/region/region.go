// Package region defines measurement regions, their template encoding and the
// session that owns a working set of regions.
package region

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"

	apperrors "go-roi-inspector/internal/errors"
)

// Shape names a region geometry. The set is closed.
type Shape string

const (
	ShapeRect    Shape = "rect"
	ShapeCircle  Shape = "circle"
	ShapePolygon Shape = "polygon"
)

// ParseShape maps a template shape name onto a known Shape.
func ParseShape(name string) (Shape, bool) {
	switch Shape(name) {
	case ShapeRect, ShapeCircle, ShapePolygon:
		return Shape(name), true
	}
	return "", false
}

// Geometry is the shape-specific payload of a region, in full-resolution
// pixel coordinates. Only Rect, Circle and Polygon implement it.
type Geometry interface {
	Shape() Shape
	// Bounds is the half-open pixel box that can contain included pixels.
	Bounds() image.Rectangle
	Validate() error
	sealed()
}

// MaxCoordinate bounds every coordinate and extent in absolute value, so
// bounds and squared distances stay inside int64.
const MaxCoordinate = 1 << 30

func checkRange(name string, v int) error {
	if v > MaxCoordinate || v < -MaxCoordinate {
		return fmt.Errorf("%s %d is outside +/-%d", name, v, MaxCoordinate)
	}
	return nil
}

func checkRanges(names []string, values ...int) error {
	for i, v := range values {
		if err := checkRange(names[i], v); err != nil {
			return err
		}
	}
	return nil
}

// Rect covers the half-open pixel range [X, X+W) x [Y, Y+H).
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func (Rect) Shape() Shape { return ShapeRect }
func (Rect) sealed()      {}

func (r Rect) Bounds() image.Rectangle {
	return image.Rectangle{Min: image.Pt(r.X, r.Y), Max: image.Pt(r.X+r.W, r.Y+r.H)}
}

func (r Rect) Validate() error {
	if r.W < 0 || r.H < 0 {
		return fmt.Errorf("rect width and height must be >= 0, got w=%d h=%d", r.W, r.H)
	}
	return checkRanges([]string{"x", "y", "w", "h"}, r.X, r.Y, r.W, r.H)
}

// RectFromBounds converts a pixel rectangle into rect geometry.
func RectFromBounds(b image.Rectangle) Rect {
	b = b.Canon()
	return Rect{X: b.Min.X, Y: b.Min.Y, W: b.Dx(), H: b.Dy()}
}

// Circle is the closed disk of radius R around (CX, CY).
type Circle struct {
	CX int `json:"cx"`
	CY int `json:"cy"`
	R  int `json:"r"`
}

func (Circle) Shape() Shape { return ShapeCircle }
func (Circle) sealed()      {}

func (c Circle) Bounds() image.Rectangle {
	return image.Rectangle{
		Min: image.Pt(c.CX-c.R, c.CY-c.R),
		Max: image.Pt(c.CX+c.R+1, c.CY+c.R+1),
	}
}

func (c Circle) Validate() error {
	if c.R < 0 {
		return fmt.Errorf("circle radius must be >= 0, got %d", c.R)
	}
	return checkRanges([]string{"cx", "cy", "r"}, c.CX, c.CY, c.R)
}

// Polygon is an ordered vertex ring; the closing edge is implicit.
type Polygon struct {
	Points [][2]int `json:"points"`
}

func (Polygon) Shape() Shape { return ShapePolygon }
func (Polygon) sealed()      {}

func (p Polygon) Bounds() image.Rectangle {
	if len(p.Points) == 0 {
		return image.Rectangle{}
	}
	minX, minY := p.Points[0][0], p.Points[0][1]
	maxX, maxY := minX, minY
	for _, pt := range p.Points[1:] {
		minX = min(minX, pt[0])
		maxX = max(maxX, pt[0])
		minY = min(minY, pt[1])
		maxY = max(maxY, pt[1])
	}
	return image.Rectangle{Min: image.Pt(minX, minY), Max: image.Pt(maxX, maxY)}
}

func (p Polygon) Validate() error {
	if len(p.Points) < 3 {
		return fmt.Errorf("polygon needs at least 3 vertices, got %d", len(p.Points))
	}
	for i, pt := range p.Points {
		if err := checkRanges([]string{"x", "y"}, pt[0], pt[1]); err != nil {
			return fmt.Errorf("vertex %d: %w", i, err)
		}
	}
	return nil
}

// Region is one measurement definition. Params is kept verbatim (compact JSON)
// so templates round-trip exactly; it is only interpreted by Geometry.
type Region struct {
	ID     int             `json:"id"`
	Shape  Shape           `json:"shape"`
	Params json.RawMessage `json:"params"`
}

// New builds a region from validated geometry.
func New(id int, g Geometry) (Region, error) {
	if id < 1 {
		return Region{}, apperrors.NewInvalidInputError(fmt.Sprintf("region id must be >= 1, got %d", id), nil)
	}
	if g == nil {
		return Region{}, apperrors.NewInvalidInputError("region geometry is nil", nil)
	}
	if err := g.Validate(); err != nil {
		return Region{}, apperrors.NewInvalidInputError(fmt.Sprintf("region %d", id), err)
	}
	params, err := json.Marshal(g)
	if err != nil {
		return Region{}, apperrors.NewInternalError("failed to encode region params", err)
	}
	return Region{ID: id, Shape: g.Shape(), Params: params}, nil
}

// ParamString is the serialized params as shown in result tables.
func (r Region) ParamString() string {
	return string(r.Params)
}

// Geometry decodes and validates the params for the region's shape.
// Unknown keys, missing keys and non-integer coordinates are rejected.
func (r Region) Geometry() (Geometry, error) {
	var (
		g   Geometry
		err error
	)
	switch r.Shape {
	case ShapeRect:
		var p struct{ X, Y, W, H *int }
		if err = decodeParams(r.Params, &p); err == nil {
			if p.X == nil || p.Y == nil || p.W == nil || p.H == nil {
				err = fmt.Errorf("rect params need x, y, w and h")
			} else {
				g = Rect{X: *p.X, Y: *p.Y, W: *p.W, H: *p.H}
			}
		}
	case ShapeCircle:
		var p struct{ CX, CY, R *int }
		if err = decodeParams(r.Params, &p); err == nil {
			if p.CX == nil || p.CY == nil || p.R == nil {
				err = fmt.Errorf("circle params need cx, cy and r")
			} else {
				g = Circle{CX: *p.CX, CY: *p.CY, R: *p.R}
			}
		}
	case ShapePolygon:
		var p struct {
			Points *[][2]int `json:"points"`
		}
		if err = decodeParams(r.Params, &p); err == nil {
			if p.Points == nil {
				err = fmt.Errorf("polygon params need points")
			} else {
				g = Polygon{Points: *p.Points}
			}
		}
	default:
		err = fmt.Errorf("unknown shape %q", r.Shape)
	}
	if err == nil {
		err = g.Validate()
	}
	if err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("region %d has invalid %s params", r.ID, r.Shape), err)
	}
	return g, nil
}

func decodeParams(raw json.RawMessage, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
