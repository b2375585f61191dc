package region

import (
	"encoding/json"
	"image"
	"testing"

	apperrors "go-roi-inspector/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRegion(t *testing.T, id int, g Geometry) Region {
	t.Helper()
	r, err := New(id, g)
	require.NoError(t, err)
	return r
}

func TestNewEncodesParams(t *testing.T) {
	tests := []struct {
		name   string
		geom   Geometry
		shape  Shape
		params string
	}{
		{"rect", Rect{X: 1, Y: 2, W: 3, H: 4}, ShapeRect, `{"x":1,"y":2,"w":3,"h":4}`},
		{"circle", Circle{CX: 5, CY: 6, R: 7}, ShapeCircle, `{"cx":5,"cy":6,"r":7}`},
		{"polygon", Polygon{Points: [][2]int{{0, 0}, {4, 0}, {0, 4}}}, ShapePolygon, `{"points":[[0,0],[4,0],[0,4]]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mustRegion(t, 1, tt.geom)
			assert.Equal(t, tt.shape, r.Shape)
			assert.Equal(t, tt.params, r.ParamString())

			g, err := r.Geometry()
			require.NoError(t, err)
			assert.Equal(t, tt.geom, g)
		})
	}
}

func TestNewRejectsInvalidGeometry(t *testing.T) {
	tests := []struct {
		name string
		id   int
		geom Geometry
	}{
		{"negative width", 1, Rect{W: -1, H: 2}},
		{"negative radius", 1, Circle{R: -3}},
		{"two vertices", 1, Polygon{Points: [][2]int{{0, 0}, {1, 1}}}},
		{"zero id", 0, Rect{W: 1, H: 1}},
		{"huge radius", 1, Circle{CX: 10, CY: 10, R: 4_000_000_000}},
		{"centre past range", 1, Circle{CX: MaxCoordinate + 1, CY: 0, R: 1}},
		{"huge rect extent", 1, Rect{X: 0, Y: 0, W: MaxCoordinate + 1, H: 1}},
		{"rect origin past range", 1, Rect{X: -MaxCoordinate - 1, Y: 0, W: 1, H: 1}},
		{"polygon vertex past range", 1, Polygon{Points: [][2]int{{0, 0}, {MaxCoordinate + 1, 0}, {0, 5}}}},
		{"nil geometry", 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.id, tt.geom)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
		})
	}
}

func TestGeometryRejectsOverflowingParams(t *testing.T) {
	r := Region{ID: 1, Shape: ShapeCircle, Params: []byte(`{"cx":0,"cy":0,"r":3100000000}`)}
	_, err := r.Geometry()
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))

	// the largest accepted circle still has a representable bounding box
	c := Circle{CX: MaxCoordinate, CY: -MaxCoordinate, R: MaxCoordinate}
	require.NoError(t, c.Validate())
	assert.Equal(t, 2*MaxCoordinate+1, c.Bounds().Max.X)
}

func TestGeometryIsStrict(t *testing.T) {
	tests := []struct {
		name   string
		shape  Shape
		params string
	}{
		{"rect with circle key", ShapeRect, `{"x":0,"y":0,"w":1,"h":1,"cx":3}`},
		{"rect missing h", ShapeRect, `{"x":0,"y":0,"w":1}`},
		{"fractional coordinate", ShapeRect, `{"x":0.5,"y":0,"w":1,"h":1}`},
		{"negative height", ShapeRect, `{"x":0,"y":0,"w":1,"h":-1}`},
		{"circle missing r", ShapeCircle, `{"cx":1,"cy":1}`},
		{"polygon too short", ShapePolygon, `{"points":[[0,0],[1,1]]}`},
		{"polygon without points", ShapePolygon, `{}`},
		{"null params", ShapeCircle, `null`},
		{"unknown shape", Shape("ellipse"), `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Region{ID: 9, Shape: tt.shape, Params: json.RawMessage(tt.params)}
			_, err := r.Geometry()
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
		})
	}
}

func TestBounds(t *testing.T) {
	assert.Equal(t, image.Rect(2, 3, 7, 5), Rect{X: 2, Y: 3, W: 5, H: 2}.Bounds())
	assert.Equal(t, image.Rect(8, 8, 13, 13), Circle{CX: 10, CY: 10, R: 2}.Bounds())
	assert.Equal(t, image.Rect(-1, 0, 6, 9), Polygon{Points: [][2]int{{0, 0}, {6, 2}, {-1, 9}}}.Bounds())
}

func TestRectFromBounds(t *testing.T) {
	assert.Equal(t, Rect{X: 1, Y: 2, W: 3, H: 4}, RectFromBounds(image.Rect(4, 6, 1, 2)))
}
