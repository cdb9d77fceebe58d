package crossing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrGeometryMissing is returned when a line has no points configured.
var ErrGeometryMissing = errors.New("line points are not configured")

// Point is a pixel coordinate in frame space.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Line is a segment between two points.
type Line struct {
	A Point
	B Point
}

// LineSpec is a line as it arrives from device configuration: the decoded
// point list, or the error that prevented decoding it. Malformed input is
// carried rather than rejected so the session can still be registered.
type LineSpec struct {
	Points []Point
	Err    error
}

// Geometry holds the two virtual lines of one source.
type Geometry struct {
	Horizontal Line
	Vertical   Line
}

// HorizontalY is the y coordinate tested against centroids.
func (g Geometry) HorizontalY() int {
	return g.Horizontal.A.Y
}

// VerticalX is the x coordinate tested against centroids.
func (g Geometry) VerticalX() int {
	return g.Vertical.A.X
}

// GeometryError describes which line of a source is unusable.
type GeometryError struct {
	Line string
	Err  error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("%s_line_points is invalid: %v", e.Line, e.Err)
}

func (e *GeometryError) Unwrap() error {
	return e.Err
}

// NewGeometry validates both line specs and builds the geometry.
func NewGeometry(horizontal, vertical LineSpec) (Geometry, error) {
	h, err := toLine(horizontal)
	if err != nil {
		return Geometry{}, &GeometryError{Line: "horizontal", Err: err}
	}
	v, err := toLine(vertical)
	if err != nil {
		return Geometry{}, &GeometryError{Line: "vertical", Err: err}
	}
	return Geometry{Horizontal: h, Vertical: v}, nil
}

func toLine(spec LineSpec) (Line, error) {
	if spec.Err != nil {
		return Line{}, spec.Err
	}
	switch len(spec.Points) {
	case 0:
		return Line{}, ErrGeometryMissing
	case 2:
		return Line{A: spec.Points[0], B: spec.Points[1]}, nil
	default:
		return Line{}, fmt.Errorf("expected 2 points, got %d", len(spec.Points))
	}
}

// ParseLineSpec decodes line points from JSON. Both a literal array
// ([{"x":0,"y":360},{"x":1280,"y":360}]) and a string holding that array are
// accepted, since device servers store the points as an encoded string.
func ParseLineSpec(raw []byte) LineSpec {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == `""` {
		return LineSpec{}
	}

	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return LineSpec{Err: fmt.Errorf("decode line points: %w", err)}
		}
		return ParseLineSpec([]byte(inner))
	}

	var points []Point
	if err := json.Unmarshal([]byte(trimmed), &points); err != nil {
		return LineSpec{Err: fmt.Errorf("decode line points: %w", err)}
	}
	return LineSpec{Points: points}
}

// MarshalJSON encodes the points, or null when the spec is unusable.
func (s LineSpec) MarshalJSON() ([]byte, error) {
	if s.Err != nil || s.Points == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.Points)
}

// UnmarshalJSON never fails; decode problems are kept in Err.
func (s *LineSpec) UnmarshalJSON(data []byte) error {
	*s = ParseLineSpec(data)
	return nil
}
