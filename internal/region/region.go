// Package region turns raw detector records into tagged predictions.
//
// Detector services return one of three geometric encodings per record:
// a named bbox, a center-anchored box at the top level, or a polygon point
// list. Parse resolves the encoding once so downstream code never has to
// sniff map keys again.
package region

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/lipi/internal/utils"
)

var (
	// ErrMissingCoordinates is returned when a record carries none of the
	// keys required by any accepted shape.
	ErrMissingCoordinates = errors.New("missing coordinate keys")
	// ErrInvalidGeometry is returned when a polygon has fewer than three usable points.
	ErrInvalidGeometry = errors.New("invalid geometry")
)

// MinPolygonPoints is the smallest point count that forms a polygon.
const MinPolygonPoints = 3

// Shape tags the geometric encoding a prediction was resolved from.
type Shape int

const (
	Polygon Shape = iota
	Box
	CenterBox
)

// DefaultShapeOrder is the resolution priority used when a script does not override it.
var DefaultShapeOrder = []Shape{Box, CenterBox, Polygon}

func (s Shape) String() string {
	switch s {
	case Polygon:
		return "polygon"
	case Box:
		return "box"
	case CenterBox:
		return "center_box"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Shape) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ParseShape converts a configuration name into a Shape.
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "polygon", "points":
		return Polygon, nil
	case "box", "bbox":
		return Box, nil
	case "center_box", "center", "centerbox":
		return CenterBox, nil
	}
	return 0, fmt.Errorf("unknown shape %q", name)
}

// Rect is an axis-aligned box with a top-left origin, in float pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Prediction is one detector output item resolved to a single shape.
// It is never mutated after Parse returns it.
type Prediction struct {
	// Index is the position of the record in the detector response.
	Index int
	Shape Shape
	// Box is set for Box and CenterBox shapes (converted to top-left).
	Box Rect
	// Points is set for the Polygon shape and holds only usable points.
	Points []utils.Point
	// Anchor is the reading-order key taken from the record's top-level x/y.
	Anchor     utils.Point
	HasAnchor  bool
	Class      string
	Confidence float64
}

// Record is the raw JSON object the detector returns for one region.
type Record map[string]any

// Parse resolves rec using the first shape in order whose keys are present.
func Parse(index int, rec Record, order []Shape) (Prediction, error) {
	if len(order) == 0 {
		order = DefaultShapeOrder
	}
	p := Prediction{Index: index}
	if v, ok := rec["class"].(string); ok {
		p.Class = v
	}
	p.Confidence, _ = number(rec["confidence"])
	x, okX := number(rec["x"])
	y, okY := number(rec["y"])
	if okX && okY {
		p.Anchor = utils.Point{X: x, Y: y}
		p.HasAnchor = true
	}

	for _, shape := range order {
		switch shape {
		case Box:
			box, ok := rec["bbox"].(map[string]any)
			if !ok {
				continue
			}
			r, ok := rectFrom(box)
			if !ok {
				continue
			}
			p.Shape, p.Box = Box, r
			return p, nil
		case CenterBox:
			r, ok := rectFrom(rec)
			if !ok {
				continue
			}
			r.X -= r.Width / 2
			r.Y -= r.Height / 2
			p.Shape, p.Box = CenterBox, r
			return p, nil
		case Polygon:
			raw, ok := rec["points"].([]any)
			if !ok {
				continue
			}
			pts := pointsFrom(raw)
			if len(pts) < MinPolygonPoints {
				return p, fmt.Errorf("%w: %d usable polygon points", ErrInvalidGeometry, len(pts))
			}
			p.Shape, p.Points = Polygon, pts
			return p, nil
		}
	}
	return p, ErrMissingCoordinates
}

// Failure records a detector item that could not be parsed.
type Failure struct {
	Index int
	Err   error
}

// ParseAll resolves every detector item, keeping detector order. Items that
// fail to parse, including ones that are not JSON objects, are reported
// separately and never abort the batch.
func ParseAll(items []any, order []Shape) ([]Prediction, []Failure) {
	preds := make([]Prediction, 0, len(items))
	var failed []Failure
	for i, item := range items {
		var rec Record
		switch v := item.(type) {
		case Record:
			rec = v
		case map[string]any:
			rec = v
		default:
			failed = append(failed, Failure{Index: i, Err: fmt.Errorf("%w: item is %T, not an object", ErrMissingCoordinates, item)})
			continue
		}
		p, err := Parse(i, rec, order)
		if err != nil {
			failed = append(failed, Failure{Index: i, Err: err})
			continue
		}
		preds = append(preds, p)
	}
	return preds, failed
}

func rectFrom(m map[string]any) (Rect, bool) {
	x, ok1 := number(m["x"])
	y, ok2 := number(m["y"])
	w, ok3 := number(m["width"])
	h, ok4 := number(m["height"])
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Rect{}, false
	}
	return Rect{X: x, Y: y, Width: w, Height: h}, true
}

func pointsFrom(raw []any) []utils.Point {
	pts := make([]utils.Point, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		x, okX := number(m["x"])
		y, okY := number(m["y"])
		if !okX || !okY {
			continue
		}
		pts = append(pts, utils.Point{X: x, Y: y})
	}
	return pts
}

// number accepts the numeric forms produced by encoding/json decoding.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
