package geometry

import (
	"errors"
	"image"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/MeKo-Tech/lipi/internal/region"
	"github.com/MeKo-Tech/lipi/internal/utils"
)

func genPoint() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(-50, 550),
		gen.Float64Range(-50, 550),
	).Map(func(vals []interface{}) utils.Point {
		return utils.Point{X: vals[0].(float64), Y: vals[1].(float64)}
	})
}

func genBox() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(-100, 600),
		gen.Float64Range(-100, 600),
		gen.Float64Range(-50, 300),
		gen.Float64Range(-50, 300),
	).Map(func(vals []interface{}) region.Prediction {
		return region.Prediction{Shape: region.Box, Box: region.Rect{
			X: vals[0].(float64), Y: vals[1].(float64),
			Width: vals[2].(float64), Height: vals[3].(float64),
		}}
	})
}

func withinImage(r image.Rectangle, w, h int) bool {
	return r.Min.X >= 0 && r.Min.Y >= 0 && r.Min.X < r.Max.X && r.Min.Y < r.Max.Y && r.Max.X <= w && r.Max.Y <= h
}

func TestDerive_PolygonAlwaysInsideImage(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("polygon crop is clamped or skipped", prop.ForAll(
		func(points []utils.Point, w, h int) bool {
			pred := region.Prediction{Shape: region.Polygon, Points: points}
			r, err := Derive(pred, w, h, Padding)
			if err != nil {
				return errors.Is(err, ErrSkip)
			}
			return withinImage(r, w, h)
		},
		gen.SliceOfN(6, genPoint()),
		gen.IntRange(1, 500),
		gen.IntRange(1, 500),
	))

	properties.TestingRun(t)
}

func TestDerive_BoxAlwaysInsideImage(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("box crop is clamped or skipped", prop.ForAll(
		func(pred region.Prediction, w, h int) bool {
			r, err := Derive(pred, w, h, Padding)
			if err != nil {
				return errors.Is(err, ErrSkip)
			}
			return withinImage(r, w, h)
		},
		genBox(),
		gen.IntRange(1, 500),
		gen.IntRange(1, 500),
	))

	properties.Property("boxes without positive size are skipped", prop.ForAll(
		func(pred region.Prediction) bool {
			if pred.Box.Width > 0 && pred.Box.Height > 0 {
				return true
			}
			_, err := Derive(pred, 500, 500, Padding)
			return errors.Is(err, ErrSkip)
		},
		genBox(),
	))

	properties.TestingRun(t)
}

func TestDerive_ShortPolygonIsSkipped(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("fewer than three points never yields a crop", prop.ForAll(
		func(points []utils.Point) bool {
			_, err := Derive(region.Prediction{Shape: region.Polygon, Points: points}, 500, 500, Padding)
			return errors.Is(err, ErrSkip)
		},
		gen.SliceOfN(2, genPoint()),
	))

	properties.TestingRun(t)
}
