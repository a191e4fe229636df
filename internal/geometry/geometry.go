// Package geometry derives padded, clamped crop rectangles from detector
// predictions and extracts the corresponding sub-images.
package geometry

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/lipi/internal/region"
	"github.com/MeKo-Tech/lipi/internal/utils"
)

// ErrSkip signals that a region cannot be cropped and must be skipped.
var ErrSkip = errors.New("region skipped")

// Padding is the default margin added on every side of a region.
const Padding = 5

// Derive computes the crop rectangle for pred inside a width x height image.
// The result always satisfies 0 <= Min < Max <= (width, height); anything
// else is reported as ErrSkip.
func Derive(pred region.Prediction, width, height, pad int) (image.Rectangle, error) {
	if width <= 0 || height <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: empty image %dx%d", ErrSkip, width, height)
	}
	var r image.Rectangle
	switch pred.Shape {
	case region.Polygon:
		if len(pred.Points) < region.MinPolygonPoints {
			return image.Rectangle{}, fmt.Errorf("%w: %d polygon points", ErrSkip, len(pred.Points))
		}
		r = utils.BoundingRect(utils.RoundPoints(pred.Points))
	case region.Box, region.CenterBox:
		b := pred.Box
		if b.Width <= 0 || b.Height <= 0 {
			return image.Rectangle{}, fmt.Errorf("%w: box size %gx%g", ErrSkip, b.Width, b.Height)
		}
		r = image.Rect(int(b.X), int(b.Y), int(b.X+b.Width), int(b.Y+b.Height))
	default:
		return image.Rectangle{}, fmt.Errorf("%w: unknown shape %v", ErrSkip, pred.Shape)
	}
	r = image.Rect(r.Min.X-pad, r.Min.Y-pad, r.Max.X+pad, r.Max.Y+pad)
	r = utils.ClampRect(r, image.Rect(0, 0, width, height))
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: zero area after clamping", ErrSkip)
	}
	return r, nil
}

// Extract crops rect out of img. With mask set, polygon predictions keep
// only the pixels inside the polygon and everything else turns black.
// rect is expressed in img's coordinate space starting at the origin.
func Extract(img image.Image, pred region.Prediction, rect image.Rectangle, mask bool) (image.Image, error) {
	origin := img.Bounds().Min
	src := rect.Add(origin)
	if !src.In(img.Bounds()) || src.Empty() {
		return nil, fmt.Errorf("%w: rect %v outside image %v", ErrSkip, rect, img.Bounds())
	}
	crop := utils.CropImageRect(img, src)
	if !mask || pred.Shape != region.Polygon {
		return crop, nil
	}
	pts := utils.RoundPoints(pred.Points)
	for i := range pts {
		pts[i] = pts[i].Sub(rect.Min)
	}
	m := utils.PolygonMask(crop.Bounds(), pts)
	return utils.ApplyMask(crop, m), nil
}
