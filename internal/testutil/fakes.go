package testutil

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/MeKo-Tech/lipi/internal/recognizer"
	"github.com/MeKo-Tech/lipi/internal/region"
	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/MeKo-Tech/lipi/internal/utils"
)

// Detector is a canned detector keyed by language.
type Detector struct {
	mu          sync.Mutex
	Predictions map[script.Language][]region.Prediction
	Failures    map[script.Language][]region.Failure
	Err         error
	calls       int
}

// Detect implements detector.Detector.
func (d *Detector) Detect(ctx context.Context, _ []byte, profile script.Profile) ([]region.Prediction, []region.Failure, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if d.Err != nil {
		return nil, nil, d.Err
	}
	preds := append([]region.Prediction(nil), d.Predictions[profile.Language]...)
	return preds, d.Failures[profile.Language], nil
}

// Calls returns how often Detect ran.
func (d *Detector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// BoxPrediction describes r as a detector box anchored at its top-left corner.
func BoxPrediction(index int, r image.Rectangle) region.Prediction {
	return region.Prediction{
		Index:     index,
		Shape:     region.Box,
		Box:       region.Rect{X: float64(r.Min.X), Y: float64(r.Min.Y), Width: float64(r.Dx()), Height: float64(r.Dy())},
		Anchor:    utils.Point{X: float64(r.Min.X), Y: float64(r.Min.Y)},
		HasAnchor: true,
	}
}

// PolygonPrediction describes r as a four point polygon anchored at its center.
func PolygonPrediction(index int, r image.Rectangle) region.Prediction {
	x0, y0 := float64(r.Min.X), float64(r.Min.Y)
	x1, y1 := float64(r.Max.X-1), float64(r.Max.Y-1)
	return region.Prediction{
		Index:     index,
		Shape:     region.Polygon,
		Points:    []utils.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}},
		Anchor:    utils.Point{X: (x0 + x1) / 2, Y: (y0 + y1) / 2},
		HasAnchor: true,
	}
}

// ColorModel "recognizes" a crop by its dominant fill color, ignoring the
// white page and black mask pixels.
type ColorModel struct {
	Texts  map[color.RGBA]string
	Errors map[color.RGBA]error
	Panics map[color.RGBA]bool
}

// Recognize implements recognizer.Model.
func (m *ColorModel) Recognize(_ context.Context, img *image.RGBA) (string, error) {
	c, ok := DominantColor(img)
	if !ok {
		return "", nil
	}
	if m.Panics[c] {
		panic("color model exploded")
	}
	if err := m.Errors[c]; err != nil {
		return "", err
	}
	return m.Texts[c], nil
}

// Close implements recognizer.Model.
func (m *ColorModel) Close() error { return nil }

// Loader returns a loader handing out m for every language on the CPU.
func (m *ColorModel) Loader() recognizer.Loader {
	return recognizer.LoaderFunc(func(context.Context, script.Language, recognizer.Device) (recognizer.Model, recognizer.Device, error) {
		return m, recognizer.DeviceCPU, nil
	})
}

// DominantColor returns the most frequent color in img that is neither
// white nor black.
func DominantColor(img *image.RGBA) (color.RGBA, bool) {
	counts := make(map[color.RGBA]int)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if isWhite(c) || isBlack(c) {
				continue
			}
			counts[c]++
		}
	}
	var best color.RGBA
	n := 0
	for c, k := range counts {
		if k > n || (k == n && less(c, best)) {
			best, n = c, k
		}
	}
	return best, n > 0
}

func isWhite(c color.RGBA) bool { return c.R == 0xff && c.G == 0xff && c.B == 0xff }
func isBlack(c color.RGBA) bool { return c.R == 0 && c.G == 0 && c.B == 0 }

func less(a, b color.RGBA) bool {
	if a.R != b.R {
		return a.R < b.R
	}
	if a.G != b.G {
		return a.G < b.G
	}
	return a.B < b.B
}
