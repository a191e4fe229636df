package pipeline

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/MeKo-Tech/lipi/internal/utils"
	"github.com/lucasb-eyer/go-colorful"
)

// OverlayOptions controls DrawOverlay.
type OverlayOptions struct {
	// SkippedColor is a hex color for regions that were skipped.
	SkippedColor string
	Thickness    int
}

// DefaultOverlayOptions returns gray skipped regions drawn 2px wide.
func DefaultOverlayOptions() OverlayOptions {
	return OverlayOptions{SkippedColor: "#9e9e9e", Thickness: 2}
}

// lineColor picks a well separated hue per reading-order line.
func lineColor(line int) color.Color {
	hue := float64((line * 137) % 360)
	return colorful.Hcl(hue, 0.6, 0.55).Clamped()
}

// DrawOverlay draws every region's crop rectangle on a copy of img, one
// color per line. Polygon regions also get their outline.
func DrawOverlay(img image.Image, res *Result, opts OverlayOptions) *image.RGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	if res == nil {
		return dst
	}
	if opts.Thickness <= 0 {
		opts.Thickness = 1
	}
	skippedColor, err := colorful.Hex(opts.SkippedColor)
	if err != nil {
		skippedColor = colorful.Color{R: 0.6, G: 0.6, B: 0.6}
	}

	for _, r := range res.Regions {
		if r.Box.W == 0 || r.Box.H == 0 {
			continue
		}
		var c color.Color = skippedColor
		if !r.Skipped && r.Line >= 0 {
			c = lineColor(r.Line)
		}
		rect := image.Rect(r.Box.X, r.Box.Y, r.Box.X+r.Box.W, r.Box.Y+r.Box.H)
		utils.DrawRect(dst, rect, c, opts.Thickness)
		if len(r.Polygon) >= 2 {
			utils.DrawPolygon(dst, r.Polygon, c, 1)
		}
	}
	return dst
}
