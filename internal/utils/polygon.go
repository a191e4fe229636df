package utils

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/vector"
)

// PolygonMask rasterizes the filled polygon pts into an alpha mask covering
// bounds. Pixels inside the polygon are opaque, everything else is zero.
func PolygonMask(bounds image.Rectangle, pts []image.Point) *image.Alpha {
	mask := image.NewAlpha(bounds)
	if len(pts) < 3 || bounds.Empty() {
		return mask
	}
	w, h := bounds.Dx(), bounds.Dy()
	z := vector.NewRasterizer(w, h)
	// Sample at pixel centers so edge pixels of integer polygons are filled.
	at := func(p image.Point) (float32, float32) {
		return float32(p.X-bounds.Min.X) + 0.5, float32(p.Y-bounds.Min.Y) + 0.5
	}
	x, y := at(pts[0])
	z.MoveTo(x, y)
	for _, p := range pts[1:] {
		x, y = at(p)
		z.LineTo(x, y)
	}
	z.ClosePath()
	cov := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(cov, cov.Bounds(), image.Opaque, image.Point{})

	// Binarize: any coverage counts as inside.
	for i, a := range cov.Pix {
		if a > 0 {
			cov.Pix[i] = 0xff
		}
	}
	draw.Draw(mask, bounds, cov, image.Point{}, draw.Src)
	drawOutline(mask, pts)
	return mask
}

// drawOutline marks polygon edge pixels so thin shapes keep their border.
func drawOutline(mask *image.Alpha, pts []image.Point) {
	rgba := image.NewRGBA(mask.Bounds())
	for i := range pts {
		drawLine(rgba, pts[i], pts[(i+1)%len(pts)], color.White, 1)
	}
	for y := mask.Rect.Min.Y; y < mask.Rect.Max.Y; y++ {
		for x := mask.Rect.Min.X; x < mask.Rect.Max.X; x++ {
			if rgba.RGBAAt(x, y).A != 0 {
				mask.SetAlpha(x, y, color.Alpha{A: 0xff})
			}
		}
	}
}

// ApplyMask returns img with every pixel outside mask set to opaque black.
// The result shares img's bounds.
func ApplyMask(img image.Image, mask *image.Alpha) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.DrawMask(out, b, img, b.Min, mask, b.Min, draw.Over)
	return out
}
