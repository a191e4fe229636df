package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Block is one filled area on a synthetic page. The fill color doubles as
// the block's identity for ColorModel.
type Block struct {
	Rect  image.Rectangle
	Color color.RGBA
	Label string
}

// Shade returns a distinct opaque gray-blue for block i. White is reserved
// for the page background.
func Shade(i int) color.RGBA {
	v := uint8(10 + (i*23)%200) //nolint:gosec // G115: bounded by the modulo
	return color.RGBA{R: v, G: v / 2, B: 200 - v/2, A: 0xff}
}

// Page renders blocks onto a white width x height canvas. Blocks with a
// Label also get the label drawn in black with the basic font.
func Page(width, height int, blocks ...Block) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	for _, b := range blocks {
		draw.Draw(img, b.Rect, &image.Uniform{C: b.Color}, image.Point{}, draw.Src)
		if b.Label == "" {
			continue
		}
		d := &font.Drawer{
			Dst:  img,
			Src:  image.Black,
			Face: basicfont.Face7x13,
			Dot:  fixed.P(b.Rect.Min.X+2, b.Rect.Max.Y-2),
		}
		d.DrawString(b.Label)
	}
	return img
}

// CreateTestImage creates a uniform image with the given dimensions and color.
func CreateTestImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// PNG encodes img as PNG.
func PNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// JPEG encodes img as a high quality JPEG.
func JPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}
