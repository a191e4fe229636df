package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolygonMask_Triangle(t *testing.T) {
	bounds := image.Rect(0, 0, 20, 20)
	mask := PolygonMask(bounds, []image.Point{{2, 2}, {17, 2}, {2, 17}})

	assert.Equal(t, uint8(0xff), mask.AlphaAt(4, 4).A, "interior")
	assert.Equal(t, uint8(0xff), mask.AlphaAt(2, 2).A, "vertex")
	assert.Equal(t, uint8(0), mask.AlphaAt(16, 16).A, "outside hypotenuse")
}

func TestPolygonMask_OffsetBounds(t *testing.T) {
	bounds := image.Rect(100, 50, 120, 70)
	mask := PolygonMask(bounds, []image.Point{{105, 55}, {115, 55}, {115, 65}, {105, 65}})

	assert.Equal(t, uint8(0xff), mask.AlphaAt(110, 60).A)
	assert.Equal(t, uint8(0), mask.AlphaAt(101, 51).A)
}

func TestPolygonMask_Degenerate(t *testing.T) {
	mask := PolygonMask(image.Rect(0, 0, 5, 5), []image.Point{{1, 1}, {3, 3}})
	for _, a := range mask.Pix {
		assert.Equal(t, uint8(0), a)
	}
}

func TestApplyMask(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 1))
	white := color.RGBA{255, 255, 255, 255}
	for x := range 4 {
		img.SetRGBA(x, 0, white)
	}
	mask := image.NewAlpha(img.Bounds())
	mask.SetAlpha(1, 0, color.Alpha{A: 0xff})

	out := ApplyMask(img, mask)
	assert.Equal(t, white, out.RGBAAt(1, 0))
	assert.Equal(t, color.RGBA{A: 255}, out.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{A: 255}, out.RGBAAt(3, 0))
}
