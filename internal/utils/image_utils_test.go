package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundPoints(t *testing.T) {
	got := RoundPoints([]Point{{X: 1.4, Y: 2.6}, {X: -0.6, Y: 10.5}, {X: 2.5, Y: 3.5}})
	assert.Equal(t, []image.Point{{X: 1, Y: 3}, {X: -1, Y: 10}, {X: 2, Y: 4}}, got)
}

func TestBoundingRect(t *testing.T) {
	t.Run("inclusive max", func(t *testing.T) {
		r := BoundingRect([]image.Point{{10, 20}, {110, 20}, {110, 60}, {10, 60}})
		assert.Equal(t, image.Rect(10, 20, 111, 61), r)
	})
	t.Run("single point", func(t *testing.T) {
		r := BoundingRect([]image.Point{{3, 4}})
		assert.Equal(t, 1, r.Dx())
		assert.Equal(t, 1, r.Dy())
	})
	t.Run("empty", func(t *testing.T) {
		assert.True(t, BoundingRect(nil).Empty())
	})
}

func TestCropImageRect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	img.Set(5, 5, color.RGBA{R: 200, A: 255})

	crop := CropImageRect(img, image.Rect(4, 4, 8, 8))
	require.Equal(t, image.Rect(0, 0, 4, 4), crop.Bounds())
	assert.Equal(t, uint8(200), crop.NRGBAAt(1, 1).R)

	empty := CropImageRect(img, image.Rect(30, 30, 40, 40))
	assert.True(t, empty.Bounds().Empty())
}

func TestDrawRect(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	red := color.RGBA{R: 255, A: 255}
	DrawRect(dst, image.Rect(2, 2, 8, 8), red, 1)

	assert.Equal(t, red, dst.RGBAAt(2, 2))
	assert.Equal(t, red, dst.RGBAAt(7, 7))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(5, 5))
}

func TestDrawPolygon(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	green := color.RGBA{G: 255, A: 255}
	DrawPolygon(dst, []Point{{1, 1}, {8, 1}, {8, 8}}, green, 1)

	assert.Equal(t, green, dst.RGBAAt(1, 1))
	assert.Equal(t, green, dst.RGBAAt(8, 5))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(2, 7))
}
