package pipeline

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/MeKo-Tech/lipi/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawOverlay(t *testing.T) {
	img := testutil.CreateTestImage(60, 40, color.White)
	res := &Result{Regions: []RegionResult{
		{Index: 0, Line: 0, Box: Box{X: 5, Y: 5, W: 20, H: 10}, Text: "a"},
		{Index: 1, Line: -1, Skipped: true},
		{Index: 2, Line: 1, Box: Box{X: 30, Y: 20, W: 20, H: 10}, Skipped: true},
	}}

	out := DrawOverlay(img, res, DefaultOverlayOptions())
	require.NotNil(t, out)
	assert.Equal(t, image.Rect(0, 0, 60, 40), out.Bounds())

	first := out.RGBAAt(5, 5)
	assert.NotEqual(t, color.RGBA{255, 255, 255, 255}, first, "line region outlined")
	skipped := out.RGBAAt(30, 20)
	assert.Equal(t, skipped.R, skipped.G, "skipped regions are gray")
	assert.Equal(t, skipped.G, skipped.B, "skipped regions are gray")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(0, 39), "background untouched")

	assert.Nil(t, DrawOverlay(nil, res, DefaultOverlayOptions()))
	assert.Equal(t, out.Bounds(), DrawOverlay(img, nil, OverlayOptions{}).Bounds())
}

func TestLineColorsDiffer(t *testing.T) {
	seen := map[color.RGBA]bool{}
	for i := range 6 {
		r, g, b, _ := lineColor(i).RGBA()
		seen[color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 255}] = true
	}
	assert.Len(t, seen, 6)
}

func TestRunPDF_Errors(t *testing.T) {
	f := newFixture()
	p := f.build(t)

	_, err := p.RunPDF(context.Background(), "missing.pdf", "", "klingon", nil)
	require.ErrorIs(t, err, script.ErrUnsupportedLanguage)

	_, err = p.RunPDF(context.Background(), "/non/existent/file.pdf", "", script.English, nil)
	require.Error(t, err)
}
