package recognizer

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResizeForRecognition(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 20))

	out, err := ResizeForRecognition(img, 48, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, 48, out.Bounds().Dy())
	assert.Equal(t, 240, out.Bounds().Dx())

	out, err = ResizeForRecognition(img, 48, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, out.Bounds().Dx())

	out, err = ResizeForRecognition(image.NewRGBA(image.Rect(0, 0, 10, 10)), 32, 0, 7)
	require.NoError(t, err)
	assert.Equal(t, 35, out.Bounds().Dx())
}

func TestResizeForRecognition_Errors(t *testing.T) {
	_, err := ResizeForRecognition(nil, 48, 0, 0)
	assert.Error(t, err)
	_, err = ResizeForRecognition(image.NewRGBA(image.Rect(0, 0, 10, 10)), 0, 0, 0)
	assert.Error(t, err)
	_, err = ResizeForRecognition(image.NewRGBA(image.Rect(0, 0, 0, 10)), 48, 0, 0)
	assert.Error(t, err)
}

func TestNormalizeForRecognition(t *testing.T) {
	ten, err := NormalizeForRecognition(image.NewRGBA(image.Rect(0, 0, 6, 4)))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 6}, ten.Shape)
	assert.Len(t, ten.Data, 72)
}
