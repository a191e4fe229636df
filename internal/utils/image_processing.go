package utils

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/lipi/internal/mempool"
	"github.com/anthonynsimon/bild/clone"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ToRGB returns an opaque copy of img anchored at the origin. Alpha is
// dropped rather than composited: straight-alpha sources keep their stored
// colors, everything else goes through a plain RGBA conversion.
func ToRGB(img image.Image) (*image.RGBA, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "to_rgb", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, &ImageProcessingError{Operation: "to_rgb", Err: errors.New("input image is empty")}
	}
	if src, ok := img.(*image.NRGBA); ok {
		out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := range b.Dy() {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			di := out.PixOffset(0, y)
			for x := range b.Dx() {
				copy(out.Pix[di+4*x:di+4*x+3], src.Pix[si+4*x:si+4*x+3])
				out.Pix[di+4*x+3] = 0xff
			}
		}
		return out, nil
	}
	out := clone.AsRGBA(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out, nil
}

// NormalizeImage converts an image into a float32 NCHW buffer in [0,1]:
// channel 0 red, channel 1 green, channel 2 blue.
func NormalizeImage(img image.Image) ([]float32, int, int, error) {
	return normalize(img, func(n int) []float32 { return make([]float32, n) })
}

// NormalizeImagePooled is NormalizeImage with the buffer taken from
// mempool. Return it with mempool.PutFloat32 when the tensor is released.
func NormalizeImagePooled(img image.Image) ([]float32, int, int, error) {
	return normalize(img, mempool.GetFloat32)
}

func normalize(img image.Image, alloc func(int) []float32) ([]float32, int, int, error) {
	rgb, err := ToRGB(img)
	if err != nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: err}
	}
	b := rgb.Bounds()
	width, height := b.Dx(), b.Dy()
	plane := width * height
	tensor := alloc(3 * plane)
	for y := range height {
		row := rgb.PixOffset(b.Min.X, b.Min.Y+y)
		for x := range width {
			i := row + 4*x
			idx := y*width + x
			tensor[idx] = float32(rgb.Pix[i]) / 255.0
			tensor[plane+idx] = float32(rgb.Pix[i+1]) / 255.0
			tensor[2*plane+idx] = float32(rgb.Pix[i+2]) / 255.0
		}
	}
	return tensor, width, height, nil
}
