package recognizer

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/lipi/internal/mempool"
	"github.com/MeKo-Tech/lipi/internal/onnx"
	"github.com/MeKo-Tech/lipi/internal/utils"
)

// ResizeForRecognition scales img to targetHeight keeping the aspect ratio,
// clamps the width to maxWidth when set, and right-pads with black to a
// multiple of padToMultiple.
func ResizeForRecognition(img image.Image, targetHeight, maxWidth, padToMultiple int) (image.Image, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if targetHeight <= 0 {
		return nil, fmt.Errorf("invalid target height: %d", targetHeight)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("input image is empty")
	}

	newW := max(1, int(float64(b.Dx())*float64(targetHeight)/float64(b.Dy())))
	if maxWidth > 0 && newW > maxWidth {
		newW = maxWidth
	}
	resized := imaging.Resize(img, newW, targetHeight, imaging.Lanczos)

	outW := newW
	if padToMultiple > 0 && newW%padToMultiple != 0 {
		outW = newW + padToMultiple - newW%padToMultiple
	}
	if outW == newW {
		return resized, nil
	}
	canvas := imaging.New(outW, targetHeight, color.Black)
	return imaging.Paste(canvas, resized, image.Pt(0, 0)), nil
}

// NormalizeForRecognition converts img into a [1, 3, H, W] tensor in [0,1].
// The backing slice comes from mempool; release it with mempool.PutFloat32
// once inference is done.
func NormalizeForRecognition(img image.Image) (onnx.Tensor, error) {
	data, w, h, err := utils.NormalizeImagePooled(img)
	if err != nil {
		return onnx.Tensor{}, err
	}
	ten, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		mempool.PutFloat32(data)
	}
	return ten, err
}
