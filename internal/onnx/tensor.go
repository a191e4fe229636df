package onnx

import (
	"errors"
	"fmt"
)

// Tensor is a float32 tensor prepared for model input, row-major.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewImageTensor builds a [1, C, H, W] tensor from NCHW data.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	if c <= 0 || h <= 0 || w <= 0 {
		return Tensor{}, fmt.Errorf("invalid dimensions %dx%dx%d", c, h, w)
	}
	if len(data) != c*h*w {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), c*h*w)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}, nil
}
