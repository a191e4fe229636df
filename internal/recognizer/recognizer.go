// Package recognizer turns cropped region images into text with a
// per-language recognition model.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/lipi/internal/script"
)

// ErrModelUnavailable reports that the model for a language could not be
// loaded. The load is retried on the next call.
var ErrModelUnavailable = errors.New("recognition model unavailable")

// Device is the compute device a model runs on.
type Device string

const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "gpu"
)

// Model recognizes the text in a single region image. Implementations
// receive opaque RGB input and may return untrimmed text.
type Model interface {
	Recognize(ctx context.Context, img *image.RGBA) (string, error)
	Close() error
}

// Loader creates the model for one language. device is the pinned device,
// or empty when no model has been loaded yet; the returned Device is the
// one the model actually uses.
type Loader interface {
	Load(ctx context.Context, lang script.Language, device Device) (Model, Device, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, lang script.Language, device Device) (Model, Device, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, lang script.Language, device Device) (Model, Device, error) {
	return f(ctx, lang, device)
}

// Backends selects the recognition implementation.
const (
	BackendONNX      = "onnx"
	BackendGemini    = "gemini"
	BackendTesseract = "tesseract"
)

// BackendConfig groups the settings of every backend.
type BackendConfig struct {
	Backend   string
	ONNX      ONNXConfig
	Gemini    GeminiConfig
	Tesseract TesseractConfig
}

// NewLoader returns the Loader for cfg.Backend.
func NewLoader(cfg BackendConfig) (Loader, error) {
	switch cfg.Backend {
	case BackendONNX, "":
		return NewONNXLoader(cfg.ONNX), nil
	case BackendGemini:
		return NewGeminiLoader(cfg.Gemini), nil
	case BackendTesseract:
		return NewTesseractLoader(cfg.Tesseract), nil
	}
	return nil, fmt.Errorf("unknown recognizer backend %q", cfg.Backend)
}
