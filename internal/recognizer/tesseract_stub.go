//go:build !tesseract

package recognizer

import (
	"context"
	"errors"

	"github.com/MeKo-Tech/lipi/internal/script"
)

// TesseractAvailable reports whether the binary was built with Tesseract support.
const TesseractAvailable = false

// Load implements Loader.
func (l *TesseractLoader) Load(context.Context, script.Language, Device) (Model, Device, error) {
	return nil, "", errors.New("tesseract backend not compiled in; rebuild with -tags tesseract")
}
